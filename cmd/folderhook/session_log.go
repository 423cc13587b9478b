package main

import (
	"sync"

	"github.com/aleister1102/folderhook/internal/logger"
	"github.com/rs/zerolog"
)

// sessionLoggers hands out the logger for a session ID, creating its file writer once.
// Without per-session logging every ID maps to the base logger.
type sessionLoggers struct {
	cfg  logger.FileLogConfig
	base zerolog.Logger

	mu   sync.Mutex
	byID map[string]zerolog.Logger
}

func newSessionLoggers(cfg logger.FileLogConfig, base zerolog.Logger) *sessionLoggers {
	return &sessionLoggers{cfg: cfg, base: base, byID: make(map[string]zerolog.Logger)}
}

func (s *sessionLoggers) get(sessionID string) zerolog.Logger {
	if !s.cfg.PerSession || sessionID == "" {
		return s.base
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.byID[sessionID]; ok {
		return l
	}
	l, err := logger.NewWithSessionID(s.cfg, sessionID)
	if err != nil {
		s.base.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to create session log, using main log")
		l = s.base
	}
	s.byID[sessionID] = l
	return l
}
