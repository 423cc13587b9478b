package logger

import (
	"github.com/rs/zerolog"
)

// Logger wraps the configured zerolog instance
type Logger struct {
	zerolog zerolog.Logger
}

// GetZerolog returns the underlying zerolog instance
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zerolog
}

// New creates a zerolog logger from the file configuration
func New(cfg FileLogConfig) (zerolog.Logger, error) {
	logger, err := NewLoggerBuilder().WithConfig(cfg).Build()
	if err != nil {
		return zerolog.Logger{}, err
	}
	return *logger.GetZerolog(), nil
}

// NewWithSessionID creates a logger whose file lives under the session's directory
func NewWithSessionID(cfg FileLogConfig, sessionID string) (zerolog.Logger, error) {
	logger, err := NewLoggerBuilder().
		WithConfig(cfg).
		WithSessionID(sessionID).
		Build()
	if err != nil {
		return zerolog.Logger{}, err
	}
	return *logger.GetZerolog(), nil
}
