package main

import (
	"github.com/aleister1102/folderhook/internal/models"
	"github.com/rs/zerolog"
)

// eventRenderer turns session events into log lines.
type eventRenderer struct {
	logger zerolog.Logger
	// forSession, when set, supplies the logger used from a session_started event onward.
	forSession func(sessionID string) zerolog.Logger
}

func newEventRenderer(logger zerolog.Logger) *eventRenderer {
	return &eventRenderer{logger: rendererLogger(logger)}
}

func rendererLogger(logger zerolog.Logger) zerolog.Logger {
	return logger.With().Str("component", "Events").Logger()
}

// run renders events until stop is closed, then renders whatever is still buffered.
func (r *eventRenderer) run(events <-chan models.Event, stop <-chan struct{}) {
	for {
		select {
		case ev := <-events:
			r.render(ev)
		case <-stop:
			r.flush(events)
			return
		}
	}
}

func (r *eventRenderer) flush(events <-chan models.Event) {
	for {
		select {
		case ev := <-events:
			r.render(ev)
		default:
			return
		}
	}
}

func (r *eventRenderer) render(ev models.Event) {
	if ev.Type == models.EventSessionStarted && r.forSession != nil {
		r.logger = rendererLogger(r.forSession(ev.SessionID))
	}
	e := r.logger.WithLevel(eventLevel(ev.Type)).
		Str("event", string(ev.Type)).
		Time("at", ev.Time)

	if ev.SessionID != "" {
		e = e.Str("session_id", ev.SessionID)
	}
	if ev.Folder != "" {
		e = e.Str("folder", ev.Folder)
	}
	if ev.Path != "" {
		e = e.Str("path", ev.Path)
	}
	if ev.Endpoint != "" {
		e = e.Str("endpoint", ev.Endpoint)
	}
	switch ev.Type {
	case models.EventFileDelivered, models.EventFileFailed:
		e = e.Int64("delivered", ev.Delivered).Int64("failed", ev.Failed)
	case models.EventDebugScan:
		if ev.Scan != nil {
			e = e.Int("folders", ev.Scan.Folders).
				Int("candidates", ev.Scan.Candidates).
				Int("seen", ev.Scan.SeenFiles).
				Dur("scan_duration", ev.Scan.Duration).
				Int("goroutines", ev.Scan.Goroutines).
				Float64("heap_mb", ev.Scan.HeapAllocMB).
				Float64("cpu_percent", ev.Scan.CPUPercent)
		}
	}
	if ev.Err != nil {
		e = e.Err(ev.Err)
	}
	e.Msg(ev.Message)
}

// eventLevel maps an event type to the level it is logged at.
// Dispatch events are already logged by the dispatcher, so they only show at debug.
func eventLevel(t models.EventType) zerolog.Level {
	switch t {
	case models.EventFileFailed, models.EventFolderError:
		return zerolog.ErrorLevel
	case models.EventWarning:
		return zerolog.WarnLevel
	case models.EventDispatch, models.EventDebugScan, models.EventFileSkippedEmpty:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
