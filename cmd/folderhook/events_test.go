package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/aleister1102/folderhook/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestEventLevel(t *testing.T) {
	tests := []struct {
		eventType models.EventType
		expected  zerolog.Level
	}{
		{models.EventFileFailed, zerolog.ErrorLevel},
		{models.EventFolderError, zerolog.ErrorLevel},
		{models.EventWarning, zerolog.WarnLevel},
		{models.EventDispatch, zerolog.DebugLevel},
		{models.EventDebugScan, zerolog.DebugLevel},
		{models.EventFileDetected, zerolog.InfoLevel},
		{models.EventSessionStarted, zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			assert.Equal(t, tt.expected, eventLevel(tt.eventType))
		})
	}
}

func TestEventRendererFlushesOnStop(t *testing.T) {
	var buf bytes.Buffer
	r := newEventRenderer(zerolog.New(&buf))

	events := make(chan models.Event, 4)
	events <- models.Event{Type: models.EventFileFailed, Time: time.Now(), Path: "/in/a.png", Failed: 1, Message: "failed a.png", Err: errors.New("HTTP 500")}
	events <- models.Event{Type: models.EventWarning, Message: "Folder not found, skipping: /gone"}

	stop := make(chan struct{})
	close(stop)
	r.run(events, stop)

	out := buf.String()
	assert.Contains(t, out, `"event":"file_failed"`)
	assert.Contains(t, out, `"failed":1`)
	assert.Contains(t, out, `"error":"HTTP 500"`)
	assert.Contains(t, out, "Folder not found, skipping: /gone")
	assert.Empty(t, events)
}
