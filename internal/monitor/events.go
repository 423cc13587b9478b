package monitor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/aleister1102/folderhook/internal/models"
	"github.com/rs/zerolog"
)

// DefaultEventBuffer is the event channel capacity used by the CLI.
const DefaultEventBuffer = 256

// closedSignal is a stop channel that has already fired.
var closedSignal = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Emitter carries events from the worker to the presentation layer.
//
// Publish blocks while the channel is full until the consumer drains it or the
// bound session's stop signal fires. After the stop signal an event is only
// delivered when there is room, otherwise it is dropped.
type Emitter struct {
	ch      chan models.Event
	mu      sync.RWMutex
	session string
	stop    <-chan struct{}
	dropped atomic.Int64
	logger  zerolog.Logger
}

// NewEmitter creates an emitter with the given channel capacity.
func NewEmitter(buffer int, logger zerolog.Logger) *Emitter {
	if buffer < 0 {
		buffer = 0
	}
	return &Emitter{
		ch:     make(chan models.Event, buffer),
		stop:   closedSignal,
		logger: logger.With().Str("component", "EventEmitter").Logger(),
	}
}

// Events returns the receive side of the event channel. It is never closed.
func (e *Emitter) Events() <-chan models.Event {
	return e.ch
}

// Dropped returns how many events were discarded after a stop signal.
func (e *Emitter) Dropped() int64 {
	return e.dropped.Load()
}

// Publish stamps the event with the time and current session ID and sends it.
func (e *Emitter) Publish(ev models.Event) {
	e.mu.RLock()
	sessionID, stop := e.session, e.stop
	e.mu.RUnlock()

	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if ev.SessionID == "" {
		ev.SessionID = sessionID
	}

	select {
	case e.ch <- ev:
		return
	default:
	}

	select {
	case e.ch <- ev:
	case <-stop:
		e.dropped.Add(1)
		e.logger.Debug().Str("type", string(ev.Type)).Msg("Event dropped after stop")
	}
}

// bind points the emitter at a new session.
func (e *Emitter) bind(sessionID string, stop <-chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.session = sessionID
	e.stop = stop
}
