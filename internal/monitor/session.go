package monitor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aleister1102/folderhook/internal/common"
	"github.com/aleister1102/folderhook/internal/models"
	"github.com/aleister1102/folderhook/internal/scanner"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const (
	DefaultScanInterval = time.Second
	DefaultSettleDelay  = 800 * time.Millisecond
)

// Options is the per-session configuration handed to Start.
type Options struct {
	Folders      []models.WatchedFolder
	Endpoints    []models.WebhookEndpoint
	ScanInterval time.Duration
	SettleDelay  time.Duration // zero disables the settle delay
	Extensions   scanner.ExtensionSet
	Debug        bool
	WatchEvents  bool // enable the fsnotify wake-up hint
}

// DefaultOptions returns options with the standard cadence and image allow-list.
func DefaultOptions() Options {
	return Options{
		ScanInterval: DefaultScanInterval,
		SettleDelay:  DefaultSettleDelay,
		Extensions:   scanner.ParseExtensions(scanner.DefaultExtensions),
	}
}

func (o Options) withDefaults() Options {
	if o.ScanInterval <= 0 {
		o.ScanInterval = DefaultScanInterval
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if len(o.Extensions) == 0 {
		o.Extensions = scanner.ParseExtensions(scanner.DefaultExtensions)
	}
	return o
}

// run is the state owned by one Start call.
type run struct {
	id     string
	loop   *Loop
	stop   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
}

// Session starts and stops monitoring and exposes counters and events.
type Session struct {
	dispatcher Dispatcher
	emitter    *Emitter
	recorder   Recorder
	logger     zerolog.Logger

	mu        sync.Mutex
	state     atomic.Int32
	current   atomic.Pointer[run]
	tracker   *SeenTracker
	delivered atomic.Int64
	failed    atomic.Int64
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithRecorder persists session and delivery history through r.
func WithRecorder(r Recorder) SessionOption {
	return func(s *Session) {
		s.recorder = r
	}
}

// NewSession creates an idle session.
func NewSession(dispatcher Dispatcher, emitter *Emitter, logger zerolog.Logger, opts ...SessionOption) *Session {
	if emitter == nil {
		emitter = NewEmitter(DefaultEventBuffer, logger)
	}
	s := &Session{
		dispatcher: dispatcher,
		emitter:    emitter,
		tracker:    NewSeenTracker(),
		logger:     logger.With().Str("component", "Session").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start validates opts, snapshots existing files and launches the worker.
// It fails with ErrSessionRunning while a session is running and with a
// *common.ConfigurationError when no folder or endpoint is usable.
func (s *Session) Start(ctx context.Context, opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == models.SessionRunning {
		return common.ErrSessionRunning
	}

	// A previous worker may still be finishing its last file.
	if prev := s.current.Load(); prev != nil {
		select {
		case <-prev.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	opts = opts.withDefaults()

	id := ulid.Make().String()
	r := &run{
		id:   id,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	// Refusal warnings carry the attempted ID and never block.
	s.emitter.bind(id, closedSignal)
	folders, endpoints, err := s.checkPreconditions(opts)
	if err != nil {
		return err
	}
	s.emitter.bind(id, r.stop)

	s.delivered.Store(0)
	s.failed.Store(0)
	s.tracker.Reset()
	count := s.snapshot(folders, opts.Extensions)

	if s.recorder != nil {
		rec := models.SessionRecord{
			ID:        id,
			StartedAt: time.Now(),
			Folders:   len(folders),
			Endpoints: len(endpoints),
		}
		if err := s.recorder.RecordSessionStart(ctx, rec); err != nil {
			s.logger.Warn().Err(err).Str("session_id", id).Msg("Failed to record session start")
		}
	}

	var hint *FSHint
	var hintErr error
	if opts.WatchEvents {
		hint, hintErr = NewFSHint(folders, s.logger)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.loop = NewLoop(LoopConfig{
		SessionID:  id,
		Options:    opts,
		Folders:    folders,
		Endpoints:  endpoints,
		Tracker:    s.tracker,
		Dispatcher: s.dispatcher,
		Recorder:   s.recorder,
		Publish:    s.emitter.Publish,
		Wake:       hint.Wake(),
		Delivered:  &s.delivered,
		Failed:     &s.failed,
	}, s.logger)

	s.current.Store(r)
	s.state.Store(int32(models.SessionRunning))
	s.logger.Info().Str("session_id", id).Int("folders", len(folders)).Int("endpoints", len(endpoints)).Msg("Monitoring session started")

	// Published once Running so that Stop can release a blocked send.
	s.emitter.Publish(models.Event{
		Type:    models.EventSnapshot,
		Message: fmt.Sprintf("Snapshot: %d existing file(s) marked as seen", count),
	})
	names := models.EndpointNames(endpoints)
	s.emitter.Publish(models.Event{
		Type: models.EventSessionStarted,
		Message: fmt.Sprintf("Started: %d folder(s) -> %d webhook(s): %s",
			len(folders), len(endpoints), strings.Join(names, ", ")),
	})
	if hintErr != nil {
		s.emitter.Publish(models.Event{
			Type:    models.EventWarning,
			Message: "Filesystem notifications unavailable, polling only",
			Err:     hintErr,
		})
	}

	go s.work(loopCtx, r, hint)
	return nil
}

func (s *Session) checkPreconditions(opts Options) ([]models.WatchedFolder, []models.WebhookEndpoint, error) {
	enabled := models.EnabledFolders(opts.Folders)
	if len(enabled) == 0 {
		return nil, nil, s.refuse(common.NewConfigurationError("watch_config", "folders", "no folders configured"))
	}
	endpoints := models.EnabledEndpoints(opts.Endpoints)
	if len(endpoints) == 0 {
		return nil, nil, s.refuse(common.NewConfigurationError("dispatch_config", "endpoints", "no webhooks configured"))
	}

	var valid []models.WatchedFolder
	for _, f := range enabled {
		info, err := os.Stat(f.Path)
		if err != nil || !info.IsDir() {
			s.emitter.Publish(models.Event{
				Type:    models.EventWarning,
				Folder:  f.Path,
				Message: fmt.Sprintf("Folder not found, skipping: %s", f.Path),
			})
			continue
		}
		valid = append(valid, f)
	}
	if len(valid) == 0 {
		return nil, nil, s.refuse(common.NewConfigurationError("watch_config", "folders", "no valid folders found"))
	}
	return valid, endpoints, nil
}

func (s *Session) refuse(err *common.ConfigurationError) error {
	s.logger.Warn().Err(err).Msg("Refusing to start monitoring session")
	s.emitter.Publish(models.Event{
		Type:    models.EventWarning,
		Message: err.Reason,
		Err:     err,
	})
	return err
}

// snapshot marks every existing candidate as seen and returns how many were marked.
func (s *Session) snapshot(folders []models.WatchedFolder, exts scanner.ExtensionSet) int {
	count := 0
	for _, f := range folders {
		files, err := scanner.ScanFolder(f.Path, f.Recursive, exts)
		if err != nil {
			s.logger.Warn().Err(err).Str("folder", f.Path).Msg("Snapshot failed for folder")
			continue
		}
		for _, file := range files {
			s.tracker.MarkSeen(absPath(file))
			count++
		}
	}
	return count
}

func (s *Session) work(ctx context.Context, r *run, hint *FSHint) {
	defer close(r.done)
	defer r.cancel()
	defer hint.Close()

	r.loop.Run(ctx)

	// Parent context cancelled without an explicit Stop.
	if s.state.CompareAndSwap(int32(models.SessionRunning), int32(models.SessionStopped)) {
		close(r.stop)
		s.emitter.Publish(models.Event{Type: models.EventSessionStopped, Message: "Monitoring stopped"})
	}

	if s.recorder != nil {
		if err := s.recorder.RecordSessionEnd(context.Background(), r.id, s.Counters(), time.Now()); err != nil {
			s.logger.Warn().Err(err).Str("session_id", r.id).Msg("Failed to record session end")
		}
	}
	s.logger.Info().Str("session_id", r.id).Int64("delivered", s.delivered.Load()).Int64("failed", s.failed.Load()).Msg("Monitoring session finished")
}

// Stop requests the worker to finish and returns without waiting for it.
// In-flight uploads complete on their own timeout. Calling Stop when not running is a no-op.
func (s *Session) Stop() {
	if s.State() != models.SessionRunning {
		return
	}
	r := s.current.Load()
	if r == nil || !s.state.CompareAndSwap(int32(models.SessionRunning), int32(models.SessionStopped)) {
		return
	}

	r.loop.Stop()
	close(r.stop)
	r.cancel()
	s.emitter.Publish(models.Event{Type: models.EventSessionStopped, Message: "Monitoring stopped"})
	s.logger.Info().Str("session_id", r.id).Msg("Stop requested")
}

// Done returns a channel closed when the current worker exits.
// Before the first Start it returns a closed channel.
func (s *Session) Done() <-chan struct{} {
	if r := s.current.Load(); r != nil {
		return r.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Events returns the event stream.
func (s *Session) Events() <-chan models.Event {
	return s.emitter.Events()
}

// State returns the lifecycle state.
func (s *Session) State() models.SessionState {
	return models.SessionState(s.state.Load())
}

// Counters returns a snapshot of the delivery totals.
func (s *Session) Counters() models.Counters {
	return models.Counters{
		Delivered: s.delivered.Load(),
		Failed:    s.failed.Load(),
	}
}

// SessionID returns the ID of the current or last session, or "" before the first Start.
func (s *Session) SessionID() string {
	if r := s.current.Load(); r != nil {
		return r.id
	}
	return ""
}

// SeenCount returns the size of the seen set.
func (s *Session) SeenCount() int {
	return s.tracker.Len()
}
