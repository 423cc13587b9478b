package monitor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aleister1102/folderhook/internal/models"
	"github.com/aleister1102/folderhook/internal/scanner"
	"github.com/rs/zerolog"
)

// Dispatcher sends one file to every endpoint in order and reports one outcome per endpoint.
type Dispatcher interface {
	SendAll(ctx context.Context, filePath string, endpoints []models.WebhookEndpoint) []models.DispatchOutcome
}

// Recorder persists session and delivery history. Implementations must tolerate
// being called from the worker goroutine only.
type Recorder interface {
	RecordSessionStart(ctx context.Context, rec models.SessionRecord) error
	RecordDispatch(ctx context.Context, sessionID, folder string, outcome models.DispatchOutcome) error
	RecordSessionEnd(ctx context.Context, sessionID string, counters models.Counters, endedAt time.Time) error
}

// Loop is the poll, settle and dispatch cycle of one session.
type Loop struct {
	sessionID  string
	folders    []models.WatchedFolder
	endpoints  []models.WebhookEndpoint
	exts       scanner.ExtensionSet
	interval   time.Duration
	settle     time.Duration
	debug      bool
	tracker    *SeenTracker
	dispatcher Dispatcher
	recorder   Recorder
	publish    func(models.Event)
	wake       <-chan struct{}
	logger     zerolog.Logger

	stopped   atomic.Bool
	halt      chan struct{}
	haltOnce  sync.Once
	delivered *atomic.Int64
	failed    *atomic.Int64
	scans     int
}

// LoopConfig bundles what a Loop needs. Folders and endpoints must already be filtered.
type LoopConfig struct {
	SessionID  string
	Options    Options
	Folders    []models.WatchedFolder
	Endpoints  []models.WebhookEndpoint
	Tracker    *SeenTracker
	Dispatcher Dispatcher
	Recorder   Recorder
	Publish    func(models.Event)
	Wake       <-chan struct{}
	Delivered  *atomic.Int64
	Failed     *atomic.Int64
}

// NewLoop creates a loop. Nil counters and publisher are replaced with private ones.
func NewLoop(cfg LoopConfig, logger zerolog.Logger) *Loop {
	opts := cfg.Options.withDefaults()
	l := &Loop{
		sessionID:  cfg.SessionID,
		folders:    cfg.Folders,
		endpoints:  cfg.Endpoints,
		exts:       opts.Extensions,
		interval:   opts.ScanInterval,
		settle:     opts.SettleDelay,
		debug:      opts.Debug,
		tracker:    cfg.Tracker,
		dispatcher: cfg.Dispatcher,
		recorder:   cfg.Recorder,
		publish:    cfg.Publish,
		wake:       cfg.Wake,
		delivered:  cfg.Delivered,
		failed:     cfg.Failed,
		halt:       make(chan struct{}),
		logger:     logger.With().Str("component", "MonitorLoop").Str("session_id", cfg.SessionID).Logger(),
	}
	if l.tracker == nil {
		l.tracker = NewSeenTracker()
	}
	if l.publish == nil {
		l.publish = func(models.Event) {}
	}
	if l.delivered == nil {
		l.delivered = new(atomic.Int64)
	}
	if l.failed == nil {
		l.failed = new(atomic.Int64)
	}
	return l
}

// Stop sets the cancellation flag and interrupts a settle or idle sleep.
// The loop notices it at the next check point.
func (l *Loop) Stop() {
	l.stopped.Store(true)
	l.haltOnce.Do(func() { close(l.halt) })
}

func (l *Loop) shouldStop(ctx context.Context) bool {
	return l.stopped.Load() || ctx.Err() != nil
}

// Run polls until stopped or ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Debug().Int("folders", len(l.folders)).Int("endpoints", len(l.endpoints)).Msg("Monitor loop started")
	defer l.logger.Debug().Msg("Monitor loop exited")

	for !l.shouldStop(ctx) {
		l.RunCycle(ctx)
		if l.shouldStop(ctx) {
			return
		}
		l.idle(ctx)
	}
}

// RunCycle performs one scan pass over every folder without the idle sleep.
func (l *Loop) RunCycle(ctx context.Context) {
	if l.shouldStop(ctx) {
		return
	}

	l.scans++
	started := time.Now()
	candidates := 0

	for _, folder := range l.folders {
		if l.shouldStop(ctx) {
			return
		}
		n, err := l.scanFolder(ctx, folder)
		candidates += n
		if err != nil {
			l.logger.Error().Err(err).Str("folder", folder.Path).Msg("Error scanning folder")
			l.publish(models.Event{
				Type:    models.EventFolderError,
				Folder:  folder.Path,
				Message: fmt.Sprintf("Error scanning %s: %v", folder.Path, err),
				Err:     err,
			})
		}
	}

	if l.debug {
		diag := CollectDiagnostics()
		diag.Folders = len(l.folders)
		diag.Candidates = candidates
		diag.SeenFiles = l.tracker.Len()
		diag.Duration = time.Since(started)
		l.publish(models.Event{
			Type:    models.EventDebugScan,
			Scan:    &diag,
			Message: fmt.Sprintf("Scan #%d", l.scans),
		})
	}
}

// scanFolder processes one folder. A panic is recovered and returned as an error.
func (l *Loop) scanFolder(ctx context.Context, folder models.WatchedFolder) (candidates int, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Str("folder", folder.Path).Bytes("stack", debug.Stack()).Msg("Recovered panic in folder scan")
			err = fmt.Errorf("panic while scanning: %v", r)
		}
	}()

	files, err := scanner.ScanFolder(folder.Path, folder.Recursive, l.exts)
	if err != nil {
		return 0, err
	}
	candidates = len(files)

	for _, file := range files {
		if l.shouldStop(ctx) {
			return candidates, nil
		}
		path := absPath(file)
		if !l.tracker.IsNew(path) {
			continue
		}
		l.processCandidate(ctx, folder, path)
	}
	return candidates, nil
}

func (l *Loop) processCandidate(ctx context.Context, folder models.WatchedFolder, path string) {
	rel := relativeTo(folder.Path, path)
	l.publish(models.Event{
		Type:    models.EventFileDetected,
		Folder:  folder.Path,
		Path:    path,
		RelPath: rel,
		Message: fmt.Sprintf("New: %s [%s]", rel, filepath.Base(folder.Path)),
	})

	if !l.sleep(ctx, l.settle) || l.shouldStop(ctx) {
		// Stopped while settling; leave it unmarked.
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		// Gone before it settled; leave it unmarked.
		l.logger.Debug().Str("path", path).Err(err).Msg("Candidate disappeared before dispatch")
		return
	}
	if info.Size() == 0 {
		l.publish(models.Event{
			Type:    models.EventFileSkippedEmpty,
			Folder:  folder.Path,
			Path:    path,
			RelPath: rel,
			Message: fmt.Sprintf("Empty, skipping: %s", rel),
		})
		return
	}

	// In-flight uploads outlive a stop request.
	sendCtx := context.WithoutCancel(ctx)
	outcomes := l.dispatcher.SendAll(sendCtx, path, l.endpoints)
	l.tracker.MarkSeen(path)

	if l.recorder != nil {
		for _, outcome := range outcomes {
			if err := l.recorder.RecordDispatch(sendCtx, l.sessionID, folder.Path, outcome); err != nil {
				l.logger.Warn().Err(err).Str("path", path).Msg("Failed to record dispatch")
			}
		}
	}

	ev := models.Event{
		Folder:  folder.Path,
		Path:    path,
		RelPath: rel,
	}
	if models.AllDelivered(outcomes) {
		ev.Type = models.EventFileDelivered
		ev.Delivered = l.delivered.Add(1)
		ev.Failed = l.failed.Load()
		ev.Message = fmt.Sprintf("Delivered %s to %d endpoint(s)", rel, len(outcomes))
	} else {
		ev.Type = models.EventFileFailed
		ev.Failed = l.failed.Add(1)
		ev.Delivered = l.delivered.Load()
		ev.Message = fmt.Sprintf("Delivery of %s failed on at least one endpoint", rel)
	}
	l.publish(ev)
}

// idle waits for the scan interval, a stop, or a filesystem wake-up hint.
func (l *Loop) idle(ctx context.Context) {
	timer := time.NewTimer(l.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-l.halt:
	case <-timer.C:
	case <-l.wake:
		l.logger.Debug().Msg("Woken early by filesystem event")
	}
}

// sleep waits for d and reports false if the loop was stopped or ctx ended first.
func (l *Loop) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !l.shouldStop(ctx)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-l.halt:
		return false
	case <-timer.C:
		return true
	}
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(absPath(root), path)
	if err != nil {
		return filepath.Base(path)
	}
	return rel
}
