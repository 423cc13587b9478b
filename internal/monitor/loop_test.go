package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aleister1102/folderhook/internal/models"
	"github.com/aleister1102/folderhook/internal/scanner"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDispatcher records calls and answers with a fixed outcome per endpoint name.
type fakeDispatcher struct {
	mu       sync.Mutex
	calls    []string
	failing  map[string]bool
	panicFor string
}

func (f *fakeDispatcher) SendAll(_ context.Context, path string, endpoints []models.WebhookEndpoint) []models.DispatchOutcome {
	if f.panicFor != "" && filepath.Base(path) == f.panicFor {
		panic("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.DispatchOutcome
	for _, ep := range endpoints {
		f.calls = append(f.calls, ep.Name+":"+filepath.Base(path))
		kind := models.OutcomeDelivered
		if f.failing[ep.Name] {
			kind = models.OutcomeRejectedByServer
		}
		out = append(out, models.DispatchOutcome{FilePath: path, Endpoint: ep, Kind: kind})
	}
	return out
}

func (f *fakeDispatcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeRecorder struct {
	mu         sync.Mutex
	starts     []models.SessionRecord
	dispatches []models.DispatchOutcome
	ends       []models.Counters
}

func (r *fakeRecorder) RecordSessionStart(_ context.Context, rec models.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, rec)
	return nil
}

func (r *fakeRecorder) RecordDispatch(_ context.Context, _, _ string, outcome models.DispatchOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatches = append(r.dispatches, outcome)
	return nil
}

func (r *fakeRecorder) RecordSessionEnd(_ context.Context, _ string, counters models.Counters, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ends = append(r.ends, counters)
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []models.Event
}

func (l *eventLog) publish(ev models.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) ofType(t models.EventType) []models.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Event
	for _, ev := range l.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newTestLoop(folders []models.WatchedFolder, endpoints []models.WebhookEndpoint, d Dispatcher, log *eventLog) *Loop {
	return NewLoop(LoopConfig{
		SessionID:  "test",
		Options:    Options{Extensions: scanner.ParseExtensions(scanner.DefaultExtensions)},
		Folders:    folders,
		Endpoints:  endpoints,
		Dispatcher: d,
		Publish:    log.publish,
	}, zerolog.Nop())
}

var twoEndpoints = []models.WebhookEndpoint{
	{Name: "a", URL: "http://a", Enabled: true},
	{Name: "b", URL: "http://b", Enabled: true},
}

func TestLoopDispatchesNewFileOnce(t *testing.T) {
	dir := t.TempDir()
	d := &fakeDispatcher{}
	events := &eventLog{}
	loop := newTestLoop([]models.WatchedFolder{{Path: dir, Enabled: true}}, twoEndpoints, d, events)

	writeFile(t, filepath.Join(dir, "new.png"), "data")
	loop.RunCycle(context.Background())
	loop.RunCycle(context.Background())
	loop.RunCycle(context.Background())

	assert.Equal(t, []string{"a:new.png", "b:new.png"}, d.Calls())
	assert.Equal(t, int64(1), loop.delivered.Load())
	assert.Equal(t, int64(0), loop.failed.Load())

	detected := events.ofType(models.EventFileDetected)
	require.Len(t, detected, 1)
	assert.Equal(t, "new.png", detected[0].RelPath)
	assert.Equal(t, "New: new.png ["+filepath.Base(dir)+"]", detected[0].Message)

	delivered := events.ofType(models.EventFileDelivered)
	require.Len(t, delivered, 1)
	assert.Equal(t, int64(1), delivered[0].Delivered)
	assert.Equal(t, int64(0), delivered[0].Failed)
}

func TestLoopFailedDeliveryIsNotRetried(t *testing.T) {
	dir := t.TempDir()
	d := &fakeDispatcher{failing: map[string]bool{"a": true}}
	events := &eventLog{}
	loop := newTestLoop([]models.WatchedFolder{{Path: dir, Enabled: true}}, twoEndpoints, d, events)

	writeFile(t, filepath.Join(dir, "x.jpg"), "data")
	loop.RunCycle(context.Background())
	loop.RunCycle(context.Background())

	// Both endpoints tried once, even though the first failed; nothing on the second cycle.
	assert.Equal(t, []string{"a:x.jpg", "b:x.jpg"}, d.Calls())
	assert.Equal(t, int64(0), loop.delivered.Load())
	assert.Equal(t, int64(1), loop.failed.Load())
	assert.Len(t, events.ofType(models.EventFileFailed), 1)
}

func TestLoopEmptyFileRetriedUntilNonEmpty(t *testing.T) {
	dir := t.TempDir()
	d := &fakeDispatcher{}
	events := &eventLog{}
	loop := newTestLoop([]models.WatchedFolder{{Path: dir, Enabled: true}}, twoEndpoints[:1], d, events)

	path := filepath.Join(dir, "empty.png")
	writeFile(t, path, "")

	loop.RunCycle(context.Background())
	loop.RunCycle(context.Background())
	assert.Empty(t, d.Calls())
	assert.Len(t, events.ofType(models.EventFileSkippedEmpty), 2)
	assert.True(t, loop.tracker.IsNew(absPath(path)))

	writeFile(t, path, "now has bytes")
	loop.RunCycle(context.Background())
	loop.RunCycle(context.Background())
	assert.Equal(t, []string{"a:empty.png"}, d.Calls())
	assert.False(t, loop.tracker.IsNew(absPath(path)))
}

func TestLoopScopeAndExtensionFilter(t *testing.T) {
	flat := t.TempDir()
	deep := t.TempDir()
	writeFile(t, filepath.Join(flat, "top.PNG"), "x")
	writeFile(t, filepath.Join(flat, "photo.txt"), "x")
	writeFile(t, filepath.Join(flat, "nested", "hidden.png"), "x")
	writeFile(t, filepath.Join(deep, "nested", "found.gif"), "x")

	d := &fakeDispatcher{}
	loop := newTestLoop([]models.WatchedFolder{
		{Path: flat, Enabled: true},
		{Path: deep, Enabled: true, Recursive: true},
	}, twoEndpoints[:1], d, &eventLog{})

	loop.RunCycle(context.Background())
	assert.ElementsMatch(t, []string{"a:top.PNG", "a:found.gif"}, d.Calls())
}

func TestLoopFolderErrorDoesNotStopOtherFolders(t *testing.T) {
	good := t.TempDir()
	missing := filepath.Join(t.TempDir(), "removed")
	writeFile(t, filepath.Join(good, "ok.png"), "x")

	d := &fakeDispatcher{}
	events := &eventLog{}
	loop := newTestLoop([]models.WatchedFolder{
		{Path: missing, Enabled: true},
		{Path: good, Enabled: true},
	}, twoEndpoints[:1], d, events)

	loop.RunCycle(context.Background())

	errs := events.ofType(models.EventFolderError)
	require.Len(t, errs, 1)
	assert.Equal(t, missing, errs[0].Folder)
	assert.Equal(t, []string{"a:ok.png"}, d.Calls())
}

func TestLoopRecoversPanicPerFolder(t *testing.T) {
	bad := t.TempDir()
	good := t.TempDir()
	writeFile(t, filepath.Join(bad, "explode.png"), "x")
	writeFile(t, filepath.Join(good, "fine.png"), "x")

	d := &fakeDispatcher{panicFor: "explode.png"}
	events := &eventLog{}
	loop := newTestLoop([]models.WatchedFolder{
		{Path: bad, Enabled: true},
		{Path: good, Enabled: true},
	}, twoEndpoints[:1], d, events)

	assert.NotPanics(t, func() { loop.RunCycle(context.Background()) })
	require.Len(t, events.ofType(models.EventFolderError), 1)
	assert.Equal(t, []string{"a:fine.png"}, d.Calls())
}

func TestLoopStopFlagHaltsCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.png"), "x")

	d := &fakeDispatcher{}
	loop := newTestLoop([]models.WatchedFolder{{Path: dir, Enabled: true}}, twoEndpoints[:1], d, &eventLog{})
	loop.Stop()
	loop.RunCycle(context.Background())
	assert.Empty(t, d.Calls())

	done := make(chan struct{})
	go func() {
		loop.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestLoopDebugScanEvent(t *testing.T) {
	dir := t.TempDir()
	events := &eventLog{}
	loop := NewLoop(LoopConfig{
		Options:    Options{Debug: true},
		Folders:    []models.WatchedFolder{{Path: dir, Enabled: true}},
		Endpoints:  twoEndpoints[:1],
		Dispatcher: &fakeDispatcher{},
		Publish:    events.publish,
	}, zerolog.Nop())

	loop.RunCycle(context.Background())
	loop.RunCycle(context.Background())

	scans := events.ofType(models.EventDebugScan)
	require.Len(t, scans, 2)
	assert.Equal(t, "Scan #2", scans[1].Message)
	require.NotNil(t, scans[1].Scan)
	assert.Equal(t, 1, scans[1].Scan.Folders)
	assert.Positive(t, scans[1].Scan.Goroutines)
}

func TestLoopRecordsEveryOutcome(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.png"), "x")
	rec := &fakeRecorder{}

	loop := NewLoop(LoopConfig{
		Folders:    []models.WatchedFolder{{Path: dir, Enabled: true}},
		Endpoints:  twoEndpoints,
		Dispatcher: &fakeDispatcher{},
		Recorder:   rec,
	}, zerolog.Nop())
	loop.RunCycle(context.Background())

	assert.Len(t, rec.dispatches, 2)
}

func TestSeenTracker(t *testing.T) {
	st := NewSeenTracker()
	assert.True(t, st.IsNew("/a"))

	st.MarkSeen("/a")
	st.MarkSeen("/a")
	st.MarkSeen("")
	assert.False(t, st.IsNew("/a"))
	assert.Equal(t, 1, st.Len())

	st.Reset()
	assert.True(t, st.IsNew("/a"))
	assert.Equal(t, 0, st.Len())
}

func newSettlingLoop(dir string, settle time.Duration, d Dispatcher, log *eventLog) *Loop {
	return NewLoop(LoopConfig{
		Options: Options{
			SettleDelay: settle,
			Extensions:  scanner.ParseExtensions(scanner.DefaultExtensions),
		},
		Folders:    []models.WatchedFolder{{Path: dir, Enabled: true}},
		Endpoints:  twoEndpoints[:1],
		Dispatcher: d,
		Publish:    log.publish,
	}, zerolog.Nop())
}

func runCycleAsync(loop *Loop) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		loop.RunCycle(context.Background())
		close(done)
	}()
	return done
}

func TestLoopFileRemovedDuringSettleStaysUnmarked(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brief.png")
	writeFile(t, path, "data")

	d := &fakeDispatcher{}
	events := &eventLog{}
	loop := newSettlingLoop(dir, 300*time.Millisecond, d, events)

	done := runCycleAsync(loop)
	require.Eventually(t, func() bool {
		return len(events.ofType(models.EventFileDetected)) == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, os.Remove(path))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not finish")
	}

	assert.Empty(t, d.Calls())
	assert.True(t, loop.tracker.IsNew(absPath(path)))
	assert.Equal(t, int64(0), loop.delivered.Load())
	assert.Equal(t, int64(0), loop.failed.Load())
	assert.Empty(t, events.ofType(models.EventFileSkippedEmpty))
	assert.Empty(t, events.ofType(models.EventFileFailed))
}

func TestLoopStopDuringSettleAbandonsCandidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "late.png")
	writeFile(t, path, "data")

	d := &fakeDispatcher{}
	events := &eventLog{}
	loop := newSettlingLoop(dir, 10*time.Second, d, events)

	done := runCycleAsync(loop)
	require.Eventually(t, func() bool {
		return len(events.ofType(models.EventFileDetected)) == 1
	}, time.Second, 5*time.Millisecond)

	loop.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not interrupt the settle delay")
	}

	assert.Empty(t, d.Calls())
	assert.True(t, loop.tracker.IsNew(absPath(path)))
	assert.Equal(t, int64(0), loop.delivered.Load())
	assert.Equal(t, int64(0), loop.failed.Load())
}
