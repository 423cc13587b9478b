package monitor

import (
	"path/filepath"
	"sync"
)

// SeenTracker is the set of absolute file paths already accounted for in a session.
// A path absent from the set is new.
type SeenTracker struct {
	seen  map[string]struct{}
	mutex sync.RWMutex
}

// NewSeenTracker creates an empty tracker.
func NewSeenTracker() *SeenTracker {
	return &SeenTracker{
		seen: make(map[string]struct{}),
	}
}

// MarkSeen adds path to the set. Marking twice is a no-op.
func (st *SeenTracker) MarkSeen(path string) {
	if path == "" {
		return
	}

	st.mutex.Lock()
	defer st.mutex.Unlock()

	st.seen[path] = struct{}{}
}

// IsNew reports whether path has never been marked.
func (st *SeenTracker) IsNew(path string) bool {
	st.mutex.RLock()
	defer st.mutex.RUnlock()

	_, ok := st.seen[path]
	return !ok
}

// Reset clears the set.
func (st *SeenTracker) Reset() {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	st.seen = make(map[string]struct{})
}

// Len returns the number of tracked paths.
func (st *SeenTracker) Len() int {
	st.mutex.RLock()
	defer st.mutex.RUnlock()

	return len(st.seen)
}

// absPath is the key used for tracking; it falls back to the cleaned input.
func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
