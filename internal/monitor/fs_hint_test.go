package monitor

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/aleister1102/folderhook/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSHintNewSubdirectories(t *testing.T) {
	tests := []struct {
		name      string
		recursive bool
		watched   bool
	}{
		{name: "recursive folder watches new subdir", recursive: true, watched: true},
		{name: "flat folder ignores new subdir", recursive: false, watched: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			h, err := NewFSHint([]models.WatchedFolder{{Path: dir, Enabled: true, Recursive: tt.recursive}}, zerolog.Nop())
			require.NoError(t, err)
			defer h.Close()

			sub := filepath.Join(dir, "sub")
			require.NoError(t, os.Mkdir(sub, 0755))

			select {
			case <-h.Wake():
			case <-time.After(2 * time.Second):
				t.Fatal("no wake-up for the new directory")
			}

			if tt.watched {
				require.Eventually(t, func() bool {
					return slices.Contains(h.watcher.WatchList(), sub)
				}, 2*time.Second, 10*time.Millisecond)
				return
			}
			// The wake-up is sent after the watch list is updated.
			assert.NotContains(t, h.watcher.WatchList(), sub)
			assert.Contains(t, h.watcher.WatchList(), dir)
		})
	}
}

func TestFSHintUnderRecursiveRoot(t *testing.T) {
	h := &FSHint{recursiveRoots: []string{filepath.Join("/data", "in")}}

	assert.True(t, h.underRecursiveRoot(filepath.Join("/data", "in", "a")))
	assert.True(t, h.underRecursiveRoot(filepath.Join("/data", "in", "a", "b")))
	assert.False(t, h.underRecursiveRoot(filepath.Join("/data", "inbox")))
	assert.False(t, h.underRecursiveRoot(filepath.Join("/data", "other")))
}

func TestFSHintNilIsInert(t *testing.T) {
	var h *FSHint
	assert.Nil(t, h.Wake())
	h.Close()
}
