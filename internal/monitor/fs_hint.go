package monitor

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aleister1102/folderhook/internal/common"
	"github.com/aleister1102/folderhook/internal/models"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FSHint turns filesystem notifications into a wake-up signal for the idle sleep.
// It never decides what is new; the next poll does. A nil *FSHint is valid and never fires.
type FSHint struct {
	watcher  *fsnotify.Watcher
	wake     chan struct{}
	stopChan chan struct{}
	once     sync.Once
	logger   zerolog.Logger

	// recursiveRoots are the folders whose new sub-directories join the watch list.
	recursiveRoots []string
}

// NewFSHint watches the given folders, descending into recursive ones.
func NewFSHint(folders []models.WatchedFolder, logger zerolog.Logger) (*FSHint, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	h := &FSHint{
		watcher:  watcher,
		wake:     make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		logger:   logger.With().Str("component", "FSHint").Logger(),
	}

	added := 0
	var errs common.ErrorCollector
	for _, f := range folders {
		if f.Recursive {
			h.recursiveRoots = append(h.recursiveRoots, filepath.Clean(f.Path))
			added += h.addDirRecursive(f.Path)
			continue
		}
		if err := watcher.Add(f.Path); err != nil {
			h.logger.Debug().Err(err).Str("folder", f.Path).Msg("Cannot watch folder")
			errs.Add(common.WrapErrorf(err, "watch '%s'", f.Path))
			continue
		}
		added++
	}
	if added == 0 {
		_ = watcher.Close()
		if errs.HasErrors() {
			return nil, errs.Error()
		}
		return nil, common.WrapError(os.ErrNotExist, "no folder could be watched")
	}

	go h.watch()
	return h, nil
}

func (h *FSHint) addDirRecursive(root string) int {
	added := 0
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if err := h.watcher.Add(path); err == nil {
				added++
			}
		}
		return nil
	})
	return added
}

func (h *FSHint) watch() {
	for {
		select {
		case <-h.stopChan:
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if event.Has(fsnotify.Create) && h.underRecursiveRoot(event.Name) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					h.addDirRecursive(event.Name)
				}
			}
			select {
			case h.wake <- struct{}{}:
			default:
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Debug().Err(err).Msg("File watcher error")
		}
	}
}

func (h *FSHint) underRecursiveRoot(path string) bool {
	for _, root := range h.recursiveRoots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Wake returns the signal channel, or nil for a nil hint.
func (h *FSHint) Wake() <-chan struct{} {
	if h == nil {
		return nil
	}
	return h.wake
}

// Close stops watching. Safe on nil and safe to call twice.
func (h *FSHint) Close() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		close(h.stopChan)
		_ = h.watcher.Close()
	})
}
