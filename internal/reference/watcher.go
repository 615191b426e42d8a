package reference

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounce window for editors that write in bursts.
const reloadDebounce = 250 * time.Millisecond

// Watcher reloads a library when its directory changes.
type Watcher struct {
	lib     *Library
	watcher *fsnotify.Watcher
	logger  *zap.Logger
}

// NewWatcher creates a filesystem watcher over the library's directory.
func NewWatcher(lib *Library, logger *zap.Logger) (*Watcher, error) {
	if lib.dir == "" {
		return nil, fmt.Errorf("library has no directory to watch")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}
	if err := w.Add(lib.dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", lib.dir, err)
	}

	return &Watcher{lib: lib, watcher: w, logger: logger}, nil
}

// Run processes filesystem events until the context is canceled. Reloads are
// debounced; a reload failure keeps the previous snapshot.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			if err := w.lib.Reload(); err != nil {
				w.logger.Warn("reference reload failed, keeping previous snapshot", zap.Error(err))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("filesystem watcher error", zap.Error(err))
		}
	}
}
