package guidebook

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/romdo/go-debounce"

	"github.com/compozy/guidebook/pkg/logger"
)

const DefaultWatchDebounce = 200 * time.Millisecond

// Watcher reports changes to guidebook files. Bursts of events, such as
// an editor writing a temp file and renaming it, are coalesced into one
// notification.
type Watcher struct {
	watcher   *fsnotify.Watcher
	mu        sync.RWMutex
	watched   map[string]bool
	callbacks []func(path string)
	wait      time.Duration
	closeOnce sync.Once
}

func NewWatcher(wait time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if wait <= 0 {
		wait = DefaultWatchDebounce
	}
	return &Watcher{watcher: fsWatcher, watched: make(map[string]bool), wait: wait}, nil
}

// Watch adds a guidebook file. Its directory is watched so renames over
// the file are seen too.
func (w *Watcher) Watch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	if err := w.watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	w.mu.Lock()
	w.watched[absPath] = true
	w.mu.Unlock()
	return nil
}

func (w *Watcher) OnChange(callback func(path string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Run delivers change notifications until ctx ends or the watcher closes.
func (w *Watcher) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	var (
		pendingMu sync.Mutex
		pending   = make(map[string]bool)
	)
	flush, cancel := debounce.New(w.wait, func() {
		pendingMu.Lock()
		paths := pending
		pending = make(map[string]bool)
		pendingMu.Unlock()
		for path := range paths {
			w.notify(path)
		}
	})
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.RLock()
			watched := w.watched[event.Name]
			w.mu.RUnlock()
			if !watched {
				continue
			}
			pendingMu.Lock()
			pending[event.Name] = true
			pendingMu.Unlock()
			flush()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("Guidebook watcher error", "error", err)
		}
	}
}

func (w *Watcher) notify(path string) {
	w.mu.RLock()
	callbacks := append([]func(string){}, w.callbacks...)
	w.mu.RUnlock()
	for _, callback := range callbacks {
		callback(path)
	}
}

func (w *Watcher) Close() error {
	var closeErr error
	w.closeOnce.Do(func() {
		if err := w.watcher.Close(); err != nil && !errors.Is(err, fsnotify.ErrClosed) {
			closeErr = fmt.Errorf("failed to close watcher: %w", err)
		}
	})
	return closeErr
}
