//go:build !linux && !darwin

package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Watcher polls modification times, for platforms without inotify or kqueue
type Watcher struct {
	mu       sync.Mutex
	watchMap map[string]time.Time
	debounce *debouncer
}

func NewWatcher(onChange func(string)) (*Watcher, error) {
	return &Watcher{
		watchMap: make(map[string]time.Time),
		debounce: newDebouncer(onChange),
	}, nil
}

func (w *Watcher) Add(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	var modTime time.Time
	if info, err := os.Stat(absPath); err == nil {
		modTime = info.ModTime()
	}

	w.mu.Lock()
	w.watchMap[absPath] = modTime
	w.mu.Unlock()

	return nil
}

// Watch polls every 500ms until ctx is done
func (w *Watcher) Watch(ctx context.Context) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.checkFiles()
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) checkFiles() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.watchMap))
	for path := range w.watchMap {
		paths = append(paths, path)
	}
	w.mu.Unlock()

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		w.mu.Lock()
		lastMod := w.watchMap[path]
		w.watchMap[path] = info.ModTime()
		w.mu.Unlock()

		if !info.ModTime().Equal(lastMod) {
			w.debounce.trigger(path)
		}
	}
}

func (w *Watcher) Close() error {
	w.debounce.stop()
	return nil
}
