//go:build darwin

package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Watcher reports changes to individual files using kqueue
type Watcher struct {
	kq       int
	mu       sync.Mutex
	watchMap map[int]string
	debounce *debouncer
}

func NewWatcher(onChange func(string)) (*Watcher, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("kqueue failed: %v", err)
	}

	return &Watcher{
		kq:       kq,
		watchMap: make(map[int]string),
		debounce: newDebouncer(onChange),
	}, nil
}

func (w *Watcher) Add(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	fd, err := unix.Open(absPath, unix.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %v", absPath, err)
	}

	event := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_VNODE,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
		Fflags: unix.NOTE_WRITE | unix.NOTE_ATTRIB | unix.NOTE_DELETE | unix.NOTE_RENAME,
	}

	_, err = unix.Kevent(w.kq, []unix.Kevent_t{event}, nil, nil)
	if err != nil {
		unix.Close(fd)
		return fmt.Errorf("failed to add kevent for %s: %v", absPath, err)
	}

	w.mu.Lock()
	w.watchMap[fd] = absPath
	w.mu.Unlock()

	return nil
}

// Watch reads events until ctx is done. Kevent wakes up every 200ms so
// cancellation is noticed.
func (w *Watcher) Watch(ctx context.Context) error {
	events := make([]unix.Kevent_t, 10)
	timeout := unix.NsecToTimespec(int64(200 * time.Millisecond))

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := unix.Kevent(w.kq, nil, events, &timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("reading kevent: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Ident)

			w.mu.Lock()
			path := w.watchMap[fd]
			w.mu.Unlock()

			if path != "" {
				w.debounce.trigger(path)
			}
		}
	}
}

func (w *Watcher) Close() error {
	w.debounce.stop()

	w.mu.Lock()
	defer w.mu.Unlock()

	for fd := range w.watchMap {
		unix.Close(fd)
	}

	return unix.Close(w.kq)
}
