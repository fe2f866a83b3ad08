// Completion: 100% - Platform-specific module complete
//go:build linux

package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const inotifyMask = unix.IN_MODIFY | unix.IN_CLOSE_WRITE | unix.IN_ATTRIB |
	unix.IN_DELETE_SELF | unix.IN_MOVE_SELF

// Watcher reports changes to individual files using inotify
type Watcher struct {
	fd       int
	mu       sync.Mutex
	watchMap map[int]string
	debounce *debouncer
}

func NewWatcher(onChange func(string)) (*Watcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("inotify_init failed: %v", err)
	}

	return &Watcher{
		fd:       fd,
		watchMap: make(map[int]string),
		debounce: newDebouncer(onChange),
	}, nil
}

func (w *Watcher) Add(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	wd, err := unix.InotifyAddWatch(w.fd, absPath, inotifyMask)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %v", absPath, err)
	}

	w.mu.Lock()
	w.watchMap[wd] = absPath
	w.mu.Unlock()

	return nil
}

// Watch reads events until ctx is done
func (w *Watcher) Watch(ctx context.Context) error {
	buf := make([]byte, 16*1024)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := unix.Read(w.fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(100 * time.Millisecond):
				}
				continue
			}
			return fmt.Errorf("reading inotify events: %w", err)
		}

		offset := 0
		for offset+unix.SizeofInotifyEvent <= n {
			event := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
			offset += unix.SizeofInotifyEvent + int(event.Len)

			if event.Mask&inotifyMask != 0 {
				w.mu.Lock()
				path := w.watchMap[int(event.Wd)]
				w.mu.Unlock()

				if path != "" {
					w.debounce.trigger(path)
				}
			}
		}
	}
}

func (w *Watcher) Close() error {
	w.debounce.stop()
	return unix.Close(w.fd)
}
