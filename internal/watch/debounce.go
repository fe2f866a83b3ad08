package watch

import (
	"encoding/hex"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// DebounceDelay is how long a file has to stay quiet before a change is
// reported. Editors often write a file several times when saving.
var DebounceDelay = 500 * time.Millisecond

type debouncer struct {
	mu       sync.Mutex
	timers   map[string]*time.Timer
	delay    time.Duration
	onChange func(string)
}

func newDebouncer(onChange func(string)) *debouncer {
	return &debouncer{
		timers:   make(map[string]*time.Timer),
		delay:    DebounceDelay,
		onChange: onChange,
	}
}

func (d *debouncer) trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, exists := d.timers[path]; exists {
		timer.Stop()
	}

	d.timers[path] = time.AfterFunc(d.delay, func() {
		d.onChange(path)
		d.mu.Lock()
		delete(d.timers, path)
		d.mu.Unlock()
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for path, timer := range d.timers {
		timer.Stop()
		delete(d.timers, path)
	}
}

// Fingerprint returns the hex encoded BLAKE2b-256 digest of a file
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
