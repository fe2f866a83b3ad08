// Completion: 100% - Rebuild on change complete
package watch

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/rs/zerolog"
)

// loop.go - Rebuild whenever a trigger file changes
//
// Each build reports the files it read, with their fingerprints. Those files
// are watched until one of them changes content; then the build runs again
// and the set of watched files is replaced by the new one. A failed build is
// logged and the previous set keeps being watched.

// RebuildFunc runs one build and returns its triggers: path to fingerprint
type RebuildFunc func(ctx context.Context) (map[string]string, error)

// fileWatcher is implemented by Watcher on every platform
type fileWatcher interface {
	Add(path string) error
	Watch(ctx context.Context) error
	Close() error
}

var newFileWatcher = func(onChange func(string)) (fileWatcher, error) {
	return NewWatcher(onChange)
}

// ErrNothingToWatch is returned when the first build fails without
// reporting any trigger files
var ErrNothingToWatch = errors.New("the first build reported no files to watch")

// Loop builds once, then rebuilds on every content change until ctx is done
func Loop(ctx context.Context, logger zerolog.Logger, rebuild RebuildFunc) error {
	triggers, err := rebuild(ctx)
	if len(triggers) == 0 {
		if err != nil {
			return err
		}
		return ErrNothingToWatch
	}
	if err != nil {
		logger.Error().Err(err).Msg("build failed")
	}
	triggers = absKeys(triggers)

	for {
		changed, err := waitForChange(ctx, logger, triggers)
		if err != nil {
			return err
		}
		if changed == "" {
			return nil
		}

		logger.Info().Str("file", changed).Msg("change detected, rebuilding")
		next, err := rebuild(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("build failed, still watching")
			// remember the new content so the same change does not loop
			if fp, ferr := Fingerprint(changed); ferr == nil {
				triggers[changed] = fp
			}
			continue
		}
		if len(next) > 0 {
			triggers = absKeys(next)
		}
		logger.Info().Int("files", len(triggers)).Msg("build finished, watching")
	}
}

// waitForChange returns the first watched file whose content differs from
// its recorded fingerprint, or "" when ctx is done
func waitForChange(ctx context.Context, logger zerolog.Logger, triggers map[string]string) (string, error) {
	events := make(chan string, 16)
	w, err := newFileWatcher(func(path string) {
		select {
		case events <- path:
		default:
		}
	})
	if err != nil {
		return "", err
	}
	defer w.Close()

	for path := range triggers {
		if err := w.Add(path); err != nil {
			logger.Warn().Err(err).Str("file", path).Msg("not watching")
		}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	watchErr := make(chan error, 1)
	go func() { watchErr <- w.Watch(watchCtx) }()

	for {
		select {
		case <-ctx.Done():
			return "", nil
		case err := <-watchErr:
			if err != nil {
				return "", err
			}
			return "", nil
		case path := <-events:
			fp, err := Fingerprint(path)
			if err != nil {
				// deleted or being replaced; the build will report it
				logger.Debug().Err(err).Str("file", path).Msg("fingerprint failed")
				return path, nil
			}
			if fp != triggers[path] {
				return path, nil
			}
			logger.Debug().Str("file", path).Msg("touched but unchanged")
		}
	}
}

func absKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for path, fp := range m {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		out[path] = fp
	}
	return out
}
