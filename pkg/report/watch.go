package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reruns a callback whenever artifact or policy files change.
type Watcher struct {
	logger   zerolog.Logger
	debounce time.Duration
}

// NewWatcher creates a watcher. A zero debounce means DefaultDebounce.
func NewWatcher(logger zerolog.Logger, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		logger:   logger.With().Str("component", "report-watcher").Logger(),
		debounce: debounce,
	}
}

// Watch calls onChange once, then again after every burst of changes to .json or
// .rego files under the directories in paths, or to any file named in paths.
// It blocks until ctx is done and returns nil then.
// An error from the first call is returned before watching starts; later errors
// are logged and do not stop the watch.
func (w *Watcher) Watch(ctx context.Context, paths []string, onChange func(context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	watched := 0
	files := make(map[string]bool)
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("Failed to stat path for watching")
			continue
		}
		if info.IsDir() {
			err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() {
					watched++
					return watcher.Add(p)
				}
				return nil
			})
		} else {
			watched++
			files[filepath.Clean(path)] = true
			err = watcher.Add(path)
		}
		if err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch path")
		}
	}
	if watched == 0 {
		return fmt.Errorf("none of the paths can be watched: %s", strings.Join(paths, ", "))
	}

	if err := onChange(ctx); err != nil {
		return err
	}

	trigger := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	w.logger.Info().Int("paths", watched).Msg("Watching for result changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, files) {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Watched file changed")

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case <-trigger:
			w.run(ctx, onChange)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) run(ctx context.Context, onChange func(context.Context) error) {
	if err := onChange(ctx); err != nil {
		w.logger.Error().Err(err).Msg("Refresh failed")
	}
}

func relevant(event fsnotify.Event, files map[string]bool) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if files[filepath.Clean(event.Name)] {
		return true
	}
	return strings.HasSuffix(event.Name, ".json") || strings.HasSuffix(event.Name, ".rego")
}
