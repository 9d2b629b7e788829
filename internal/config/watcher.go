package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadCallback is invoked when the settings file changes.
// cfg is the newly parsed config (nil on parse failure).
// errs contains any validation or parse errors.
type ReloadCallback func(cfg *Config, errs []error)

// Watcher monitors the settings file and triggers debounced reloads.
type Watcher struct {
	path     string
	callback ReloadCallback
	logger   *slog.Logger
	debounce time.Duration
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce duration. Default is 1 second.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher creates a settings file watcher.
func NewWatcher(path string, callback ReloadCallback, logger *slog.Logger, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		path:     path,
		callback: callback,
		logger:   logger,
		debounce: time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches the parent directory of the settings file and invokes the
// callback once per burst of write/create/rename events. It blocks until ctx
// is cancelled, then returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	// Editors often save by writing a temp file and renaming it over the
	// original, which drops a watch on the file itself.
	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Base(w.path)
	reloadCh := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case reloadCh <- struct{}{}:
				default:
				}
			})

		case <-reloadCh:
			cfg, errs := Load(w.path)
			w.callback(cfg, errs)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fsnotify error", "path", w.path, "error", err)
		}
	}
}
