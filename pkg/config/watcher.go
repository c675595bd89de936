package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is the quiet period before a change triggers a reload.
const DefaultDebounceInterval = 250 * time.Millisecond

// Watcher reloads the configuration file when it changes on disk.
// It watches the parent directory so that editors which replace the file
// through a rename are still observed.
type Watcher struct {
	path     string
	interval time.Duration
	logger   *slog.Logger
	onReload func(*Config)
}

// NewWatcher creates a watcher for the configuration file at path. onReload
// is called with each successfully loaded configuration, after it has been
// stored by ReloadConfig. Failed reloads are logged and the previous
// configuration stays active.
func NewWatcher(path string, logger *slog.Logger, onReload func(*Config)) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     path,
		interval: DefaultDebounceInterval,
		logger:   logger,
		onReload: onReload,
	}
}

// Watch blocks until ctx is cancelled, reloading the file after each burst
// of changes.
func (w *Watcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	d := newDebouncer(w.interval)
	defer d.stop()

	w.logger.Info("config watcher started",
		"path", w.path,
		"debounce_ms", w.interval.Milliseconds(),
	)

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != target || event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}

			w.logger.Debug("config file event", "path", event.Name, "op", event.Op.String())
			d.trigger(w.reload)

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	if err := ReloadConfig(w.path); err != nil {
		w.logger.Error("config reload failed, keeping previous configuration", "error", err)
		return
	}

	cfg := GetConfig()
	w.logger.Info("config reloaded", "path", w.path)
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// debouncer collects rapid events and runs the last callback after a quiet period.
type debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			fn()
		}
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
