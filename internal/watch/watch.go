// Package watch re-runs discovery whenever the interaction database
// changes on disk. The sync pipeline writes interactions from its own
// process, so a file watcher is the cheapest change signal available.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher debounces filesystem events on one database file into
// discovery runs.
type Watcher struct {
	path     string
	debounce time.Duration
	run      func(context.Context) error
	logger   *log.Logger

	// skips a triggered run while the previous one is still going;
	// the next file event will schedule another.
	running sync.Mutex
}

// New creates a Watcher over the database at path. run is invoked once
// at startup and then after every debounced change.
func New(path string, debounce time.Duration, run func(context.Context) error, logger *log.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{
		path:     path,
		debounce: debounce,
		run:      run,
		logger:   logger,
	}
}

// Watch blocks until ctx is cancelled, re-running discovery on changes.
// SQLite writes touch the WAL and journal siblings too, so the watch is
// on the directory and filtered by the database basename.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	base := filepath.Base(w.path)

	w.logger.Info("watching for interaction changes", "dir", dir, "debounce", w.debounce)

	w.runOnce(ctx)

	var debounceTimer *time.Timer
	trigger := func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(w.debounce, func() { w.runOnce(ctx) })
	}
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if strings.Contains(filepath.Base(event.Name), base) {
				trigger()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !w.running.TryLock() {
		w.logger.Debug("discovery already running, skipping trigger")
		return
	}
	defer w.running.Unlock()

	start := time.Now()
	if err := w.run(ctx); err != nil {
		w.logger.Error("discovery run failed", "error", err)
		return
	}
	w.logger.Info("discovery run complete", "elapsed", time.Since(start).Round(time.Millisecond))
}
