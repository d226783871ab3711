package loader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for the folder to settle
// before reloading.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads a Loader when *.py files in its folder change.
type Watcher struct {
	loader   *Loader
	debounce time.Duration
	log      *slog.Logger
}

// NewWatcher creates a watcher for l. A non-positive debounce uses
// DefaultDebounce.
func NewWatcher(l *Loader, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{loader: l, debounce: debounce, log: l.log.With("component", "watcher")}
}

// Run watches the folder until ctx is cancelled. Bursts of changes
// collapse into one reload.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.loader.Folder()); err != nil {
		return fmt.Errorf("watching %s: %w", w.loader.Folder(), err)
	}
	w.log.Info("watching script folder", "folder", w.loader.Folder())

	var (
		timer   *time.Timer
		timeout <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			w.log.Debug("script changed", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timeout = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "error", err)

		case <-timeout:
			timeout = nil
			if err := w.loader.Reload(ctx); err != nil {
				w.log.Error("reload failed", "error", err)
			}
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if filepath.Ext(ev.Name) != ".py" {
		return false
	}
	return ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}
