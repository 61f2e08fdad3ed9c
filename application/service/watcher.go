package service

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/infrastructure/discovery"
)

// DefaultSettleInterval is how long the watcher waits after the last
// filesystem event before triggering a sync.
const DefaultSettleInterval = 2 * time.Second

// Watcher turns filesystem notifications into debounced sync runs. It
// watches the root tree recursively and fires one sync per quiet period.
type Watcher struct {
	sync       *Sync
	root       string
	collection string
	settle     time.Duration
	logger     *slog.Logger
}

// NewWatcher creates a Watcher. A non-positive settle interval uses the
// default.
func NewWatcher(sync *Sync, root, collection string, settle time.Duration, logger *slog.Logger) *Watcher {
	if settle <= 0 {
		settle = DefaultSettleInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{sync: sync, root: root, collection: collection, settle: settle, logger: logger}
}

// Run watches until ctx is cancelled. Sync failures are logged, not fatal;
// the debouncer still gates how often syncs actually run.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(errs.KindIo, "creating filesystem watcher", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.root); err != nil {
		return err
	}
	w.logger.Info("watching for changes",
		slog.String("root", w.root),
		slog.String("collection", w.collection))

	timer := time.NewTimer(w.settle)
	if !timer.Stop() {
		<-timer.C
	}
	dirty := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if evt.Op.Has(fsnotify.Create) {
				// New directories need their own watch to stay recursive;
				// addTree ignores plain files.
				_ = w.addTree(fsw, evt.Name)
			}
			if !dirty {
				dirty = true
			} else if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.settle)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		case <-timer.C:
			dirty = false
			if _, err := w.sync.Run(ctx, w.root, w.collection); err != nil {
				w.logger.Warn("watch-triggered sync failed",
					slog.String("root", w.root),
					slog.String("error", err.Error()))
			}
		}
	}
}

// addTree registers dir and every non-denied subdirectory with the watcher.
// Paths that are not directories are ignored.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && discovery.DeniedDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			w.logger.Warn("cannot watch directory",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return nil
	})
}
