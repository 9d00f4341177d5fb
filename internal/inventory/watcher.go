package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadHook observes every reload attempt; err is nil on success.
type ReloadHook func(count int, err error)

// CSVWatcher reloads a repository whenever its CSV file changes on disk.
type CSVWatcher struct {
	path     string
	repo     Repository
	logger   *slog.Logger
	onReload ReloadHook
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

func NewCSVWatcher(path string, repo Repository, logger *slog.Logger, onReload ReloadHook) (*CSVWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create csv watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWatcher{
		path:     filepath.Clean(path),
		repo:     repo,
		logger:   logger,
		onReload: onReload,
		debounce: 200 * time.Millisecond,
		watcher:  w,
	}, nil
}

// Start watches the directory holding the file, so editors that replace the
// file by rename are still seen. It returns once the watch is registered.
func (w *CSVWatcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	go func() {
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.path {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				pending = time.After(w.debounce)
			case <-pending:
				pending = nil
				w.Reload(ctx)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("inventory csv watcher error", "path", w.path, "error", err)
			}
		}
	}()
	return nil
}

// Reload reads the file and swaps the catalogue. A broken file keeps the
// previous catalogue.
func (w *CSVWatcher) Reload(ctx context.Context) {
	items, err := LoadCSV(w.path)
	if err == nil {
		err = w.repo.Replace(ctx, items)
	}
	if err != nil {
		w.logger.Warn("inventory csv reload failed", "path", w.path, "error", err)
	} else {
		w.logger.Info("inventory csv reloaded", "path", w.path, "items", len(items))
	}
	if w.onReload != nil {
		w.onReload(len(items), err)
	}
}

func (w *CSVWatcher) Close() error {
	return w.watcher.Close()
}
