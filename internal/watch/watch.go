// Package watch reloads a file whenever it changes on disk.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debounce is how long the file must stay quiet before it is reloaded.
const Debounce = 200 * time.Millisecond

// ReloadFunc is called with the new file content. An error means the
// content was rejected; it is logged and the previous state kept.
type ReloadFunc func(data []byte) error

// File watches the directory holding path and calls reload after each
// burst of changes to path, until ctx is cancelled. Editors that replace
// the file by renaming over it are handled because the directory, not the
// file, is watched.
func File(ctx context.Context, path string, logger *slog.Logger, reload ReloadFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("path", abs))

	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(Debounce)
			timerCh = timer.C
		} else {
			timer.Reset(Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			data, readErr := os.ReadFile(abs)
			if readErr != nil {
				logger.Warn("watcher: read failed", slog.String("path", abs), slog.String("error", readErr.Error()))
				continue
			}
			if err := reload(data); err != nil {
				logger.Warn("watcher: reload rejected", slog.String("path", abs), slog.String("error", err.Error()))
				continue
			}
			logger.Info("watcher: reloaded", slog.String("path", abs))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
