package workflow

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the engine's snapshot whenever the workflow config file in
// dir changes. A config that fails to parse is logged and skipped; the
// previous snapshot stays active. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, dir string, engine *Engine, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Join(dir, ConfigFileName)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(target) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			snap, err := Load(dir)
			if err != nil {
				logger.Warn("workflow config reload failed, keeping previous", "error", err)
				continue
			}
			engine.Reload(snap)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("workflow config watcher error", "error", err)
		}
	}
}
