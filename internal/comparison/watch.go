package comparison

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchDirectionTable reloads the table at path whenever it changes and
// passes it to onChange. It runs until ctx is cancelled. A table that fails
// to load is logged and the previous one stays in effect.
//
// The parent directory is watched rather than the file, so editors that save
// by renaming a temporary file over path keep triggering reloads.
func WatchDirectionTable(ctx context.Context, path string, onChange func(*DirectionTable)) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	slog.Info("Watching direction table", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			// Rename and remove leave nothing to load; the create that follows does
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			table, err := LoadDirectionTable(path)
			if err != nil {
				slog.Error("Failed to reload direction table", "path", path, "error", err)
				continue
			}

			slog.Info("Reloaded direction table", "path", path, "entries", table.Len())
			onChange(table)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("Direction table watcher error", "path", path, "error", err)
		}
	}
}
