// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reports rewrites of the file slot by other processes (a second
// gemchat, an editor) until ctx is cancelled. The in-memory collection stays
// authoritative; a foreign write is logged and passed to onChange, and will
// be overwritten by this process's next save. onChange may be nil.
func Watch(ctx context.Context, slot *FileSlot, log *zap.Logger, onChange func()) error {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("storage.watch").With(zap.String("path", slot.Path()))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory: atomic saves replace the file, which would drop a
	// watch on the file itself.
	dir := filepath.Dir(slot.Path())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		watcher.Close()
		return fmt.Errorf("create sessions directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(slot.Path())
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				data, err := os.ReadFile(target)
				if err != nil || len(data) == 0 || slot.isOwnWrite(data) {
					continue
				}
				log.Warn("sessions file was changed by another process; it will be overwritten on next save")
				if onChange != nil {
					onChange()
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Debug("watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
