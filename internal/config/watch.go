package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay lets editors finish the write-rename dance before the file is
// read again.
const reloadDelay = 200 * time.Millisecond

// Watch reloads the configuration whenever the file changes on disk, until
// ctx is done. Invalid edits are logged and the previous configuration kept.
func (m *Manager) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer w.Close()

	// editors replace the file, so watch its directory
	dir := filepath.Dir(m.configPath)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	name := filepath.Clean(m.configPath)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			timer.Reset(reloadDelay)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("Config: watch error: %v", err)

		case <-timer.C:
			if err := m.Load(); err != nil {
				log.Printf("Config: reload failed, keeping previous settings: %v", err)
				continue
			}
			log.Printf("Config: reloaded %s", m.configPath)
		}
	}
}
