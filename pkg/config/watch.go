package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange whenever settings.toml is written or recreated until
// ctx is done. The parent directory is watched so editors that replace the
// file on save are still observed.
func (c *Configer) Watch(ctx context.Context, onChange func()) error {
	if c.targetPath == "" {
		return errors.New("cannot watch empty target path")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating settings watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(c.targetPath)); err != nil {
		return fmt.Errorf("watching settings dir: %w", err)
	}

	target := filepath.Clean(c.targetPath)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("settings watcher: %w", err)
		}
	}
}
