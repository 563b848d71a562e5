package config

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 500 * time.Millisecond

// Watch reloads the config whenever the file at path changes and hands the
// result to onReload. Load errors leave the previous config in place and are
// only logged. Blocks until ctx is done. The parent directory is watched so
// editor rename-and-replace saves are seen.
func Watch(ctx context.Context, path string, logger *log.Logger, onReload func(*Config)) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Printf("config watcher unavailable: %v", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.Printf("config watcher unavailable: %v", err)
		return
	}

	var debounce *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			cfg, err := Load(path)
			if err != nil {
				logger.Printf("config reload failed, keeping previous config: %v", err)
				continue
			}
			logger.Printf("config reloaded: %d policies", len(cfg.Policies))
			onReload(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Printf("config watcher error: %v", err)
		}
	}
}
