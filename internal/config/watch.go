package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// Watch reloads path whenever it changes and calls onChange with the new
// config. It watches the parent directory so editors that replace the file
// by rename are handled. Returns when ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("config watch %s: %w", filepath.Dir(abs), err)
	}

	var (
		mu       sync.Mutex
		timer    *time.Timer
		lastHash string
	)
	reload := func() {
		cfg, err := Load(abs)
		if err != nil {
			slog.Warn("config: reload failed", "path", abs, "error", err)
			return
		}
		h := cfg.Hash()
		mu.Lock()
		same := h == lastHash
		lastHash = h
		mu.Unlock()
		if same {
			return
		}
		slog.Info("config: reloaded", "path", abs, "hash", h)
		onChange(cfg)
	}
	if cfg, err := Load(abs); err == nil {
		lastHash = cfg.Hash()
	}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, reload)
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config: watcher error", "error", err)
		}
	}
}
