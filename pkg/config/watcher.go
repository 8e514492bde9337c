// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadHandler is called with the freshly loaded config after a change.
type ReloadHandler func(cfg *ConnectConfig)

// Watcher reloads the config file when it changes on disk.
//
// # Description
//
// Watches the config file's directory (editors replace files by rename, so
// watching the file inode directly misses rewrites) and debounces bursts of
// events before reloading. A reload that fails to parse or validate is
// logged and dropped; the previous config stays in effect.
//
// # Thread Safety
//
// Safe for concurrent use. The handler is called from a single goroutine.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	handler  ReloadHandler
	debounce time.Duration
	logger   *slog.Logger

	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// WatcherOptions configures the config Watcher.
type WatcherOptions struct {
	// DebounceWindow is how long to wait for more changes before reloading.
	// Default: 250ms
	DebounceWindow time.Duration
}

// DefaultWatcherOptions returns sensible defaults.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		DebounceWindow: 250 * time.Millisecond,
	}
}

// NewWatcher creates a watcher for the given config file.
//
// # Inputs
//   - path: Config file path. The parent directory must exist.
//   - handler: Called with each successfully reloaded config.
//   - logger: Logger for reload outcomes. If nil, uses slog.Default().
//   - opts: Optional configuration (nil uses defaults).
//
// # Outputs
//   - *Watcher: Ready-to-use watcher (call Start to begin watching).
//   - error: Non-nil if the underlying notifier could not be created.
func NewWatcher(path string, handler ReloadHandler, logger *slog.Logger, opts *WatcherOptions) (*Watcher, error) {
	if opts == nil {
		defaults := DefaultWatcherOptions()
		opts = &defaults
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		path:     path,
		watcher:  watcher,
		handler:  handler,
		debounce: opts.DebounceWindow,
		logger:   logger.With(slog.String("component", "config_watcher")),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching for config changes.
//
// The goroutine exits when Stop() is called or the context is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil // Already watching
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.run(ctx)

	return nil
}

// Stop stops the config watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching returns true if the watcher is currently active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// run filters events for the config file, debounces, and reloads.
func (w *Watcher) run(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			// Reset or start debounce timer
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watch error", slog.String("error", err.Error()))

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()
		}
	}
}

// reload loads the config and invokes the handler on success.
func (w *Watcher) reload() {
	cfg, err := LoadFrom(w.path)
	if err != nil {
		w.logger.Warn("config reload rejected",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return
	}

	w.logger.Info("config reloaded", slog.String("path", w.path))

	if w.handler != nil {
		w.handler(cfg)
	}
}
