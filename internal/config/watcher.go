// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the configuration file when it changes on disk.
// Editors typically write config.toml via rename, so the watcher
// observes the parent directory and debounces bursts of events.
type Watcher struct {
	path     string
	debounce time.Duration
	onReload func(*Config)

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc

	mu      sync.Mutex
	pending bool
	lastEvt time.Time
}

// NewWatcher creates a watcher for the given config path. onReload is
// called with the freshly loaded configuration after each change that
// parses and validates; invalid intermediate states are skipped.
func NewWatcher(path string, debounce time.Duration, onReload func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	return &Watcher{
		path:     path,
		debounce: debounce,
		onReload: onReload,
		watcher:  fsw,
	}, nil
}

// Start begins watching. It returns immediately; events are processed
// on a background goroutine until Close is called.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	go w.loop(ctx)
	return nil
}

// Close stops watching and releases resources. Safe to call more than once.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != filepath.Clean(w.path) {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending = true
			w.lastEvt = time.Now()
			w.mu.Unlock()

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are transient; keep going.

		case <-ticker.C:
			w.mu.Lock()
			fire := w.pending && time.Since(w.lastEvt) >= w.debounce
			if fire {
				w.pending = false
			}
			w.mu.Unlock()

			if fire {
				if cfg, err := LoadFrom(w.path); err == nil {
					SetGlobal(cfg)
					if w.onReload != nil {
						w.onReload(cfg)
					}
				}
			}
		}
	}
}
