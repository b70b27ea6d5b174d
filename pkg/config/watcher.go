// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"
)

// stamp identifies one version of a file on disk.
type stamp struct {
	mod  time.Time
	size int64
}

func statStamp(path string) (stamp, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return stamp{}, false
	}
	return stamp{mod: info.ModTime(), size: info.Size()}, true
}

// Watcher polls a config file (and its profile overlay) and reloads it when
// either changes on disk. Listeners receive every successfully reloaded
// Config; a reload that fails keeps the previous one.
type Watcher struct {
	path     string
	profile  string
	interval time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	stamps    map[string]stamp
	config    *Config
	listeners []func(*Config)

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatchInterval sets the polling interval. Defaults to one second.
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithWatchProfile reloads path together with its profile overlay.
func WithWatchProfile(profile string) WatcherOption {
	return func(w *Watcher) { w.profile = profile }
}

// NewWatcher loads path and records the current version of every watched
// file.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: time.Second,
		logger:   slog.Default(),
		stamps:   make(map[string]stamp),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.checkForChanges()

	cfg, err := LoadWithProfile(w.path, w.profile)
	if err != nil {
		return nil, err
	}
	w.config = cfg
	return w, nil
}

func (w *Watcher) files() []string {
	if w.path == "" {
		return nil
	}
	if w.profile == "" {
		return []string{w.path}
	}
	return []string{w.path, profileConfigPath(w.path, w.profile)}
}

// OnChange registers fn for every successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Config returns the most recently loaded configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Start polls in the background until ctx ends or Stop is called. Calling
// it more than once has no effect.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() { go w.watch(ctx) })
}

// Stop ends polling and waits for it to finish. It is safe to call
// without Start and more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.startOnce.Do(func() { close(w.doneCh) })
	<-w.doneCh
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if w.checkForChanges() {
				w.reload()
			}
		}
	}
}

// checkForChanges updates the recorded stamps and reports whether any
// watched file appeared or changed. Files that vanish are ignored.
func (w *Watcher) checkForChanges() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	changed := false
	for _, p := range w.files() {
		st, ok := statStamp(p)
		if !ok {
			continue
		}
		if prev, seen := w.stamps[p]; !seen || !prev.mod.Equal(st.mod) || prev.size != st.size {
			w.stamps[p] = st
			changed = true
		}
	}
	return changed
}

// Reload loads the files now, regardless of their stamps, and notifies
// listeners on success.
func (w *Watcher) Reload() error {
	w.checkForChanges()
	return w.reload()
}

func (w *Watcher) reload() error {
	cfg, err := LoadWithProfile(w.path, w.profile)
	if err != nil {
		w.logger.Error("config.reload.error", slog.String("path", w.path), slog.String("error", err.Error()))
		return err
	}

	w.mu.Lock()
	w.config = cfg
	listeners := slices.Clone(w.listeners)
	w.mu.Unlock()

	w.logger.Info("config.reload", slog.String("path", w.path))
	for _, fn := range listeners {
		fn(cfg)
	}
	return nil
}
