// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"

	"github.com/jllopis/atlas/pkg/config"
	"github.com/jllopis/atlas/pkg/tool"
)

// Dialer opens a client for one configured remote server.
type Dialer func(cfg config.RemoteToolConfig) (*Client, error)

// DefaultDialer uses Streamable HTTP when a URL is set and stdio otherwise.
func DefaultDialer(opts ...ClientOption) Dialer {
	return func(cfg config.RemoteToolConfig) (*Client, error) {
		if cfg.URL != "" {
			return NewClientWithStreamableHTTP(cfg.URL, opts...)
		}
		return NewClientWithStdio(cfg.Command, cfg.Args, opts...)
	}
}

// Remotes owns the clients of every connected remote server.
type Remotes struct {
	mu      sync.Mutex
	clients map[string]*Client
	tools   map[string][]string
}

// ConnectRemotes dials each configured server and registers its tools in
// reg. A server that fails is logged and skipped so one bad entry does not
// take the others down.
func ConnectRemotes(ctx context.Context, reg *tool.Registry, cfgs []config.RemoteToolConfig, dial Dialer, logger *slog.Logger) *Remotes {
	if logger == nil {
		logger = slog.Default()
	}
	if dial == nil {
		dial = DefaultDialer()
	}
	r := &Remotes{clients: map[string]*Client{}, tools: map[string][]string{}}
	for _, cfg := range cfgs {
		name := cfg.Name
		if name == "" {
			name = cfg.Command + cfg.URL
		}
		client, err := dial(cfg)
		if err != nil {
			logger.Warn("mcp.remote.connect.error", slog.String("remote", name), slog.String("error", err.Error()))
			continue
		}
		names, err := RegisterRemoteTools(ctx, reg, client, cfg.Prefix)
		if err != nil {
			logger.Warn("mcp.remote.tools.error", slog.String("remote", name), slog.String("error", err.Error()))
			_ = client.Close()
			continue
		}
		logger.Info("mcp.remote.connected", slog.String("remote", name), slog.Int("tools", len(names)))
		r.mu.Lock()
		if old, ok := r.clients[name]; ok {
			_ = old.Close()
		}
		r.clients[name] = client
		r.tools[name] = names
		r.mu.Unlock()
	}
	return r
}

// Tools returns the local tool names registered from remote name.
func (r *Remotes) Tools(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tools[name]...)
}

// Len returns the number of connected servers.
func (r *Remotes) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Ping pings every connected server and returns the error of each one that
// did not answer, keyed by remote name.
func (r *Remotes) Ping(ctx context.Context) map[string]error {
	r.mu.Lock()
	clients := maps.Clone(r.clients)
	r.mu.Unlock()

	failed := map[string]error{}
	for name, c := range clients {
		if err := c.Ping(ctx); err != nil {
			failed[name] = err
		}
	}
	return failed
}

// Close closes every client.
func (r *Remotes) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for name, c := range r.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.clients, name)
	}
	return errors.Join(errs...)
}
