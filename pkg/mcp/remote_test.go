// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jllopis/atlas/pkg/config"
	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/errors"
	"github.com/jllopis/atlas/pkg/runtime"
)

func TestConnectRemotesRegistersPrefixedTools(t *testing.T) {
	upstream, _ := newTestServer(t)
	dial := func(cfg config.RemoteToolConfig) (*Client, error) {
		if cfg.Name == "down" {
			return nil, stderrors.New("connection refused")
		}
		return NewInProcessClient(upstream.MCPServer(), WithRetry(0, 0))
	}

	local, err := runtime.New(runtime.Config{Name: "local"})
	if err != nil {
		t.Fatalf("runtime.New: %v", err)
	}
	remotes := ConnectRemotes(context.Background(), local.Registry(), []config.RemoteToolConfig{
		{Name: "upstream", Prefix: "up."},
		{Name: "down", Command: "missing"},
	}, dial, nil)
	t.Cleanup(func() { _ = remotes.Close() })

	if remotes.Len() != 1 {
		t.Fatalf("expected one connected remote, got %d", remotes.Len())
	}
	if failed := remotes.Ping(context.Background()); len(failed) != 0 {
		t.Fatalf("unexpected ping failures %v", failed)
	}
	if got := remotes.Tools("upstream"); len(got) != 2 {
		t.Fatalf("expected 2 remote tools, got %v", got)
	}
	d, ok := local.Registry().Descriptor("up.echo")
	if !ok || d.InputSchema == nil {
		t.Fatalf("remote schema not registered: %+v", d)
	}

	out, err := local.ExecuteTask(context.Background(), uuid.New(), core.Params{"tool": "up.echo", "message": "relayed"})
	if err != nil {
		t.Fatalf("ExecuteTask: %v", err)
	}
	if out["message"] != "relayed" {
		t.Fatalf("unexpected output %v", out)
	}

	_, err = local.ExecuteTask(context.Background(), uuid.New(), core.Params{"tool": "up.broken"})
	if !errors.HasCode(err, errors.CodeToolExecutionFailed) {
		t.Fatalf("expected TOOL_EXECUTION_FAILED, got %v", err)
	}
}
