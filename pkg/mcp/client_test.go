// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"os"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const mcpStdioHelperEnv = "ATLAS_MCP_STDIO_HELPER"

func TestHelperMCPStdioServer(t *testing.T) {
	if os.Getenv(mcpStdioHelperEnv) != "1" {
		return
	}
	s, _ := newTestServer(t)
	if err := s.ServeStdio(); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

func TestClientStdioListToolsAndCall(t *testing.T) {
	t.Setenv(mcpStdioHelperEnv, "1")

	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	client, err := NewClientWithStdioProtocol(exe, []string{"-test.run", "TestHelperMCPStdioServer"}, mcpgo.LATEST_PROTOCOL_VERSION)
	if err != nil {
		t.Fatalf("NewClientWithStdioProtocol: %v", err)
	}
	defer client.Close()

	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %+v", tools)
	}
	res, err := client.CallTool(context.Background(), "echo", map[string]any{"message": "over stdio"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	out, err := toolResultToParams(res)
	if err != nil || out["message"] != "over stdio" {
		t.Fatalf("unexpected result %v, %v", out, err)
	}
}

func TestClientStreamableHTTPListTools(t *testing.T) {
	s, _ := newTestServer(t)
	httpServer := mcpserver.NewTestStreamableHTTPServer(s.MCPServer())
	defer httpServer.Close()

	client, err := NewClientWithStreamableHTTP(httpServer.URL)
	if err != nil {
		t.Fatalf("NewClientWithStreamableHTTP: %v", err)
	}
	defer client.Close()

	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 2 || tools[0].Name == "" {
		t.Fatalf("unexpected tools %+v", tools)
	}
}

func TestClientCachesToolList(t *testing.T) {
	s, _ := newTestServer(t)
	client := newInProcess(t, s)

	first, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	s.MCPServer().AddTool(mcpgo.NewTool("late"), func(context.Context, mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		return mcpgo.NewToolResultText("late"), nil
	})

	second, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("cached list changed: %d -> %d", len(first), len(second))
	}

	client.InvalidateTools()
	third, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(third) != len(first)+1 {
		t.Fatalf("expected refreshed list with late tool, got %d tools", len(third))
	}
}

func TestClientPing(t *testing.T) {
	s, _ := newTestServer(t)
	if err := newInProcess(t, s).Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
