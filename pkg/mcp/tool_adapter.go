// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/errors"
	"github.com/jllopis/atlas/pkg/runtime"
	"github.com/jllopis/atlas/pkg/tool"
	"github.com/mark3labs/mcp-go/mcp"
)

// ToolCaller abstracts MCP tool execution for adapters.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// ToolAdapter exposes a remote MCP tool as a core.Tool. The local name is
// the remote name with an optional prefix.
type ToolAdapter struct {
	tool   mcp.Tool
	caller ToolCaller
	prefix string
}

// NewToolAdapter builds a core.Tool backed by an MCP tool definition and caller.
func NewToolAdapter(t mcp.Tool, caller ToolCaller, prefix string) (*ToolAdapter, error) {
	if t.Name == "" {
		return nil, errors.InvalidConfig("mcp tool name is required")
	}
	if caller == nil {
		return nil, errors.InvalidConfig("mcp tool caller is required")
	}
	return &ToolAdapter{tool: t, caller: caller, prefix: prefix}, nil
}

// Name returns the local tool name.
func (t *ToolAdapter) Name() string {
	return t.prefix + t.tool.Name
}

// Description returns the remote description.
func (t *ToolAdapter) Description() string {
	return t.tool.Description
}

// Descriptor returns the registry descriptor, including the remote input
// schema when the server published one.
func (t *ToolAdapter) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        t.Name(),
		Description: t.tool.Description,
		Config:      core.Params{"remote_name": t.tool.Name},
		InputSchema: inputSchema(t.tool),
	}
}

// Execute forwards params to the remote tool. The task routing key is
// dropped when it only names this tool.
func (t *ToolAdapter) Execute(ctx context.Context, params core.Params) (core.Params, error) {
	args := map[string]any(params.Clone())
	if args == nil {
		args = map[string]any{}
	}
	if name, ok := args[runtime.ToolParam].(string); ok && name == t.Name() {
		delete(args, runtime.ToolParam)
	}
	if err := validateRequiredArgs(t.tool, args); err != nil {
		return nil, err
	}
	result, err := t.caller.CallTool(ctx, t.tool.Name, args)
	if err != nil {
		return nil, err
	}
	return toolResultToParams(result)
}

func inputSchema(t mcp.Tool) map[string]any {
	var raw []byte
	if len(t.RawInputSchema) > 0 {
		raw = t.RawInputSchema
	} else if t.InputSchema.Type != "" {
		encoded, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil
		}
		raw = encoded
	}
	if len(raw) == 0 {
		return nil
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil
	}
	return schema
}

func validateRequiredArgs(t mcp.Tool, args map[string]any) error {
	schema := t.InputSchema
	if schema.Type != "" && schema.Type != "object" {
		return nil
	}
	for _, key := range schema.Required {
		if _, ok := args[key]; !ok {
			return errors.InvalidRequest(fmt.Sprintf("mcp tool args: missing required field %q", key), nil)
		}
	}
	return nil
}

func toolResultToParams(result *mcp.CallToolResult) (core.Params, error) {
	if result == nil {
		return nil, fmt.Errorf("mcp tool result is nil")
	}
	text := extractTextContent(result.Content)
	if result.IsError {
		return nil, fmt.Errorf("mcp tool returned error: %s", text)
	}
	if result.StructuredContent != nil {
		if m, ok := result.StructuredContent.(map[string]any); ok {
			return core.Params(m), nil
		}
		return core.Params{"result": result.StructuredContent}, nil
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return core.Params(decoded), nil
		}
	}
	return core.Params{"text": text}, nil
}

func extractTextContent(items []mcp.Content) string {
	if len(items) == 0 {
		return ""
	}
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// RegisterRemoteTools lists the tools of client and registers each one in
// reg under prefix. A schema the local compiler rejects is dropped and the
// tool is registered without validation.
func RegisterRemoteTools(ctx context.Context, reg *tool.Registry, client *Client, prefix string) ([]string, error) {
	tools, err := client.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		adapter, err := NewToolAdapter(t, client, prefix)
		if err != nil {
			return names, err
		}
		reg.Register(adapter.Name(), adapter)
		d := adapter.Descriptor()
		if err := reg.UpdateConfig(d.Name, d); err != nil {
			d.InputSchema = nil
			if err := reg.UpdateConfig(d.Name, d); err != nil {
				return names, err
			}
		}
		names = append(names, adapter.Name())
	}
	return names, nil
}

var _ core.Tool = (*ToolAdapter)(nil)
