// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp exposes an Atlas runtime over the Model Context Protocol and
// imports tools from remote MCP servers.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/governance"
	"github.com/jllopis/atlas/pkg/runtime"
	"github.com/jllopis/atlas/pkg/tool"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ResourceURIPrefix prefixes the URI of every exported resource.
const ResourceURIPrefix = "atlas://resources/"

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger used by tool and resource handlers.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithInstructions sets the instructions advertised on initialize.
func WithInstructions(text string) ServerOption {
	return func(s *Server) {
		s.instructions = text
	}
}

// WithToolFilter hides tools the filter does not allow from tools/list.
// Calls are still gated by the runtime's own middleware.
func WithToolFilter(f *governance.ToolFilter) ServerOption {
	return func(s *Server) {
		s.filter = f
	}
}

// Server exposes a runtime's tools and resources to MCP clients. Every tool
// call becomes a task with a fresh id.
type Server struct {
	rt           *runtime.Runtime
	mcpServer    *server.MCPServer
	logger       *slog.Logger
	instructions string
	filter       *governance.ToolFilter
}

// NewServer creates a server for rt and registers everything rt currently
// knows about.
func NewServer(rt *runtime.Runtime, name, version string, opts ...ServerOption) *Server {
	s := &Server{rt: rt, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	serverOpts := []server.ServerOption{
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
	}
	if s.instructions != "" {
		serverOpts = append(serverOpts, server.WithInstructions(s.instructions))
	}
	s.mcpServer = server.NewMCPServer(name, version, serverOpts...)
	s.Sync()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Sync registers every tool and resource of the runtime, replacing earlier
// registrations with the same name. Tools hidden by the filter are removed.
func (s *Server) Sync() {
	descriptors := s.rt.ListTools()
	visible := make(map[string]bool, len(descriptors))
	if s.filter != nil {
		names := make([]string, len(descriptors))
		for i, d := range descriptors {
			names[i] = d.Name
		}
		for _, name := range s.filter.FilterTools(context.Background(), names) {
			visible[name] = true
		}
	}
	var hidden []string
	for _, d := range descriptors {
		if s.filter != nil && !visible[d.Name] {
			hidden = append(hidden, d.Name)
			continue
		}
		s.mcpServer.AddTool(toolDefinition(d), s.toolHandler(d.Name))
	}
	if len(hidden) > 0 {
		s.mcpServer.DeleteTools(hidden...)
	}
	for _, info := range s.rt.Resources().List() {
		res := mcp.NewResource(ResourceURIPrefix+info.Name, info.Name,
			mcp.WithResourceDescription(info.ResourceType+" resource"),
			mcp.WithMIMEType("application/json"),
		)
		s.mcpServer.AddResource(res, s.resourceHandler(info.Name))
	}
}

func toolDefinition(d tool.Descriptor) mcp.Tool {
	if len(d.InputSchema) > 0 {
		if raw, err := json.Marshal(d.InputSchema); err == nil {
			return mcp.NewToolWithRawSchema(d.Name, d.Description, raw)
		}
	}
	return mcp.NewTool(d.Name, mcp.WithDescription(d.Description))
}

func (s *Server) toolHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params := core.Params(request.GetArguments()).Clone()
		if params == nil {
			params = core.Params{}
		}
		params[runtime.ToolParam] = name
		id := uuid.New()
		out, err := s.rt.ExecuteTask(ctx, id, params)
		if err != nil {
			s.logger.WarnContext(ctx, "mcp.tool.error",
				slog.String("tool", name),
				slog.String("task_id", id.String()),
				slog.String("error", err.Error()),
			)
			return mcp.NewToolResultError(err.Error()), nil
		}
		text, err := json.Marshal(out)
		if err != nil {
			return mcp.NewToolResultError("encode result: " + err.Error()), nil
		}
		return mcp.NewToolResultStructured(map[string]any(out), string(text)), nil
	}
}

func (s *Server) resourceHandler(name string) server.ResourceHandlerFunc {
	return func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		out, err := s.rt.AccessResource(ctx, name, core.Params(request.Params.Arguments))
		if err != nil {
			return nil, err
		}
		text, err := json.Marshal(out)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      request.Params.URI,
				MIMEType: "application/json",
				Text:     string(text),
			},
		}, nil
	}
}

// ServeStdio serves on stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeStreamableHTTP serves on addr until ctx is cancelled.
func (s *Server) ServeStreamableHTTP(ctx context.Context, addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start(addr)
	}()
	s.logger.Info("mcp.http.start", slog.String("addr", addr))
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
