// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

// Package core defines the capability contracts shared by every Atlas package.
package core

import "context"

// Tool is a named capability that maps a parameter object to a result object.
// Implementations are shared across concurrent executions and must be safe
// for concurrent use.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, params Params) (Params, error)
}

// Resource is a named, typed data source an agent can read from.
type Resource interface {
	Name() string
	ResourceType() string
	Access(ctx context.Context, params Params) (Params, error)
}

// ToolFunc adapts a plain function into a Tool.
type ToolFunc struct {
	ToolName        string
	ToolDescription string
	Fn              func(ctx context.Context, params Params) (Params, error)
}

// Name implements Tool.
func (t ToolFunc) Name() string { return t.ToolName }

// Description implements Tool.
func (t ToolFunc) Description() string { return t.ToolDescription }

// Execute implements Tool.
func (t ToolFunc) Execute(ctx context.Context, params Params) (Params, error) {
	return t.Fn(ctx, params)
}
