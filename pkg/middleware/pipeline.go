// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

// Package middleware composes tool execution with an ordered chain of
// interceptors.
//
// Middleware registered first is outermost: it sees the request first and
// the response last. Each middleware decides whether to call next; not
// calling it short-circuits the rest of the chain and the tool body.
package middleware

import (
	"context"
	"sync"

	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/errors"
	"github.com/jllopis/atlas/pkg/tool"
)

// Next continues the chain. It may be called at most once.
type Next func(ctx context.Context, tc *tool.Context) (core.Params, error)

// Middleware intercepts a tool execution.
type Middleware interface {
	Process(ctx context.Context, tc *tool.Context, next Next) (core.Params, error)
}

// Func adapts a function into a Middleware.
type Func func(ctx context.Context, tc *tool.Context, next Next) (core.Params, error)

// Process implements Middleware.
func (f Func) Process(ctx context.Context, tc *tool.Context, next Next) (core.Params, error) {
	return f(ctx, tc, next)
}

// Pipeline resolves tools from a registry and runs them through the
// middleware chain. It is safe for concurrent use.
type Pipeline struct {
	registry *tool.Registry

	mu    sync.RWMutex
	chain []Middleware
}

// NewPipeline creates a pipeline over reg with an initial chain.
func NewPipeline(reg *tool.Registry, mws ...Middleware) *Pipeline {
	p := &Pipeline{registry: reg}
	p.Use(mws...)
	return p
}

// Use appends middleware to the end of the chain (innermost so far).
// Executions already in flight keep the chain they started with.
func (p *Pipeline) Use(mws ...Middleware) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, mw := range mws {
		if mw != nil {
			p.chain = append(p.chain, mw)
		}
	}
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.chain)
}

// Registry returns the registry the pipeline resolves tools from.
func (p *Pipeline) Registry() *tool.Registry {
	return p.registry
}

// Execute resolves name and runs it through the chain. Resolution happens
// before any middleware: an unknown tool fails with TOOL_NOT_FOUND and
// params rejected by the input schema fail with INVALID_REQUEST without
// invoking middleware. An error returned by the tool body is wrapped as
// TOOL_EXECUTION_FAILED; middleware errors pass through unchanged.
func (p *Pipeline) Execute(ctx context.Context, name string, params core.Params) (core.Params, error) {
	t, tc, err := p.registry.Resolve(name, params)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	chain := make([]Middleware, len(p.chain))
	copy(chain, p.chain)
	p.mu.RUnlock()

	d := &dispatch{chain: chain, tool: t, name: name}
	return d.invoke(core.WithToolName(ctx, name), 0, tc)
}

type dispatch struct {
	chain []Middleware
	tool  core.Tool
	name  string
}

func (d *dispatch) invoke(ctx context.Context, i int, tc *tool.Context) (core.Params, error) {
	if i == len(d.chain) {
		result, err := d.tool.Execute(ctx, tc.Params)
		if err != nil {
			return nil, errors.ToolExecutionFailed(d.name, err)
		}
		return result, nil
	}
	return d.chain[i].Process(ctx, tc, func(ctx context.Context, tc *tool.Context) (core.Params, error) {
		return d.invoke(ctx, i+1, tc)
	})
}
