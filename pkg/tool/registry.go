// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

// Package tool holds the registry of named tools and their descriptors.
package tool

import (
	"sync"

	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

type entry struct {
	tool       core.Tool
	descriptor Descriptor
	schema     *jsonschema.Schema
}

// Registry maps tool names to implementations and descriptors. A name has a
// descriptor if and only if it has a tool. All methods are safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register stores t under name with a default descriptor built from the
// tool's description, an empty config and no input schema. Registering an
// existing name replaces both the tool and its descriptor.
func (r *Registry) Register(name string, t core.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		r.order = append(r.order, name)
	}
	r.entries[name] = &entry{tool: t, descriptor: defaultDescriptor(name, t)}
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (core.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.tool, true
}

// Descriptor returns a copy of the descriptor registered under name.
func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Descriptor{}, false
	}
	return e.descriptor.clone(), true
}

// UpdateConfig replaces the descriptor of a registered tool. The descriptor
// name is forced to name. An input schema that does not compile is rejected
// with INVALID_CONFIG and leaves the previous descriptor in place.
func (r *Registry) UpdateConfig(name string, d Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return errors.ToolNotFound(name)
	}
	schema, err := compileSchema(d.InputSchema)
	if err != nil {
		return errors.InvalidConfig("invalid input schema for " + name + ": " + err.Error())
	}
	d = d.clone()
	d.Name = name
	if d.Config == nil {
		d.Config = core.Params{}
	}
	e.descriptor = d
	e.schema = schema
	return nil
}

// List returns every descriptor in first-registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].descriptor.clone())
	}
	return out
}

// Names returns the registered tool names in first-registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Resolve looks up name and builds its execution context from params. It
// fails with TOOL_NOT_FOUND for unknown names and INVALID_REQUEST when params
// do not satisfy the input schema.
func (r *Registry) Resolve(name string, params core.Params) (core.Tool, *Context, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	var (
		t    core.Tool
		tctx *Context
	)
	if ok {
		t = e.tool
		tctx = &Context{Config: e.descriptor.clone(), Params: params, schema: e.schema}
	}
	r.mu.RUnlock()
	if !ok {
		return nil, nil, errors.ToolNotFound(name)
	}
	if err := tctx.Validate(); err != nil {
		return nil, nil, err
	}
	return t, tctx, nil
}
