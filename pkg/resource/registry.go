// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

// Package resource holds the named data sources an agent can read.
package resource

import (
	"context"
	"sync"

	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/errors"
)

// Info describes a registered resource.
type Info struct {
	Name         string `json:"name"`
	ResourceType string `json:"resource_type"`
}

// Registry maps names to resources. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]core.Resource
	order     []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{resources: make(map[string]core.Resource)}
}

// Register stores r under its own name, replacing any previous resource.
func (reg *Registry) Register(r core.Resource) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	name := r.Name()
	if _, ok := reg.resources[name]; !ok {
		reg.order = append(reg.order, name)
	}
	reg.resources[name] = r
}

// Get returns the resource registered under name.
func (reg *Registry) Get(name string) (core.Resource, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.resources[name]
	return r, ok
}

// List returns every resource in first-registration order.
func (reg *Registry) List() []Info {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]Info, 0, len(reg.order))
	for _, name := range reg.order {
		out = append(out, Info{Name: name, ResourceType: reg.resources[name].ResourceType()})
	}
	return out
}

// Access reads resource name. Unknown names fail with RESOURCE_NOT_FOUND and
// errors from the resource are wrapped as RESOURCE_ACCESS_FAILED.
func (reg *Registry) Access(ctx context.Context, name string, params core.Params) (core.Params, error) {
	r, ok := reg.Get(name)
	if !ok {
		return nil, errors.ResourceNotFound(name)
	}
	out, err := r.Access(ctx, params)
	if err != nil {
		return nil, errors.ResourceAccessFailed(name, err)
	}
	return out, nil
}
