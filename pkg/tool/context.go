// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Context is the per-execution view of a tool call handed to middleware: the
// descriptor at resolution time plus the request parameters.
type Context struct {
	Config Descriptor
	Params core.Params

	schema *jsonschema.Schema
}

// NewContext builds a Context for an unregistered descriptor. The descriptor's
// schema, if any, is compiled on the first Validate call.
func NewContext(cfg Descriptor, params core.Params) *Context {
	return &Context{Config: cfg, Params: params}
}

// Name returns the tool name being executed.
func (c *Context) Name() string {
	return c.Config.Name
}

// RouteParam is the params key a caller uses to name the tool to run.
const RouteParam = "tool"

// Validate checks Params against the descriptor's input schema. A RouteParam
// entry naming this tool is routing data and is left out of the check.
func (c *Context) Validate() error {
	if c.Config.InputSchema == nil {
		return nil
	}
	if c.schema == nil {
		schema, err := compileSchema(c.Config.InputSchema)
		if err != nil {
			return errors.InvalidConfig("invalid input schema for " + c.Config.Name + ": " + err.Error())
		}
		c.schema = schema
	}
	params := make(map[string]any, len(c.Params))
	for k, v := range c.Params {
		params[k] = v
	}
	if name, ok := params[RouteParam].(string); ok && name == c.Config.Name {
		delete(params, RouteParam)
	}
	payload, err := normalizeJSON(params)
	if err != nil {
		return errors.InvalidRequest("params are not JSON encodable", err).WithContext("tool", c.Config.Name)
	}
	if err := c.schema.Validate(payload); err != nil {
		return errors.InvalidRequest("params do not match input schema of "+c.Config.Name, err).
			WithContext("tool", c.Config.Name)
	}
	return nil
}
