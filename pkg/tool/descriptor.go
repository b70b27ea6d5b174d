// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"github.com/jllopis/atlas/pkg/core"
)

// Descriptor is the public metadata of a registered tool. A nil InputSchema
// means parameters are not validated.
type Descriptor struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Config      core.Params    `json:"config" yaml:"config"`
	InputSchema map[string]any `json:"input_schema,omitempty" yaml:"input_schema,omitempty"`
}

// defaultDescriptor derives the descriptor a tool gets on registration.
func defaultDescriptor(name string, t core.Tool) Descriptor {
	return Descriptor{
		Name:        name,
		Description: t.Description(),
		Config:      core.Params{},
	}
}

func (d Descriptor) clone() Descriptor {
	out := d
	out.Config = d.Config.Clone()
	if d.InputSchema != nil {
		out.InputSchema = map[string]any(core.Params(d.InputSchema).Clone())
	}
	return out
}
