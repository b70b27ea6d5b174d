// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"

	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/tool"
)

// Weather reports canned conditions for any location.
type Weather struct{}

func (Weather) Name() string        { return "weather" }
func (Weather) Description() string { return "Get weather information for a location" }

func (Weather) Execute(_ context.Context, params core.Params) (core.Params, error) {
	location, err := params.RequireString("location")
	if err != nil {
		return nil, err
	}
	return core.Params{
		"location":    location,
		"temperature": 22.5,
		"conditions":  "sunny",
		"humidity":    45,
	}, nil
}

// Descriptor returns the registry descriptor with an input schema.
func (w Weather) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        w.Name(),
		Description: w.Description(),
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"location": tool.StringProperty("City or place name"),
			},
			"required": []string{"location"},
		},
	}
}
