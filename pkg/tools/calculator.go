// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

// Package tools provides the stock tools and resources shipped with Atlas.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/tool"
)

// ErrDivisionByZero is returned by the calculator when b is zero.
var ErrDivisionByZero = errors.New("division by zero")

// Calculator applies a binary arithmetic operation to a and b.
type Calculator struct{}

func (Calculator) Name() string        { return "calculator" }
func (Calculator) Description() string { return "A simple calculator tool" }

func (Calculator) Execute(_ context.Context, params core.Params) (core.Params, error) {
	op, err := params.RequireString("operation")
	if err != nil {
		return nil, err
	}
	a, ok := params.Float("a")
	if !ok {
		return nil, fmt.Errorf("parameter %q is required", "a")
	}
	b, ok := params.Float("b")
	if !ok {
		return nil, fmt.Errorf("parameter %q is required", "b")
	}

	var result float64
	switch op {
	case "add":
		result = a + b
	case "subtract":
		result = a - b
	case "multiply":
		result = a * b
	case "divide":
		if b == 0 {
			return nil, ErrDivisionByZero
		}
		result = a / b
	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}
	return core.Params{"result": result}, nil
}

// Descriptor returns the registry descriptor with an input schema.
func (c Calculator) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        c.Name(),
		Description: c.Description(),
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"operation": tool.EnumProperty("Arithmetic operation", "add", "subtract", "multiply", "divide"),
				"a":         tool.NumberProperty("Left operand"),
				"b":         tool.NumberProperty("Right operand"),
			},
			"required": []string{"operation", "a", "b"},
		},
	}
}
