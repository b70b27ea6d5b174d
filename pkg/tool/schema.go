// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaURL = "atlas://tool/input.json"

// compileSchema compiles a JSON Schema document. Documents built in Go or
// decoded from YAML are normalised through JSON first so numbers and nested
// maps have the shapes the compiler expects.
func compileSchema(doc map[string]any) (*jsonschema.Schema, error) {
	if doc == nil {
		return nil, nil
	}
	normalized, err := normalizeJSON(doc)
	if err != nil {
		return nil, fmt.Errorf("normalize schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, normalized); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func normalizeJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}

// StringProperty describes a string parameter.
func StringProperty(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// NumberProperty describes a numeric parameter.
func NumberProperty(description string) map[string]any {
	return map[string]any{"type": "number", "description": description}
}

// BooleanProperty describes a boolean parameter.
func BooleanProperty(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}

// EnumProperty describes a string parameter limited to values.
func EnumProperty(description string, values ...string) map[string]any {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return map[string]any{"type": "string", "description": description, "enum": enum}
}

// ArrayProperty describes an array whose elements match items.
func ArrayProperty(items map[string]any, description string) map[string]any {
	return map[string]any{"type": "array", "items": items, "description": description}
}

// ObjectProperty describes an object with the given properties; required
// lists the mandatory keys.
func ObjectProperty(properties map[string]any, required []string, description string) map[string]any {
	out := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		req := make([]any, len(required))
		for i, r := range required {
			req[i] = r
		}
		out["required"] = req
	}
	if strings.TrimSpace(description) != "" {
		out["description"] = description
	}
	return out
}
