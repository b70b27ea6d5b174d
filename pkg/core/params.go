// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"fmt"

	"github.com/mitchellh/copystructure"
	"github.com/spf13/cast"
)

// Params is the JSON-like key/value object exchanged with tools, resources
// and agent state.
type Params map[string]any

// String returns the value at key converted to a string. The second result is
// false when the key is absent or cannot be converted.
func (p Params) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	return s, true
}

// Float returns the value at key as a float64. Numeric strings are accepted.
func (p Params) Float(key string) (float64, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Bool returns the value at key as a bool.
func (p Params) Bool(key string) (bool, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return false, false
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// RequireString is String with an error for missing or empty values.
func (p Params) RequireString(key string) (string, error) {
	s, ok := p.String(key)
	if !ok || s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

// Clone returns a deep copy of p. Values that cannot be deep-copied are
// shared with the original.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = CloneValue(v)
	}
	return out
}

// Merge copies every key of other into p, overwriting existing keys.
func (p Params) Merge(other Params) {
	for k, v := range other {
		p[k] = v
	}
}

// CloneValue deep-copies a JSON-like value.
func CloneValue(v any) any {
	if v == nil {
		return nil
	}
	c, err := copystructure.Copy(v)
	if err != nil {
		return v
	}
	return c
}
