// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is a YAML document of descriptor overrides.
//
//	tools:
//	  - name: calculator
//	    description: Basic arithmetic
//	    input_schema:
//	      type: object
//	      required: [operation, a, b]
type Manifest struct {
	Tools []Descriptor `yaml:"tools"`
}

// LoadManifest reads a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tool manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes a manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse tool manifest: %w", err)
	}
	for i, d := range m.Tools {
		if d.Name == "" {
			return nil, fmt.Errorf("parse tool manifest: entry %d has no name", i)
		}
	}
	return &m, nil
}

// Apply installs each manifest descriptor through UpdateConfig. An empty
// description keeps the one already registered. Every entry must name a
// registered tool.
func (m *Manifest) Apply(r *Registry) error {
	for _, d := range m.Tools {
		if d.Description == "" {
			if current, ok := r.Descriptor(d.Name); ok {
				d.Description = current.Description
			}
		}
		if err := r.UpdateConfig(d.Name, d); err != nil {
			return err
		}
	}
	return nil
}
