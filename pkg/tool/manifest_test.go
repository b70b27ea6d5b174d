// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/errors"
)

func TestManifestApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.yaml")
	data := []byte(`
tools:
  - name: echo
    config:
      region: eu
    input_schema:
      type: object
      properties:
        message:
          type: string
          minLength: 1
      required: [message]
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r := NewRegistry()
	r.Register("echo", echoTool("Echo params"))
	if err := m.Apply(r); err != nil {
		t.Fatalf("apply: %v", err)
	}

	d, _ := r.Descriptor("echo")
	if d.Description != "Echo params" {
		t.Fatalf("expected description to be kept, got %q", d.Description)
	}
	if d.Config["region"] != "eu" {
		t.Fatalf("expected config from manifest, got %v", d.Config)
	}
	if _, _, err := r.Resolve("echo", core.Params{"message": ""}); !errors.HasCode(err, errors.CodeInvalidRequest) {
		t.Fatalf("expected minLength to be enforced, got %v", err)
	}
}

func TestManifestUnknownTool(t *testing.T) {
	m, err := ParseManifest([]byte("tools:\n  - name: ghost\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := m.Apply(NewRegistry()); !errors.HasCode(err, errors.CodeToolNotFound) {
		t.Fatalf("expected TOOL_NOT_FOUND, got %v", err)
	}
}

func TestManifestRequiresNames(t *testing.T) {
	if _, err := ParseManifest([]byte("tools:\n  - description: nameless\n")); err == nil {
		t.Fatalf("expected error for unnamed entry")
	}
}
