// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/errors"
	"github.com/jllopis/atlas/pkg/runtime"
	"github.com/jllopis/atlas/pkg/task"
)

func TestCalculator(t *testing.T) {
	cases := []struct {
		op      string
		a, b    any
		want    float64
		wantErr string
	}{
		{op: "add", a: 5.0, b: 3.0, want: 8},
		{op: "subtract", a: 10.0, b: 4.0, want: 6},
		{op: "multiply", a: 6, b: 7, want: 42},
		{op: "divide", a: 15.0, b: 3.0, want: 5},
		{op: "divide", a: "9", b: "3", want: 3},
		{op: "divide", a: 1.0, b: 0.0, wantErr: "division by zero"},
		{op: "power", a: 2.0, b: 3.0, wantErr: "unknown operation"},
	}
	for _, tc := range cases {
		t.Run(tc.op, func(t *testing.T) {
			out, err := Calculator{}.Execute(context.Background(), core.Params{"operation": tc.op, "a": tc.a, "b": tc.b})
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected %q error, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if out["result"] != tc.want {
				t.Fatalf("result = %v, want %v", out["result"], tc.want)
			}
		})
	}
}

func TestCalculatorMissingOperands(t *testing.T) {
	for _, params := range []core.Params{
		{"a": 1, "b": 2},
		{"operation": "add", "b": 2},
		{"operation": "add", "a": 1},
	} {
		if _, err := (Calculator{}).Execute(context.Background(), params); err == nil {
			t.Fatalf("expected error for %v", params)
		}
	}
}

func TestCalculatorThroughRuntime(t *testing.T) {
	rt, err := runtime.New(runtime.Config{Name: "calculator_agent"})
	if err != nil {
		t.Fatalf("runtime.New: %v", err)
	}
	if err := RegisterBuiltins(rt.Registry(), rt.Resources(), ""); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}

	out, err := rt.ExecuteTask(context.Background(), uuid.New(), core.Params{"tool": "calculator", "operation": "divide", "a": 15.0, "b": 3.0})
	if err != nil || out["result"] != 5.0 {
		t.Fatalf("divide = %v, %v", out, err)
	}

	id := uuid.New()
	_, err = rt.ExecuteTask(context.Background(), id, core.Params{"tool": "calculator", "operation": "divide", "a": 15.0, "b": 0.0})
	if !errors.HasCode(err, errors.CodeToolExecutionFailed) || !stderrors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected wrapped division error, got %v", err)
	}
	rec, _ := rt.GetTask(id)
	if rec.Status != task.StatusFailed || rec.Error == "" {
		t.Fatalf("unexpected record %+v", rec)
	}

	_, err = rt.ExecuteTask(context.Background(), uuid.New(), core.Params{"tool": "calculator", "operation": "root", "a": 1.0, "b": 1.0})
	if !errors.HasCode(err, errors.CodeInvalidRequest) {
		t.Fatalf("schema should reject unknown operation, got %v", err)
	}
}

func TestWeather(t *testing.T) {
	out, err := Weather{}.Execute(context.Background(), core.Params{"location": "Barcelona"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out["location"] != "Barcelona" || out["temperature"] != 22.5 || out["conditions"] != "sunny" || out["humidity"] != 45 {
		t.Fatalf("unexpected output %v", out)
	}
	if _, err := (Weather{}).Execute(context.Background(), core.Params{}); err == nil {
		t.Fatalf("expected error without location")
	}
}

func TestNewsFiltersByID(t *testing.T) {
	news := NewNews()
	all, err := news.Access(context.Background(), nil)
	if err != nil {
		t.Fatalf("Access: %v", err)
	}
	if got := all["articles"].([]any); len(got) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(got))
	}
	one, _ := news.Access(context.Background(), core.Params{"id": "2"})
	got := one["articles"].([]any)
	if len(got) != 1 || got[0].(map[string]any)["title"] != "MCP Protocol Gains Adoption" {
		t.Fatalf("unexpected filter result %v", got)
	}
	none, _ := news.Access(context.Background(), core.Params{"id": "99"})
	if got := none["articles"].([]any); len(got) != 0 {
		t.Fatalf("expected no articles, got %v", got)
	}
}

func TestFileToolsStayInsideRoot(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "root")
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "note.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, "secret.txt"), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(base, "secret.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	files, err := NewFileRoot(root)
	if err != nil {
		t.Fatalf("NewFileRoot: %v", err)
	}
	read := files.ReadTool()

	out, err := read.Execute(context.Background(), core.Params{"path": "sub/note.txt"})
	if err != nil || out["content"] != "hello" {
		t.Fatalf("read = %v, %v", out, err)
	}
	for _, p := range []string{"../secret.txt", "link.txt", filepath.Join(base, "secret.txt")} {
		if _, err := read.Execute(context.Background(), core.Params{"path": p}); !stderrors.Is(err, ErrPathOutsideRoot) {
			t.Fatalf("path %q: expected ErrPathOutsideRoot, got %v", p, err)
		}
	}

	listing, err := files.ListTool().Execute(context.Background(), core.Params{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	entries := listing["entries"].([]any)
	if len(entries) != 2 || entries[1].(map[string]any)["name"] != "sub" {
		t.Fatalf("unexpected listing %v", entries)
	}
}

func TestNewFileRootRejectsFiles(t *testing.T) {
	f := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(f, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileRoot(f); err == nil {
		t.Fatalf("expected error for non-directory root")
	}
}

func TestRegisterBuiltins(t *testing.T) {
	rt, err := runtime.New(runtime.Config{Name: "builtins"})
	if err != nil {
		t.Fatalf("runtime.New: %v", err)
	}
	if err := RegisterBuiltins(rt.Registry(), rt.Resources(), t.TempDir()); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	want := []string{"calculator", "weather", "file_read", "file_list"}
	names := rt.Registry().Names()
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i, n := range want {
		if names[i] != n {
			t.Fatalf("names[%d] = %q, want %q", i, names[i], n)
		}
		if d, _ := rt.Registry().Descriptor(n); d.InputSchema == nil {
			t.Fatalf("%s registered without schema", n)
		}
	}
	if _, ok := rt.Resources().Get("news"); !ok {
		t.Fatalf("news resource missing")
	}
}
