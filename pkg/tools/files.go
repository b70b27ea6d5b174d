// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/tool"
)

// DefaultMaxReadSize caps how much of a file FileRead returns.
const DefaultMaxReadSize int64 = 1 << 20

// ErrPathOutsideRoot is returned for paths that resolve outside the root.
var ErrPathOutsideRoot = errors.New("path escapes file root")

// FileRoot confines file tools to one directory tree. Symlinks are resolved
// before the containment check.
type FileRoot struct {
	root        string
	maxReadSize int64
}

// NewFileRoot resolves dir and checks that it is an existing directory.
func NewFileRoot(dir string) (*FileRoot, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("file root is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve file root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve file root: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("file root is not a directory: %q", resolved)
	}
	return &FileRoot{root: resolved, maxReadSize: DefaultMaxReadSize}, nil
}

// Root returns the resolved root directory.
func (f *FileRoot) Root() string { return f.root }

// Resolve maps a path relative to the root to an absolute path inside it.
func (f *FileRoot) Resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q is absolute", ErrPathOutsideRoot, rel)
	}
	candidate := filepath.Join(f.root, rel)
	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return "", err
	}
	if !within(f.root, resolved) {
		return "", fmt.Errorf("%w: %q", ErrPathOutsideRoot, rel)
	}
	return resolved, nil
}

func within(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ReadTool returns the file_read tool.
func (f *FileRoot) ReadTool() core.Tool { return fileRead{f} }

// ListTool returns the file_list tool.
func (f *FileRoot) ListTool() core.Tool { return fileList{f} }

type fileRead struct{ f *FileRoot }

func (fileRead) Name() string        { return "file_read" }
func (fileRead) Description() string { return "Read a text file below the configured root" }

func (t fileRead) Execute(_ context.Context, params core.Params) (core.Params, error) {
	rel, err := params.RequireString("path")
	if err != nil {
		return nil, err
	}
	path, err := t.f.Resolve(rel)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%q is a directory", rel)
	}
	data, err := io.ReadAll(io.LimitReader(file, t.f.maxReadSize))
	if err != nil {
		return nil, err
	}
	return core.Params{
		"path":      rel,
		"content":   string(data),
		"size":      info.Size(),
		"truncated": info.Size() > t.f.maxReadSize,
	}, nil
}

func (t fileRead) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"path": tool.StringProperty("Path relative to the file root")},
			"required":   []string{"path"},
		},
	}
}

type fileList struct{ f *FileRoot }

func (fileList) Name() string        { return "file_list" }
func (fileList) Description() string { return "List a directory below the configured root" }

func (t fileList) Execute(_ context.Context, params core.Params) (core.Params, error) {
	rel, ok := params.String("path")
	if !ok || rel == "" {
		rel = "."
	}
	path, err := t.f.Resolve(rel)
	if err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	sort.Slice(dirEntries, func(i, j int) bool { return dirEntries[i].Name() < dirEntries[j].Name() })
	entries := make([]any, 0, len(dirEntries))
	for _, e := range dirEntries {
		entry := map[string]any{"name": e.Name(), "dir": e.IsDir()}
		if info, err := e.Info(); err == nil && !e.IsDir() {
			entry["size"] = info.Size()
		}
		entries = append(entries, entry)
	}
	return core.Params{"path": rel, "entries": entries}, nil
}

func (t fileList) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"path": tool.StringProperty("Directory relative to the file root")},
		},
	}
}
