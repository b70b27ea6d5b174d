// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package core

import "context"

type taskIDKey struct{}
type toolNameKey struct{}

// WithTaskID attaches the executing task id to the context.
func WithTaskID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, taskIDKey{}, id)
}

// TaskID returns the task id if present.
func TaskID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(taskIDKey{}).(string)
	return id, ok
}

// WithToolName attaches the resolved tool name to the context.
func WithToolName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, toolNameKey{}, name)
}

// ToolName returns the tool name if present.
func ToolName(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	name, ok := ctx.Value(toolNameKey{}).(string)
	return name, ok
}
