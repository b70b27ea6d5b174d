// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/jllopis/atlas/pkg/core"
	"go.opentelemetry.io/otel/trace"
)

// ConfigureSlog sets the global slog logger. Records logged with a context
// gain trace_id and span_id from the active span and task_id from
// core.WithTaskID.
func ConfigureSlog(output io.Writer, level, format string) *slog.Logger {
	logger := NewLogger(output, level, format)
	slog.SetDefault(logger)
	return logger
}

// NewLogger builds the same logger as ConfigureSlog without installing it.
func NewLogger(output io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLogLevel(level)}
	var base slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		base = slog.NewJSONHandler(output, opts)
	default:
		base = slog.NewTextHandler(output, opts)
	}
	return slog.New(&contextHandler{next: base})
}

type contextHandler struct {
	next slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, record slog.Record) error {
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			addIfMissing(&record, slog.String("trace_id", sc.TraceID().String()))
			addIfMissing(&record, slog.String("span_id", sc.SpanID().String()))
		}
		if id, ok := core.TaskID(ctx); ok {
			addIfMissing(&record, slog.String("task_id", id))
		}
	}
	return h.next.Handle(ctx, record)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name)}
}

// ParseLogLevel maps a level name to slog.Level, defaulting to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func addIfMissing(record *slog.Record, attr slog.Attr) {
	found := false
	record.Attrs(func(a slog.Attr) bool {
		if a.Key == attr.Key {
			found = true
			return false
		}
		return true
	})
	if !found {
		record.AddAttrs(attr)
	}
}
