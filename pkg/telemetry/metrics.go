// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records tool, task and memory instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	toolCalls       metric.Int64Counter
	toolDuration    metric.Float64Histogram
	tasks           metric.Int64Counter
	memoryEvictions metric.Int64Counter
	memoryEntries   metric.Int64Gauge
}

// NewMetrics creates the Atlas instruments on meter, or on the global
// "atlas" meter when meter is nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter("atlas")
	}
	toolCalls, err := meter.Int64Counter(
		"atlas.tool.calls",
		metric.WithDescription("Tool executions by tool and outcome"),
	)
	if err != nil {
		return nil, err
	}
	toolDuration, err := meter.Float64Histogram(
		"atlas.tool.duration_ms",
		metric.WithDescription("Tool execution latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	tasks, err := meter.Int64Counter(
		"atlas.tasks",
		metric.WithDescription("Tasks reaching a terminal status"),
	)
	if err != nil {
		return nil, err
	}
	evictions, err := meter.Int64Counter(
		"atlas.memory.evictions",
		metric.WithDescription("Memory entries evicted by the capacity bound"),
	)
	if err != nil {
		return nil, err
	}
	entries, err := meter.Int64Gauge(
		"atlas.memory.entries",
		metric.WithDescription("Entries currently held by the memory store"),
	)
	if err != nil {
		return nil, err
	}
	return &Metrics{
		toolCalls:       toolCalls,
		toolDuration:    toolDuration,
		tasks:           tasks,
		memoryEvictions: evictions,
		memoryEntries:   entries,
	}, nil
}

// RecordToolCall records one tool execution. code is empty on success.
func (m *Metrics) RecordToolCall(ctx context.Context, name string, d time.Duration, code string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(AttrToolName, name),
		attribute.Bool(AttrToolSuccess, code == ""),
	}
	if code != "" {
		attrs = append(attrs, attribute.String(AttrErrorCode, code))
	}
	set := metric.WithAttributes(attrs...)
	m.toolCalls.Add(ctx, 1, set)
	m.toolDuration.Record(ctx, float64(d.Microseconds())/1000, set)
}

// RecordTask counts a task that reached status.
func (m *Metrics) RecordTask(ctx context.Context, status, code string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String(AttrTaskStatus, status)}
	if code != "" {
		attrs = append(attrs, attribute.String(AttrErrorCode, code))
	}
	m.tasks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEviction counts one evicted memory entry.
func (m *Metrics) RecordEviction(ctx context.Context) {
	if m == nil {
		return
	}
	m.memoryEvictions.Add(ctx, 1)
}

// SetMemoryEntries reports the current memory size.
func (m *Metrics) SetMemoryEntries(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.memoryEntries.Record(ctx, int64(n))
}
