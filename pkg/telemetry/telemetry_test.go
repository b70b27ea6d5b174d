// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/atlas/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitNoneIsNoop(t *testing.T) {
	shutdown, err := Init("atlas-test", "v0.0.1", Config{Exporter: "none"})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestInitStdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init("atlas-test", "v0.0.1", Config{Exporter: "stdout", Writer: &buf})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestInitRejectsUnknownExporter(t *testing.T) {
	if _, err := Init("atlas-test", "v0", Config{Exporter: "zipkin"}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := Init("atlas-test", "v0", Config{Exporter: "otlp"}); err == nil {
		t.Fatalf("expected error for missing endpoint")
	}
}

func TestLoggerAddsContextIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "debug", "json")

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	ctx = core.WithTaskID(ctx, "task-42")
	logger.InfoContext(ctx, "runtime.task.start")
	span.End()

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec["task_id"] != "task-42" {
		t.Errorf("expected task_id, got %v", rec["task_id"])
	}
	if rec["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("expected trace_id, got %v", rec["trace_id"])
	}
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "text")
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	ctx := context.Background()
	m.RecordToolCall(ctx, "calculator", 3*time.Millisecond, "")
	m.RecordToolCall(ctx, "calculator", time.Millisecond, "TOOL_EXECUTION_FAILED")
	m.RecordTask(ctx, "completed", "")
	m.RecordEviction(ctx)
	m.SetMemoryEntries(ctx, 7)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if s, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range s.DataPoints {
					sums[md.Name] += dp.Value
				}
			}
		}
	}
	if sums["atlas.tool.calls"] != 2 || sums["atlas.tasks"] != 1 || sums["atlas.memory.evictions"] != 1 {
		t.Fatalf("unexpected sums %v", sums)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordToolCall(context.Background(), "x", time.Second, "")
	m.RecordTask(context.Background(), "failed", "TASK_ERROR")
	m.RecordEviction(context.Background())
	m.SetMemoryEntries(context.Background(), 1)
}

func TestPolicyAttributes(t *testing.T) {
	attrs := PolicyAttributes(false, "denied", "r1")
	if len(attrs) != 3 || attrs[0] != attribute.Bool(AttrPolicyAllowed, false) {
		t.Fatalf("unexpected attrs %v", attrs)
	}
	if len(ToolAttributes("calc", "")) != 1 || len(TaskAttributes("a", "t", "")) != 2 {
		t.Fatalf("unexpected optional attrs")
	}
}
