// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ShutdownFunc flushes and releases telemetry resources.
type ShutdownFunc func(context.Context) error

// Config controls telemetry exporter behavior.
type Config struct {
	Exporter     string // none, stdout, otlp
	OTLPEndpoint string
	OTLPInsecure bool
	// Writer receives stdout exporter output. Defaults to os.Stderr so the
	// stdio MCP transport keeps stdout to itself.
	Writer io.Writer
}

// Init installs global tracer and meter providers for the configured
// exporter. With exporter "none" (or empty) the global no-op providers are
// left in place and the returned ShutdownFunc does nothing.
func Init(serviceName, version string, cfg Config) (ShutdownFunc, error) {
	if cfg.Exporter == "" || cfg.Exporter == "none" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	tp, mp, err := initProviders(res, cfg)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

type exporters struct {
	spans   trace.SpanExporter
	metrics metric.Exporter
}

func initProviders(res *resource.Resource, cfg Config) (*trace.TracerProvider, *metric.MeterProvider, error) {
	var (
		exp exporters
		err error
	)
	switch cfg.Exporter {
	case "stdout":
		exp, err = stdoutExporters(cfg.Writer)
	case "otlp":
		exp, err = otlpExporters(cfg)
	default:
		err = fmt.Errorf("unknown telemetry exporter: %s", cfg.Exporter)
	}
	if err != nil {
		return nil, nil, err
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exp.spans, trace.WithBatchTimeout(time.Second)),
		trace.WithResource(res),
	)
	mp := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exp.metrics, metric.WithInterval(time.Minute))),
		metric.WithResource(res),
	)
	return tp, mp, nil
}

func stdoutExporters(w io.Writer) (exporters, error) {
	if w == nil {
		w = os.Stderr
	}
	spans, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return exporters{}, fmt.Errorf("stdout span exporter: %w", err)
	}
	metrics, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return exporters{}, fmt.Errorf("stdout metric exporter: %w", err)
	}
	return exporters{spans: spans, metrics: metrics}, nil
}

// otlpExporters dials cfg.OTLPEndpoint over gRPC. The dial is lazy, so an
// unreachable collector does not fail startup.
func otlpExporters(cfg Config) (exporters, error) {
	if cfg.OTLPEndpoint == "" {
		return exporters{}, fmt.Errorf("otlp endpoint is required")
	}
	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}

	ctx := context.Background()
	spans, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return exporters{}, fmt.Errorf("otlp span exporter: %w", err)
	}
	metrics, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return exporters{}, fmt.Errorf("otlp metric exporter: %w", err)
	}
	return exporters{spans: spans, metrics: metrics}, nil
}
