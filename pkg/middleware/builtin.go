// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/errors"
	"github.com/jllopis/atlas/pkg/governance"
	"github.com/jllopis/atlas/pkg/telemetry"
	"github.com/jllopis/atlas/pkg/tool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Logging logs the start and outcome of every tool call.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return Func(func(ctx context.Context, tc *tool.Context, next Next) (core.Params, error) {
		start := time.Now()
		logger.DebugContext(ctx, "tool.execute.start", slog.String("tool", tc.Name()))
		result, err := next(ctx, tc)
		elapsed := time.Since(start)
		if err != nil {
			logger.WarnContext(ctx, "tool.execute.error",
				slog.String("tool", tc.Name()),
				slog.String("code", string(errors.CodeOf(err))),
				slog.Duration("duration", elapsed),
				slog.String("error", err.Error()),
			)
			return nil, err
		}
		logger.InfoContext(ctx, "tool.execute.complete",
			slog.String("tool", tc.Name()),
			slog.Duration("duration", elapsed),
		)
		return result, nil
	})
}

// Tracing wraps each tool call in a "Tool.Execute" span. A nil tracer uses
// the global provider.
func Tracing(tracer trace.Tracer) Middleware {
	if tracer == nil {
		tracer = otel.Tracer("atlas/middleware")
	}
	return Func(func(ctx context.Context, tc *tool.Context, next Next) (core.Params, error) {
		taskID, _ := core.TaskID(ctx)
		ctx, span := tracer.Start(ctx, "Tool.Execute", trace.WithAttributes(
			telemetry.ToolAttributes(tc.Name(), taskID)...,
		))
		defer span.End()
		result, err := next(ctx, tc)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String(telemetry.AttrErrorCode, string(errors.CodeOf(err))))
			return nil, err
		}
		span.SetAttributes(attribute.Bool(telemetry.AttrToolSuccess, true))
		return result, nil
	})
}

// Metrics records call counts and latency per tool.
func Metrics(m *telemetry.Metrics) Middleware {
	return Func(func(ctx context.Context, tc *tool.Context, next Next) (core.Params, error) {
		start := time.Now()
		result, err := next(ctx, tc)
		m.RecordToolCall(ctx, tc.Name(), time.Since(start), string(errors.CodeOf(err)))
		return result, err
	})
}

// Policy rejects calls the filter does not allow with UNAUTHORIZED. Calls
// that need approval are rejected as well; there is no approval flow.
func Policy(filter *governance.ToolFilter) Middleware {
	return Func(func(ctx context.Context, tc *tool.Context, next Next) (core.Params, error) {
		decision := filter.IsAllowed(ctx, tc.Name())
		trace.SpanFromContext(ctx).SetAttributes(
			telemetry.PolicyAttributes(decision.IsAllowed(), decision.Reason, decision.RuleID)...,
		)
		if decision.IsAllowed() {
			return next(ctx, tc)
		}
		msg := "tool call denied: " + tc.Name()
		if decision.IsPending() {
			msg = "tool call requires approval: " + tc.Name()
		}
		return nil, errors.New(errors.CodeUnauthorized, msg, nil).
			WithContext("tool", tc.Name()).
			WithContext("reason", decision.Reason).
			WithContext("rule_id", decision.RuleID)
	})
}

// RateLimit allows each tool at most r calls per second with the given
// burst. Calls over the limit fail immediately with RATE_LIMITED.
func RateLimit(r rate.Limit, burst int) Middleware {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)
	limiterFor := func(name string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[name]
		if !ok {
			l = rate.NewLimiter(r, burst)
			limiters[name] = l
		}
		return l
	}
	return Func(func(ctx context.Context, tc *tool.Context, next Next) (core.Params, error) {
		if !limiterFor(tc.Name()).Allow() {
			return nil, errors.New(errors.CodeRateLimit, "rate limit exceeded for tool "+tc.Name(), nil).
				WithContext("tool", tc.Name())
		}
		return next(ctx, tc)
	})
}
