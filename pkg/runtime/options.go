// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"log/slog"

	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/errors"
	"github.com/jllopis/atlas/pkg/governance"
	"github.com/jllopis/atlas/pkg/memory"
	"github.com/jllopis/atlas/pkg/middleware"
	"github.com/jllopis/atlas/pkg/state"
	"github.com/jllopis/atlas/pkg/task"
	"github.com/jllopis/atlas/pkg/telemetry"
	"github.com/jllopis/atlas/pkg/tool"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Runtime.
type Option func(*Runtime) error

// WithTool registers t under name.
func WithTool(name string, t core.Tool) Option {
	return func(r *Runtime) error {
		if name == "" || t == nil {
			return errors.InvalidConfig("tool name and implementation are required")
		}
		r.initial = append(r.initial, namedTool{name: name, tool: t})
		return nil
	}
}

// WithRegistry shares an existing tool registry.
func WithRegistry(reg *tool.Registry) Option {
	return func(r *Runtime) error {
		if reg == nil {
			return errors.InvalidConfig("registry is nil")
		}
		r.registry = reg
		return nil
	}
}

// WithResource registers a resource.
func WithResource(res core.Resource) Option {
	return func(r *Runtime) error {
		if res == nil {
			return errors.InvalidConfig("resource is nil")
		}
		r.resources.Register(res)
		return nil
	}
}

// WithResourcePolicy gates AccessResource with engine.
func WithResourcePolicy(engine governance.PolicyEngine) Option {
	return func(r *Runtime) error {
		r.guard = engine
		return nil
	}
}

// WithMiddleware appends middleware to the pipeline, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(r *Runtime) error {
		r.middleware = append(r.middleware, mws...)
		return nil
	}
}

// WithStateManager uses m instead of a fresh state manager.
func WithStateManager(m *state.Manager) Option {
	return func(r *Runtime) error {
		r.state = m
		return nil
	}
}

// WithMemoryStore attaches a memory log to the default state manager.
func WithMemoryStore(s *memory.Store) Option {
	return func(r *Runtime) error {
		r.store = s
		return nil
	}
}

// WithJournal records every task transition in j.
func WithJournal(j task.Journal) Option {
	return func(r *Runtime) error {
		r.journal = j
		return nil
	}
}

// WithEventEmitter receives task lifecycle events.
func WithEventEmitter(e core.EventEmitter) Option {
	return func(r *Runtime) error {
		if e != nil {
			r.emitter = e
		}
		return nil
	}
}

// WithLockPolicy selects how ExecuteTask holds the state lock.
func WithLockPolicy(p LockPolicy) Option {
	return func(r *Runtime) error {
		parsed, err := ParseLockPolicy(string(p))
		if err != nil {
			return err
		}
		r.policy = parsed
		return nil
	}
}

// WithMaxConcurrent bounds how many submitted tasks run at once.
func WithMaxConcurrent(n int) Option {
	return func(r *Runtime) error {
		if n < 1 {
			return errors.InvalidConfig("max concurrent tasks must be at least 1")
		}
		r.maxConcurrent = n
		return nil
	}
}

// WithLogger sets the runtime logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) error {
		if logger != nil {
			r.logger = logger
		}
		return nil
	}
}

// WithTracer sets the tracer for task spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runtime) error {
		if tracer != nil {
			r.tracer = tracer
		}
		return nil
	}
}

// WithMetrics records task outcomes.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Runtime) error {
		r.metrics = m
		return nil
	}
}
