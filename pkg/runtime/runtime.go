// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

// Package runtime hosts one agent: it owns the tool registry, the middleware
// pipeline, the resource registry and the agent state, and runs tasks
// through them.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/errors"
	"github.com/jllopis/atlas/pkg/governance"
	"github.com/jllopis/atlas/pkg/memory"
	"github.com/jllopis/atlas/pkg/middleware"
	"github.com/jllopis/atlas/pkg/resource"
	"github.com/jllopis/atlas/pkg/state"
	"github.com/jllopis/atlas/pkg/task"
	"github.com/jllopis/atlas/pkg/telemetry"
	"github.com/jllopis/atlas/pkg/tool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ToolParam is the params key that names the tool a task runs.
const ToolParam = tool.RouteParam

// DefaultMaxConcurrent bounds submitted tasks when no limit is configured.
const DefaultMaxConcurrent = 8

type namedTool struct {
	name string
	tool core.Tool
}

// Runtime executes tasks for a single agent.
type Runtime struct {
	cfg Config

	registry   *tool.Registry
	resources  *resource.Registry
	pipeline   *middleware.Pipeline
	state      *state.Manager
	store      *memory.Store
	journal    task.Journal
	emitter    core.EventEmitter
	tracer     trace.Tracer
	metrics    *telemetry.Metrics
	logger     *slog.Logger
	policy     LockPolicy
	guard      governance.PolicyEngine
	middleware []middleware.Middleware
	initial    []namedTool

	maxConcurrent int
	sem           chan struct{}
	wg            sync.WaitGroup
}

// New validates cfg and builds a Runtime.
func New(cfg Config, opts ...Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runtime{
		cfg:           cfg,
		resources:     resource.NewRegistry(),
		emitter:       core.NoopEventEmitter{},
		logger:        slog.Default(),
		policy:        LockRelease,
		maxConcurrent: DefaultMaxConcurrent,
	}
	r.cfg.Capabilities = append([]string(nil), cfg.Capabilities...)
	r.cfg.Config = cfg.Config.Clone()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer("atlas/runtime")
	}
	if r.registry == nil {
		r.registry = tool.NewRegistry()
	}
	for _, nt := range r.initial {
		r.registry.Register(nt.name, nt.tool)
	}
	r.initial = nil
	if r.state == nil {
		var smOpts []state.Option
		if r.store != nil {
			smOpts = append(smOpts, state.WithMemoryStore(r.store))
		}
		r.state = state.NewManager(smOpts...)
	}
	r.pipeline = middleware.NewPipeline(r.registry, r.middleware...)
	r.middleware = nil
	r.sem = make(chan struct{}, r.maxConcurrent)
	return r, nil
}

// Config returns a copy of the agent configuration.
func (r *Runtime) Config() Config {
	cfg := r.cfg
	cfg.Capabilities = append([]string(nil), r.cfg.Capabilities...)
	cfg.Config = r.cfg.Config.Clone()
	return cfg
}

// Name returns the agent name.
func (r *Runtime) Name() string { return r.cfg.Name }

// LockPolicy returns the active lock policy.
func (r *Runtime) LockPolicy() LockPolicy { return r.policy }

// Registry returns the tool registry.
func (r *Runtime) Registry() *tool.Registry { return r.registry }

// Resources returns the resource registry.
func (r *Runtime) Resources() *resource.Registry { return r.resources }

// Pipeline returns the middleware pipeline.
func (r *Runtime) Pipeline() *middleware.Pipeline { return r.pipeline }

// State returns the agent state manager.
func (r *Runtime) State() *state.Manager { return r.state }

// RegisterTool adds or replaces a tool.
func (r *Runtime) RegisterTool(name string, t core.Tool) {
	r.registry.Register(name, t)
}

// RegisterResource adds or replaces a resource.
func (r *Runtime) RegisterResource(res core.Resource) {
	r.resources.Register(res)
}

// Use appends middleware to the pipeline.
func (r *Runtime) Use(mws ...middleware.Middleware) {
	r.pipeline.Use(mws...)
}

// ListTools returns the descriptors of every registered tool.
func (r *Runtime) ListTools() []tool.Descriptor {
	return r.registry.List()
}

// GetTask returns a copy of the task record.
func (r *Runtime) GetTask(id uuid.UUID) (task.Record, bool) {
	return r.state.GetTask(id)
}

// ListTasks returns every tracked task.
func (r *Runtime) ListTasks() []task.Record {
	return r.state.ListTasks()
}

// RemoveTask forgets a task. Removing an unknown id is a no-op.
func (r *Runtime) RemoveTask(id uuid.UUID) bool {
	return r.state.RemoveTask(id)
}

// ExecuteTask runs the tool named by params["tool"] under task id and
// returns its output. The task is recorded as Running before the tool is
// resolved, so every failure after that point, including a missing tool
// name, leaves a Failed record behind. Reusing an id returns a TaskError
// and leaves the existing record untouched.
func (r *Runtime) ExecuteTask(ctx context.Context, id uuid.UUID, params core.Params) (core.Params, error) {
	return r.execute(ctx, id, params, false)
}

func (r *Runtime) execute(ctx context.Context, id uuid.UUID, params core.Params, submitted bool) (core.Params, error) {
	taskID := id.String()
	ctx = core.WithTaskID(ctx, taskID)
	ctx, span := r.tracer.Start(ctx, "Runtime.ExecuteTask",
		trace.WithAttributes(telemetry.TaskAttributes(r.cfg.Name, taskID, "")...))
	defer span.End()

	name, _ := params.String(ToolParam)
	var (
		started  task.Record
		finished task.Record
		result   core.Params
		runErr   error
	)

	begin := func(tx *state.Tx) error {
		rec, err := beginTask(tx, id, name, submitted)
		if err != nil {
			return err
		}
		started = rec
		return nil
	}
	run := func() {
		if name == "" {
			runErr = errors.InvalidRequest("task params must name a tool in \""+ToolParam+"\"", nil)
			return
		}
		result, runErr = r.pipeline.Execute(ctx, name, params)
		if runErr == nil && result == nil {
			result = core.Params{}
		}
	}
	// finish settles the record. A task removed while its tool ran stays
	// removed.
	finish := func(tx *state.Tx) {
		rec := started
		if runErr != nil {
			_ = rec.Fail(runErr)
		} else {
			_ = rec.Complete(result.Clone())
		}
		finished = rec
		if _, ok := tx.GetTask(id); !ok {
			return
		}
		tx.UpdateTask(rec)
	}

	start := time.Now()
	var err error
	switch r.policy {
	case LockHold:
		err = r.state.Exclusive(func(tx *state.Tx) error {
			if err := begin(tx); err != nil {
				return err
			}
			run()
			finish(tx)
			return nil
		})
		if err == nil {
			r.record(ctx, started)
		}
	default:
		err = r.state.Exclusive(begin)
		if err == nil {
			r.record(ctx, started)
			run()
			_ = r.state.Exclusive(func(tx *state.Tx) error {
				finish(tx)
				return nil
			})
		}
	}
	if err != nil {
		r.logger.WarnContext(ctx, "runtime.task.rejected",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	r.record(ctx, finished)
	r.metrics.RecordTask(ctx, string(finished.Status), string(finished.ErrorCode))
	span.SetAttributes(telemetry.TaskAttributes(r.cfg.Name, taskID, string(finished.Status))...)
	if runErr != nil {
		r.logger.ErrorContext(ctx, "runtime.task.error",
			slog.String("task_id", taskID),
			slog.String("tool", name),
			slog.String("error_code", string(errors.CodeOf(runErr))),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", runErr.Error()),
		)
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		return nil, runErr
	}
	r.logger.InfoContext(ctx, "runtime.task.complete",
		slog.String("task_id", taskID),
		slog.String("tool", name),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// beginTask records id as Running. A Pending record left by Submit is
// promoted; any other existing record is a conflict.
func beginTask(tx *state.Tx, id uuid.UUID, name string, submitted bool) (task.Record, error) {
	rec, exists := tx.GetTask(id)
	switch {
	case !exists:
		rec = task.NewRecord(id)
	case submitted && rec.Status == task.StatusPending:
	default:
		return task.Record{}, errors.TaskError("task already exists: "+id.String()).
			WithContext("task_id", id.String())
	}
	rec.Tool = name
	if err := rec.Start(); err != nil {
		return task.Record{}, err
	}
	tx.UpdateTask(rec)
	return rec, nil
}

// record publishes a task transition to the journal and the event emitter.
// It runs outside the state lock so emitters may call back into the runtime.
func (r *Runtime) record(ctx context.Context, rec task.Record) {
	if r.journal != nil {
		if err := r.journal.Append(ctx, rec); err != nil {
			r.logger.WarnContext(ctx, "runtime.journal.error",
				slog.String("task_id", rec.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	payload := core.Params{"status": string(rec.Status)}
	if rec.Tool != "" {
		payload["tool"] = rec.Tool
	}
	if rec.Error != "" {
		payload["error"] = rec.Error
		payload["error_code"] = string(rec.ErrorCode)
	}
	r.emitter.Emit(ctx, core.NewEvent(eventFor(rec.Status), r.cfg.Name, rec.ID.String(), payload))
	if rec.Status == task.StatusRunning {
		r.logger.InfoContext(ctx, "runtime.task.start",
			slog.String("task_id", rec.ID.String()),
			slog.String("tool", rec.Tool),
		)
	}
}

func eventFor(s task.Status) core.EventType {
	switch s {
	case task.StatusPending:
		return core.EventTaskSubmitted
	case task.StatusRunning:
		return core.EventTaskStarted
	case task.StatusCompleted:
		return core.EventTaskCompleted
	default:
		return core.EventTaskFailed
	}
}

// Submit records a Pending task and runs it in the background, bounded by
// the configured concurrency. The returned id can be polled with GetTask
// once Wait returns or at any time before. Cancelling ctx does not cancel
// the task.
func (r *Runtime) Submit(ctx context.Context, params core.Params) (uuid.UUID, error) {
	id := uuid.New()
	rec := task.NewRecord(id)
	rec.Tool, _ = params.String(ToolParam)
	if err := r.state.CreateTask(rec); err != nil {
		return uuid.Nil, err
	}
	ctx = core.WithTaskID(ctx, id.String())
	r.record(ctx, rec)

	params = params.Clone()
	bg := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.sem <- struct{}{}
		defer func() { <-r.sem }()
		_, _ = r.execute(bg, id, params, true)
	}()
	return id, nil
}

// Wait blocks until every submitted task has finished.
func (r *Runtime) Wait() {
	r.wg.Wait()
}

// HandleEvent merges the event payload into agent state. It never emits
// events itself, so it can be used as the sink of the runtime's own emitter.
func (r *Runtime) HandleEvent(ctx context.Context, ev core.Event) error {
	if ev.Type == "" {
		return errors.InvalidRequest("event type is required", nil)
	}
	if len(ev.Payload) > 0 {
		r.state.UpdateState(ev.Payload)
	}
	r.logger.DebugContext(ctx, "runtime.event.handled",
		slog.String("type", string(ev.Type)),
		slog.Int("keys", len(ev.Payload)),
	)
	return nil
}

// UpdateState merges data into agent state and emits state.updated.
func (r *Runtime) UpdateState(ctx context.Context, data core.Params) {
	r.state.UpdateState(data)
	r.emitter.Emit(ctx, core.NewEvent(core.EventStateUpdated, r.cfg.Name, "", data.Clone()))
}

// AccessResource reads a registered resource. With a resource policy set,
// anything but an allow decision fails with UNAUTHORIZED.
func (r *Runtime) AccessResource(ctx context.Context, name string, params core.Params) (core.Params, error) {
	ctx, span := r.tracer.Start(ctx, "Runtime.AccessResource")
	defer span.End()
	out, err := r.accessResource(ctx, name, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.WarnContext(ctx, "runtime.resource.error",
			slog.String("resource", name),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return out, nil
}

func (r *Runtime) accessResource(ctx context.Context, name string, params core.Params) (core.Params, error) {
	if r.guard != nil {
		d := r.guard.Evaluate(ctx, governance.Action{Type: governance.ActionResource, Name: name})
		if !d.IsAllowed() {
			return nil, errors.New(errors.CodeUnauthorized, "resource access denied: "+name, nil).
				WithContext("resource", name).
				WithContext("reason", d.Reason).
				WithContext("rule_id", d.RuleID)
		}
	}
	return r.resources.Access(ctx, name, params)
}

// Remember appends an entry to the agent memory log.
func (r *Runtime) Remember(ctx context.Context, data any, metadata core.Params) (uuid.UUID, error) {
	store := r.state.MemoryStore()
	if store == nil {
		return uuid.Nil, errors.MemoryError("memory store not configured", nil)
	}
	return store.Add(ctx, data, metadata)
}

// Recall searches the agent memory log. Without a store it returns nothing.
func (r *Runtime) Recall(query string) []memory.Entry {
	store := r.state.MemoryStore()
	if store == nil {
		return nil
	}
	return store.Search(query)
}
