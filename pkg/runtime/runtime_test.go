// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/errors"
	"github.com/jllopis/atlas/pkg/governance"
	"github.com/jllopis/atlas/pkg/memory"
	"github.com/jllopis/atlas/pkg/middleware"
	"github.com/jllopis/atlas/pkg/task"
	"github.com/jllopis/atlas/pkg/tool"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []core.Event
}

func (e *recordingEmitter) Emit(_ context.Context, ev core.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *recordingEmitter) types(taskID string) []core.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []core.EventType
	for _, ev := range e.events {
		if ev.TaskID == taskID {
			out = append(out, ev.Type)
		}
	}
	return out
}

func echoTool() core.Tool {
	return core.ToolFunc{
		ToolName:        "echo",
		ToolDescription: "returns its message",
		Fn: func(_ context.Context, params core.Params) (core.Params, error) {
			msg, _ := params.String("message")
			return core.Params{"message": msg}, nil
		},
	}
}

func failingTool() core.Tool {
	return core.ToolFunc{
		ToolName: "fail",
		Fn: func(context.Context, core.Params) (core.Params, error) {
			return nil, stderrors.New("boom")
		},
	}
}

func newTestRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	base := []Option{WithTool("echo", echoTool()), WithTool("fail", failingTool())}
	rt, err := New(Config{Name: "test-agent"}, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return rt
}

func TestNewRequiresName(t *testing.T) {
	_, err := New(Config{})
	if !errors.HasCode(err, errors.CodeInvalidConfig) {
		t.Fatalf("expected INVALID_CONFIG, got %v", err)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	cases := map[string]Option{
		"lock policy": WithLockPolicy("sometimes"),
		"concurrency": WithMaxConcurrent(0),
		"nil tool":    WithTool("x", nil),
	}
	for name, opt := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := New(Config{Name: "a"}, opt); !errors.HasCode(err, errors.CodeInvalidConfig) {
				t.Fatalf("expected INVALID_CONFIG, got %v", err)
			}
		})
	}
}

func TestExecuteTaskCompletes(t *testing.T) {
	emitter := &recordingEmitter{}
	rt := newTestRuntime(t, WithEventEmitter(emitter))
	id := uuid.New()

	out, err := rt.ExecuteTask(context.Background(), id, core.Params{"tool": "echo", "message": "hi"})
	if err != nil {
		t.Fatalf("ExecuteTask: %v", err)
	}
	if out["message"] != "hi" {
		t.Fatalf("unexpected output: %v", out)
	}
	rec, ok := rt.GetTask(id)
	if !ok {
		t.Fatalf("task not tracked")
	}
	if rec.Status != task.StatusCompleted || rec.Tool != "echo" || rec.Result["message"] != "hi" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	got := emitter.types(id.String())
	want := []core.EventType{core.EventTaskStarted, core.EventTaskCompleted}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestExecuteTaskStrictSchema(t *testing.T) {
	rt := newTestRuntime(t)
	err := rt.Registry().UpdateConfig("echo", tool.Descriptor{InputSchema: map[string]any{
		"type":                 "object",
		"properties":           map[string]any{"x": map[string]any{"type": "number"}},
		"additionalProperties": false,
	}})
	if err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}

	id := uuid.New()
	if _, err := rt.ExecuteTask(context.Background(), id, core.Params{ToolParam: "echo", "x": 1}); err != nil {
		t.Fatalf("ExecuteTask: %v", err)
	}
	if rec, _ := rt.GetTask(id); rec.Status != task.StatusCompleted {
		t.Fatalf("unexpected record: %+v", rec)
	}

	id = uuid.New()
	_, err = rt.ExecuteTask(context.Background(), id, core.Params{ToolParam: "echo", "y": 1})
	if !errors.HasCode(err, errors.CodeInvalidRequest) {
		t.Fatalf("expected INVALID_REQUEST for unknown property, got %v", err)
	}
}

func TestExecuteTaskNilResult(t *testing.T) {
	silent := core.ToolFunc{
		ToolName: "silent",
		Fn:       func(context.Context, core.Params) (core.Params, error) { return nil, nil },
	}
	rt := newTestRuntime(t, WithTool("silent", silent))
	id := uuid.New()

	out, err := rt.ExecuteTask(context.Background(), id, core.Params{ToolParam: "silent"})
	if err != nil {
		t.Fatalf("ExecuteTask: %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty output, got %#v", out)
	}
	rec, _ := rt.GetTask(id)
	if rec.Status != task.StatusCompleted || rec.Result == nil {
		t.Fatalf("completed task must carry a result: %+v", rec)
	}
}

func TestRemoveTaskDuringExecution(t *testing.T) {
	var rt *Runtime
	remover := core.ToolFunc{
		ToolName: "remover",
		Fn: func(ctx context.Context, _ core.Params) (core.Params, error) {
			raw, _ := core.TaskID(ctx)
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, err
			}
			return core.Params{"removed": rt.RemoveTask(id)}, nil
		},
	}
	rt = newTestRuntime(t, WithTool("remover", remover), WithLockPolicy(LockRelease))
	id := uuid.New()

	out, err := rt.ExecuteTask(context.Background(), id, core.Params{ToolParam: "remover"})
	if err != nil {
		t.Fatalf("ExecuteTask: %v", err)
	}
	if out["removed"] != true {
		t.Fatalf("task was not tracked while running: %v", out)
	}
	if rec, ok := rt.GetTask(id); ok {
		t.Fatalf("removed task came back: %+v", rec)
	}
}

func TestExecuteTaskFailures(t *testing.T) {
	cases := []struct {
		name   string
		params core.Params
		code   errors.ErrorCode
	}{
		{"missing tool name", core.Params{"message": "x"}, errors.CodeInvalidRequest},
		{"unknown tool", core.Params{"tool": "nope"}, errors.CodeToolNotFound},
		{"tool error", core.Params{"tool": "fail"}, errors.CodeToolExecutionFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rt := newTestRuntime(t)
			id := uuid.New()
			_, err := rt.ExecuteTask(context.Background(), id, tc.params)
			if !errors.HasCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
			rec, ok := rt.GetTask(id)
			if !ok || rec.Status != task.StatusFailed {
				t.Fatalf("expected failed record, got %+v (ok=%v)", rec, ok)
			}
			if rec.ErrorCode != tc.code || rec.Error == "" {
				t.Fatalf("record lost the failure: %+v", rec)
			}
		})
	}
}

func TestExecuteTaskDuplicateID(t *testing.T) {
	rt := newTestRuntime(t)
	id := uuid.New()
	if _, err := rt.ExecuteTask(context.Background(), id, core.Params{"tool": "echo", "message": "first"}); err != nil {
		t.Fatalf("ExecuteTask: %v", err)
	}
	_, err := rt.ExecuteTask(context.Background(), id, core.Params{"tool": "fail"})
	if !errors.HasCode(err, errors.CodeTaskError) {
		t.Fatalf("expected TASK_ERROR, got %v", err)
	}
	rec, _ := rt.GetTask(id)
	if rec.Status != task.StatusCompleted || rec.Result["message"] != "first" {
		t.Fatalf("existing record was modified: %+v", rec)
	}
}

func TestExecuteTaskRunsMiddleware(t *testing.T) {
	var seen []string
	mw := middleware.Func(func(ctx context.Context, tc *tool.Context, next middleware.Next) (core.Params, error) {
		seen = append(seen, tc.Name())
		if id, ok := core.TaskID(ctx); !ok || id == "" {
			t.Errorf("task id missing from context")
		}
		return next(ctx, tc)
	})
	rt := newTestRuntime(t, WithMiddleware(mw))
	if _, err := rt.ExecuteTask(context.Background(), uuid.New(), core.Params{"tool": "echo"}); err != nil {
		t.Fatalf("ExecuteTask: %v", err)
	}
	if len(seen) != 1 || seen[0] != "echo" {
		t.Fatalf("middleware saw %v", seen)
	}
}

func TestReleasePolicyAllowsStateAccessDuringExecution(t *testing.T) {
	var rt *Runtime
	inspect := core.ToolFunc{
		ToolName: "inspect",
		Fn: func(context.Context, core.Params) (core.Params, error) {
			rt.State().UpdateState(core.Params{"inspected": true})
			return core.Params{"tasks": len(rt.ListTasks())}, nil
		},
	}
	rt = newTestRuntime(t, WithTool("inspect", inspect), WithLockPolicy(LockRelease))

	done := make(chan error, 1)
	go func() {
		_, err := rt.ExecuteTask(context.Background(), uuid.New(), core.Params{"tool": "inspect"})
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ExecuteTask: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("tool could not read state while running")
	}
	if v, ok := rt.State().Value("inspected"); !ok || v != true {
		t.Fatalf("state update from tool lost")
	}
}

func TestLockPoliciesBoundConcurrentExecutions(t *testing.T) {
	cases := []struct {
		policy  LockPolicy
		wantMax int32
	}{
		{LockHold, 1},
		{LockRelease, 4},
	}
	for _, tc := range cases {
		t.Run(string(tc.policy), func(t *testing.T) {
			var current, peak int32
			gate := make(chan struct{})
			slow := core.ToolFunc{
				ToolName: "slow",
				Fn: func(ctx context.Context, _ core.Params) (core.Params, error) {
					n := atomic.AddInt32(&current, 1)
					for {
						p := atomic.LoadInt32(&peak)
						if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
							break
						}
					}
					select {
					case <-gate:
					case <-time.After(50 * time.Millisecond):
					}
					atomic.AddInt32(&current, -1)
					return core.Params{}, nil
				},
			}
			rt := newTestRuntime(t, WithTool("slow", slow), WithLockPolicy(tc.policy))

			var wg sync.WaitGroup
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := rt.ExecuteTask(context.Background(), uuid.New(), core.Params{"tool": "slow"}); err != nil {
						t.Errorf("ExecuteTask: %v", err)
					}
				}()
			}
			if tc.policy == LockRelease {
				deadline := time.After(5 * time.Second)
				for atomic.LoadInt32(&peak) < tc.wantMax {
					select {
					case <-deadline:
						t.Fatalf("executions never overlapped, peak %d", atomic.LoadInt32(&peak))
					default:
						time.Sleep(time.Millisecond)
					}
				}
			}
			close(gate)
			wg.Wait()

			if tc.policy == LockHold && peak != 1 {
				t.Fatalf("hold policy allowed %d concurrent executions", peak)
			}
			if len(rt.ListTasks()) != 4 {
				t.Fatalf("expected 4 tracked tasks")
			}
		})
	}
}

func TestSubmitAndWait(t *testing.T) {
	emitter := &recordingEmitter{}
	var current, peak int32
	slow := core.ToolFunc{
		ToolName: "slow",
		Fn: func(context.Context, core.Params) (core.Params, error) {
			n := atomic.AddInt32(&current, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			return core.Params{"ok": true}, nil
		},
	}
	rt := newTestRuntime(t, WithTool("slow", slow), WithMaxConcurrent(2), WithEventEmitter(emitter))

	ctx, cancel := context.WithCancel(context.Background())
	var ids []uuid.UUID
	for i := 0; i < 6; i++ {
		id, err := rt.Submit(ctx, core.Params{"tool": "slow"})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		ids = append(ids, id)
	}
	cancel()
	rt.Wait()

	if peak > 2 {
		t.Fatalf("concurrency limit exceeded: %d", peak)
	}
	for _, id := range ids {
		rec, ok := rt.GetTask(id)
		if !ok || rec.Status != task.StatusCompleted {
			t.Fatalf("task %s not completed: %+v", id, rec)
		}
		got := emitter.types(id.String())
		if len(got) != 3 || got[0] != core.EventTaskSubmitted || got[2] != core.EventTaskCompleted {
			t.Fatalf("unexpected events for %s: %v", id, got)
		}
	}
}

func TestJournalRecordsTransitions(t *testing.T) {
	journal, err := task.OpenSQLiteJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteJournal: %v", err)
	}
	t.Cleanup(func() { _ = journal.Close() })
	rt := newTestRuntime(t, WithJournal(journal))

	id := uuid.New()
	if _, err := rt.ExecuteTask(context.Background(), id, core.Params{"tool": "fail"}); err == nil {
		t.Fatalf("expected failure")
	}
	history, err := journal.History(context.Background(), task.JournalFilter{TaskID: id})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 journal rows, got %d", len(history))
	}
	if history[0].Status != task.StatusRunning || history[1].Status != task.StatusFailed {
		t.Fatalf("unexpected history: %+v", history)
	}
	if history[1].ErrorCode != errors.CodeToolExecutionFailed {
		t.Fatalf("journal lost error code: %+v", history[1])
	}
}

func TestHandleEventMergesPayload(t *testing.T) {
	rt := newTestRuntime(t)
	ev := core.NewEvent(core.EventStateUpdated, "other", "", core.Params{"mood": "calm", "count": 2})
	if err := rt.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	snap := rt.State().Snapshot()
	if snap["mood"] != "calm" || snap["count"] != 2 {
		t.Fatalf("payload not merged: %v", snap)
	}
	if err := rt.HandleEvent(context.Background(), core.Event{}); !errors.HasCode(err, errors.CodeInvalidRequest) {
		t.Fatalf("expected INVALID_REQUEST for untyped event, got %v", err)
	}
}

func TestEmitterCanCallBackIntoRuntime(t *testing.T) {
	var rt *Runtime
	sink := core.EmitterFunc(func(ctx context.Context, ev core.Event) {
		_ = rt.HandleEvent(ctx, core.NewEvent(ev.Type, ev.Agent, ev.TaskID, core.Params{"last_event": string(ev.Type)}))
	})
	rt = newTestRuntime(t, WithEventEmitter(sink), WithLockPolicy(LockHold))
	if _, err := rt.ExecuteTask(context.Background(), uuid.New(), core.Params{"tool": "echo"}); err != nil {
		t.Fatalf("ExecuteTask: %v", err)
	}
	if v, _ := rt.State().Value("last_event"); v != string(core.EventTaskCompleted) {
		t.Fatalf("last_event = %v", v)
	}
}

func TestRememberAndRecall(t *testing.T) {
	rt := newTestRuntime(t)
	if _, err := rt.Remember(context.Background(), "x", nil); !errors.HasCode(err, errors.CodeMemoryError) {
		t.Fatalf("expected MEMORY_ERROR without store, got %v", err)
	}

	store, err := memory.NewStore(memory.Config{Capacity: 10})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	rt = newTestRuntime(t, WithMemoryStore(store))
	if _, err := rt.Remember(context.Background(), map[string]any{"note": "paris trip"}, nil); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if got := rt.Recall("paris"); len(got) != 1 {
		t.Fatalf("expected one match, got %d", len(got))
	}
}

type staticResource struct{}

func (staticResource) Name() string         { return "static" }
func (staticResource) ResourceType() string { return "fixture" }
func (staticResource) Access(context.Context, core.Params) (core.Params, error) {
	return core.Params{"value": 1}, nil
}

func TestAccessResource(t *testing.T) {
	rt := newTestRuntime(t, WithResource(staticResource{}))
	out, err := rt.AccessResource(context.Background(), "static", nil)
	if err != nil || out["value"] != 1 {
		t.Fatalf("AccessResource = %v, %v", out, err)
	}
	if _, err := rt.AccessResource(context.Background(), "missing", nil); !errors.HasCode(err, errors.CodeResourceNotFound) {
		t.Fatalf("expected RESOURCE_NOT_FOUND, got %v", err)
	}
}

func TestAccessResourcePolicy(t *testing.T) {
	rules := governance.NewRuleSet([]governance.Rule{
		{ID: "no-static", Effect: governance.DecisionStatusDeny, Type: governance.ActionResource, Name: "static"},
	})
	rt := newTestRuntime(t, WithResource(staticResource{}), WithResourcePolicy(rules))
	_, err := rt.AccessResource(context.Background(), "static", nil)
	ae := errors.AsAtlasError(err)
	if ae == nil || ae.Code != errors.CodeUnauthorized || ae.Context["rule_id"] != "no-static" {
		t.Fatalf("expected UNAUTHORIZED from no-static, got %v", err)
	}
}

func TestListToolsAndConfig(t *testing.T) {
	rt := newTestRuntime(t)
	names := map[string]bool{}
	for _, d := range rt.ListTools() {
		names[d.Name] = true
	}
	if !names["echo"] || !names["fail"] {
		t.Fatalf("ListTools missing entries: %v", names)
	}
	cfg := rt.Config()
	cfg.Name = "mutated"
	if rt.Name() != "test-agent" {
		t.Fatalf("Config returned shared state")
	}
}

func TestParseLockPolicy(t *testing.T) {
	for in, want := range map[string]LockPolicy{"": LockRelease, "HOLD": LockHold, "release": LockRelease} {
		got, err := ParseLockPolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParseLockPolicy(%q) = %q, %v", in, got, err)
		}
	}
}
