// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

// Package state owns the mutable agent state: a key/value working memory and
// the task records, guarded by a single reader/writer lock.
package state

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/errors"
	"github.com/jllopis/atlas/pkg/memory"
	"github.com/jllopis/atlas/pkg/task"
)

// AgentState is a point-in-time copy of the full agent state.
type AgentState struct {
	Memory core.Params               `json:"memory"`
	Tasks  map[uuid.UUID]task.Record `json:"tasks"`
}

// Manager serializes access to agent state. Readers run concurrently,
// writers exclusively, and every returned value is a copy.
type Manager struct {
	mu      sync.RWMutex
	values  core.Params
	tracker *task.Tracker
	store   *memory.Store
}

// Option configures a Manager.
type Option func(*Manager)

// WithMemoryStore attaches the agent's memory log.
func WithMemoryStore(s *memory.Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithInitialState seeds working memory and task records.
func WithInitialState(s AgentState) Option {
	return func(m *Manager) {
		m.values = s.Memory.Clone()
		if m.values == nil {
			m.values = core.Params{}
		}
		for _, rec := range s.Tasks {
			m.tracker.Update(rec.Clone())
		}
	}
}

// NewManager creates an empty state manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{values: core.Params{}, tracker: task.NewTracker()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MemoryStore returns the attached memory log, or nil.
func (m *Manager) MemoryStore() *memory.Store {
	return m.store
}

// UpdateState merges data into working memory. Existing keys are
// overwritten; keys absent from data are kept.
func (m *Manager) UpdateState(data core.Params) {
	incoming := data.Clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values.Merge(incoming)
}

// Snapshot returns a deep copy of working memory.
func (m *Manager) Snapshot() core.Params {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values.Clone()
}

// Value returns a copy of one working-memory key.
func (m *Manager) Value(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false
	}
	return core.CloneValue(v), true
}

// State returns a copy of working memory and all task records.
func (m *Manager) State() AgentState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tasks := make(map[uuid.UUID]task.Record, m.tracker.Len())
	for _, rec := range m.tracker.List() {
		tasks[rec.ID] = rec.Clone()
	}
	return AgentState{Memory: m.values.Clone(), Tasks: tasks}
}

// GetTask returns a copy of the record stored under id.
func (m *Manager) GetTask(id uuid.UUID) (task.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.tracker.Get(id)
	if !ok {
		return task.Record{}, false
	}
	return rec.Clone(), true
}

// UpdateTask stores rec, replacing any record with the same id.
func (m *Manager) UpdateTask(rec task.Record) {
	rec = rec.Clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracker.Update(rec)
}

// CreateTask stores rec only if its id is unused. A duplicate id yields
// TASK_ERROR and leaves the existing record untouched.
func (m *Manager) CreateTask(rec task.Record) error {
	return m.Exclusive(func(tx *Tx) error {
		return tx.CreateTask(rec)
	})
}

// RemoveTask deletes id and reports whether it existed.
func (m *Manager) RemoveTask(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.Remove(id)
}

// ListTasks returns copies of every record in creation order.
func (m *Manager) ListTasks() []task.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.tracker.List()
	for i := range list {
		list[i] = list[i].Clone()
	}
	return list
}

// Exclusive runs fn while holding the write lock. fn must not call other
// Manager methods.
func (m *Manager) Exclusive(fn func(tx *Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&Tx{m: m})
}

// Tx is the view of state handed to Exclusive callbacks. It is only valid
// inside the callback.
type Tx struct {
	m *Manager
}

// GetTask returns the record stored under id.
func (tx *Tx) GetTask(id uuid.UUID) (task.Record, bool) {
	rec, ok := tx.m.tracker.Get(id)
	if !ok {
		return task.Record{}, false
	}
	return rec.Clone(), true
}

// UpdateTask stores rec.
func (tx *Tx) UpdateTask(rec task.Record) {
	tx.m.tracker.Update(rec.Clone())
}

// CreateTask stores rec only if its id is unused.
func (tx *Tx) CreateTask(rec task.Record) error {
	if _, exists := tx.m.tracker.Get(rec.ID); exists {
		return errors.TaskError("task already exists: "+rec.ID.String()).
			WithContext("task_id", rec.ID.String())
	}
	tx.m.tracker.Update(rec.Clone())
	return nil
}

// UpdateState merges data into working memory.
func (tx *Tx) UpdateState(data core.Params) {
	tx.m.values.Merge(data.Clone())
}
