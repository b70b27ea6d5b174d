// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"time"
)

// EventType identifies a semantic event emitted by the runtime.
type EventType string

const (
	EventTaskSubmitted EventType = "task.submitted"
	EventTaskStarted   EventType = "task.started"
	EventTaskCompleted EventType = "task.completed"
	EventTaskFailed    EventType = "task.failed"
	EventStateUpdated  EventType = "state.updated"
)

// Event captures a semantic event. Events delivered to Runtime.HandleEvent
// have their Payload merged into agent state.
type Event struct {
	Type      EventType `json:"type"`
	Agent     string    `json:"agent,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Params    `json:"payload,omitempty"`
}

// EventEmitter receives semantic events.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// EmitterFunc adapts a function into an EventEmitter.
type EmitterFunc func(ctx context.Context, event Event)

// Emit implements EventEmitter.
func (f EmitterFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// NoopEventEmitter is a default no-op implementation.
type NoopEventEmitter struct{}

// Emit implements EventEmitter.
func (NoopEventEmitter) Emit(_ context.Context, _ Event) {}

// NewEvent builds a default event with timestamp.
func NewEvent(eventType EventType, agent string, taskID string, payload Params) Event {
	return Event{
		Type:      eventType,
		Agent:     agent,
		TaskID:    taskID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
