// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

// Package task models task records and their lifecycle.
package task

import (
	"time"

	"github.com/google/uuid"
	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/errors"
)

// Status describes the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether s may move to next. Tasks only move
// forward: Pending to Running, Running to Completed or Failed.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Record is the tracked state of one task execution. Result is set only when
// Completed; Error and ErrorCode only when Failed.
type Record struct {
	ID        uuid.UUID        `json:"id"`
	Status    Status           `json:"status"`
	Tool      string           `json:"tool,omitempty"`
	Result    core.Params      `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorCode errors.ErrorCode `json:"error_code,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewRecord creates a Pending record.
func NewRecord(id uuid.UUID) Record {
	now := time.Now().UTC()
	return Record{ID: id, Status: StatusPending, CreatedAt: now, UpdatedAt: now}
}

// Start moves the record to Running.
func (r *Record) Start() error {
	return r.transition(StatusRunning)
}

// Complete moves the record to Completed with result.
func (r *Record) Complete(result core.Params) error {
	if err := r.transition(StatusCompleted); err != nil {
		return err
	}
	r.Result = result
	return nil
}

// Fail moves the record to Failed, keeping both the message and the error
// code of cause.
func (r *Record) Fail(cause error) error {
	if err := r.transition(StatusFailed); err != nil {
		return err
	}
	if cause != nil {
		r.Error = cause.Error()
		r.ErrorCode = errors.CodeOf(cause)
	}
	return nil
}

func (r *Record) transition(next Status) error {
	if !r.Status.CanTransition(next) {
		return errors.TaskError("invalid task transition "+string(r.Status)+" -> "+string(next)).
			WithContext("task_id", r.ID.String())
	}
	r.Status = next
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Clone returns a copy that shares nothing mutable with r.
func (r Record) Clone() Record {
	r.Result = r.Result.Clone()
	return r
}
