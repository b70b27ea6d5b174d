// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"sort"

	"github.com/google/uuid"
)

// Tracker is a keyed store of task records. It does not synchronize access;
// the owning state manager's lock covers it.
type Tracker struct {
	tasks map[uuid.UUID]Record
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{tasks: make(map[uuid.UUID]Record)}
}

// Get returns the record stored under id.
func (t *Tracker) Get(id uuid.UUID) (Record, bool) {
	r, ok := t.tasks[id]
	return r, ok
}

// Update stores rec under rec.ID, replacing any previous record.
func (t *Tracker) Update(rec Record) {
	t.tasks[rec.ID] = rec
}

// Remove deletes id and reports whether it existed.
func (t *Tracker) Remove(id uuid.UUID) bool {
	if _, ok := t.tasks[id]; !ok {
		return false
	}
	delete(t.tasks, id)
	return true
}

// Len returns the number of tracked records.
func (t *Tracker) Len() int {
	return len(t.tasks)
}

// List returns every record ordered by creation time.
func (t *Tracker) List() []Record {
	out := make([]Record, 0, len(t.tasks))
	for _, r := range t.tasks {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
