// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "HEALTHY"
	HealthDegraded  HealthStatus = "DEGRADED"
	HealthUnhealthy HealthStatus = "UNHEALTHY"
)

// HealthResult is the outcome of one check.
type HealthResult struct {
	Status    HealthStatus `json:"status"`
	Component string       `json:"component"`
	Message   string       `json:"message,omitempty"`
	LastCheck time.Time    `json:"last_check"`
}

// HealthChecker checks the health of a component.
type HealthChecker interface {
	Check(ctx context.Context) HealthResult
}

// HealthFunc adapts a function into a HealthChecker.
type HealthFunc func(ctx context.Context) HealthResult

// Check implements HealthChecker.
func (f HealthFunc) Check(ctx context.Context) HealthResult { return f(ctx) }

// Health aggregates named checkers.
type Health struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealth creates an empty aggregate.
func NewHealth() *Health {
	return &Health{checkers: make(map[string]HealthChecker)}
}

// Register adds or replaces the checker for component.
func (h *Health) Register(component string, checker HealthChecker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[component] = checker
}

// CheckAll runs every checker, sorted by component name. The overall status
// is the worst individual status; with no checkers it is healthy.
func (h *Health) CheckAll(ctx context.Context) ([]HealthResult, HealthStatus) {
	h.mu.RLock()
	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	checkers := make(map[string]HealthChecker, len(h.checkers))
	for name, c := range h.checkers {
		checkers[name] = c
	}
	h.mu.RUnlock()
	sort.Strings(names)

	overall := HealthHealthy
	results := make([]HealthResult, 0, len(names))
	for _, name := range names {
		result := checkers[name].Check(ctx)
		result.Component = name
		if result.LastCheck.IsZero() {
			result.LastCheck = time.Now().UTC()
		}
		results = append(results, result)
		switch result.Status {
		case HealthUnhealthy:
			overall = HealthUnhealthy
		case HealthDegraded:
			if overall == HealthHealthy {
				overall = HealthDegraded
			}
		}
	}
	return results, overall
}
