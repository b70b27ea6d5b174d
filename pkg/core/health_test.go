// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"testing"
)

func staticCheck(status HealthStatus) HealthChecker {
	return HealthFunc(func(context.Context) HealthResult {
		return HealthResult{Status: status}
	})
}

func TestHealthCheckAllReportsWorstStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses map[string]HealthStatus
		want     HealthStatus
	}{
		{"empty", nil, HealthHealthy},
		{"all healthy", map[string]HealthStatus{"a": HealthHealthy, "b": HealthHealthy}, HealthHealthy},
		{"one degraded", map[string]HealthStatus{"a": HealthHealthy, "b": HealthDegraded}, HealthDegraded},
		{"unhealthy wins", map[string]HealthStatus{"a": HealthUnhealthy, "b": HealthDegraded}, HealthUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealth()
			for name, status := range tt.statuses {
				h.Register(name, staticCheck(status))
			}
			results, overall := h.CheckAll(context.Background())
			if overall != tt.want {
				t.Errorf("overall = %s, want %s", overall, tt.want)
			}
			if len(results) != len(tt.statuses) {
				t.Errorf("got %d results, want %d", len(results), len(tt.statuses))
			}
		})
	}
}

func TestHealthResultsAreNamedAndSorted(t *testing.T) {
	h := NewHealth()
	h.Register("zeta", staticCheck(HealthHealthy))
	h.Register("alpha", staticCheck(HealthHealthy))

	results, _ := h.CheckAll(context.Background())
	if results[0].Component != "alpha" || results[1].Component != "zeta" {
		t.Fatalf("unexpected order %+v", results)
	}
	for _, r := range results {
		if r.LastCheck.IsZero() {
			t.Errorf("%s: LastCheck not set", r.Component)
		}
	}
}
