// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"context"
	"testing"

	"github.com/jllopis/atlas/pkg/config"
)

func TestToolFilter_EmptyFilter(t *testing.T) {
	filter := NewToolFilter()
	if !filter.IsAllowed(context.Background(), "any-tool").IsAllowed() {
		t.Error("empty filter should allow all tools")
	}
}

func TestToolFilter_Lists(t *testing.T) {
	filter := NewToolFilter(
		WithAllowlist([]string{"calc*", "weather"}),
		WithDenylist([]string{"calculator_admin"}),
	)

	tests := []struct {
		name    string
		tool    string
		allowed bool
	}{
		{"glob match", "calculator", true},
		{"exact match", "weather", true},
		{"not in allowlist", "file_read", false},
		{"denylist wins", "calculator_admin", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision := filter.IsAllowed(context.Background(), tc.tool)
			if decision.IsAllowed() != tc.allowed {
				t.Errorf("tool %q: expected allowed=%v, got %+v", tc.tool, tc.allowed, decision)
			}
		})
	}
}

func TestToolFilter_FilterTools(t *testing.T) {
	filter := NewToolFilter(WithDenylist([]string{"b"}))
	got := filter.FilterTools(context.Background(), []string{"a", "b", "c"})
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("unexpected result %v", got)
	}
}

func TestToolFilter_PolicyEngine(t *testing.T) {
	engine := NewRuleSet([]Rule{
		{ID: "hold-files", Effect: "pending", Type: ActionTool, Name: "file_*", Reason: "needs review"},
		{ID: "deny-news", Effect: "deny", Type: ActionResource, Name: "news"},
	})
	filter := NewToolFilter(WithPolicyEngine(engine))

	d := filter.IsAllowed(context.Background(), "file_read")
	if !d.IsPending() || d.RuleID != "hold-files" {
		t.Fatalf("expected pending decision, got %+v", d)
	}
	d = filter.Evaluate(context.Background(), Action{Type: ActionResource, Name: "news"})
	if !d.IsDenied() {
		t.Fatalf("expected resource deny, got %+v", d)
	}
	if !filter.IsAllowed(context.Background(), "news").IsAllowed() {
		t.Fatalf("rule typed for resources must not apply to tools")
	}
}

func TestToolFilter_ListsIgnoreResources(t *testing.T) {
	filter := NewToolFilter(WithAllowlist([]string{"calculator"}), WithDenylist([]string{"news"}))
	d := filter.Evaluate(context.Background(), Action{Type: ActionResource, Name: "news"})
	if !d.IsAllowed() {
		t.Fatalf("tool lists must not gate resources, got %+v", d)
	}
}

func TestParseEffect(t *testing.T) {
	tests := []struct {
		in   string
		want DecisionStatus
		ok   bool
	}{
		{"allow", DecisionStatusAllow, true},
		{" Deny ", DecisionStatusDeny, true},
		{"PENDING", DecisionStatusPending, true},
		{"maybe", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseEffect(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseEffect(%q) = %q, %v", tt.in, got, ok)
		}
	}
}

func TestRuleSetUnknownEffectDenies(t *testing.T) {
	rs := RuleSetFromConfig(config.GovernanceConfig{
		Policies: []config.PolicyRuleConfig{{ID: "odd", Effect: "maybe", Name: "x"}},
	})
	d := rs.Evaluate(context.Background(), Action{Type: ActionTool, Name: "x"})
	if !d.IsDenied() || d.RuleID != "odd" {
		t.Fatalf("expected deny from odd, got %+v", d)
	}
}

func TestToolFilter_ApplyConfig(t *testing.T) {
	filter := NewToolFilter(WithDenylist([]string{"calculator"}))
	if filter.IsAllowed(context.Background(), "calculator").IsAllowed() {
		t.Fatalf("expected deny before reconfigure")
	}

	filter.ApplyConfig(config.GovernanceConfig{
		Deny: []string{"weather"},
		Policies: []config.PolicyRuleConfig{
			{Effect: "deny", Type: "tool", Name: "file_*", Reason: "no files"},
		},
	})
	if !filter.IsAllowed(context.Background(), "calculator").IsAllowed() {
		t.Fatalf("expected old denylist to be replaced")
	}
	if filter.IsAllowed(context.Background(), "weather").IsAllowed() {
		t.Fatalf("expected new denylist to apply")
	}
	d := filter.IsAllowed(context.Background(), "file_read")
	if !d.IsDenied() || d.Reason != "no files" || d.RuleID != "rule-0" {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestRuleSetDefault(t *testing.T) {
	rs := NewRuleSet(nil)
	if !rs.Evaluate(context.Background(), Action{Type: ActionTool, Name: "x"}).IsAllowed() {
		t.Fatalf("expected default allow")
	}
	rs.DefaultDecision = Decision{Status: DecisionStatusDeny, Reason: "closed"}
	if !rs.Evaluate(context.Background(), Action{Type: ActionTool, Name: "x"}).IsDenied() {
		t.Fatalf("expected default deny")
	}
}
