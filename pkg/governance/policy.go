// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

// Package governance decides whether a tool or resource call may proceed.
package governance

import (
	"context"
	"path"
	"strconv"
	"strings"

	"github.com/jllopis/atlas/pkg/config"
)

// ActionType is what a call targets.
type ActionType string

const (
	ActionTool     ActionType = "tool"
	ActionResource ActionType = "resource"
)

// Action is one call to evaluate.
type Action struct {
	Type     ActionType
	Name     string
	Metadata map[string]string
}

// DecisionStatus is the outcome of an evaluation. Rules use the same values
// as their effect.
type DecisionStatus string

const (
	DecisionStatusAllow   DecisionStatus = "allow"
	DecisionStatusDeny    DecisionStatus = "deny"
	DecisionStatusPending DecisionStatus = "pending"
)

// ParseEffect maps a configured effect onto a status. Matching is
// case-insensitive; ok is false for anything else.
func ParseEffect(s string) (DecisionStatus, bool) {
	switch st := DecisionStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case DecisionStatusAllow, DecisionStatusDeny, DecisionStatusPending:
		return st, true
	}
	return "", false
}

// Decision is a status plus the rule that produced it, if any.
type Decision struct {
	Status DecisionStatus
	Reason string
	RuleID string
}

func allow() Decision { return Decision{Status: DecisionStatusAllow} }

func deny(reason string) Decision { return Decision{Status: DecisionStatusDeny, Reason: reason} }

func (d Decision) IsAllowed() bool { return d.Status == DecisionStatusAllow }
func (d Decision) IsPending() bool { return d.Status == DecisionStatusPending }
func (d Decision) IsDenied() bool  { return d.Status == DecisionStatusDeny }

// PolicyEngine evaluates actions.
type PolicyEngine interface {
	Evaluate(ctx context.Context, action Action) Decision
}

// Rule matches actions by type and name glob. An empty Type or Name matches
// everything.
type Rule struct {
	ID     string
	Effect DecisionStatus
	Type   ActionType
	Name   string
	Reason string
}

func (r Rule) matches(a Action) bool {
	if r.Type != "" && r.Type != a.Type {
		return false
	}
	return matchPattern(r.Name, a.Name)
}

// RuleSet evaluates rules in order; the first match wins and an unmatched
// action gets DefaultDecision.
type RuleSet struct {
	Rules           []Rule
	DefaultDecision Decision
}

// NewRuleSet creates a rule set that allows by default.
func NewRuleSet(rules []Rule) *RuleSet {
	return &RuleSet{Rules: append([]Rule(nil), rules...), DefaultDecision: allow()}
}

// Evaluate implements PolicyEngine. A rule with an unrecognised effect
// denies.
func (r *RuleSet) Evaluate(_ context.Context, action Action) Decision {
	for _, rule := range r.Rules {
		if !rule.matches(action) {
			continue
		}
		status, ok := ParseEffect(string(rule.Effect))
		if !ok {
			status = DecisionStatusDeny
		}
		return Decision{Status: status, Reason: rule.Reason, RuleID: rule.ID}
	}
	return r.DefaultDecision
}

func matchPattern(pattern, value string) bool {
	if pattern == "" || pattern == value {
		return true
	}
	ok, err := path.Match(pattern, value)
	return err == nil && ok
}

// RuleSetFromConfig builds a rule set from the governance.policies list.
// Rules without an id are named rule-<index>.
func RuleSetFromConfig(cfg config.GovernanceConfig) *RuleSet {
	rules := make([]Rule, len(cfg.Policies))
	for i, pc := range cfg.Policies {
		id := strings.TrimSpace(pc.ID)
		if id == "" {
			id = "rule-" + strconv.Itoa(i)
		}
		effect, ok := ParseEffect(pc.Effect)
		if !ok {
			effect = DecisionStatusDeny
		}
		rules[i] = Rule{
			ID:     id,
			Effect: effect,
			Type:   ActionType(strings.ToLower(pc.Type)),
			Name:   pc.Name,
			Reason: pc.Reason,
		}
	}
	return NewRuleSet(rules)
}
