// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"context"
	"path"
	"strings"
	"sync"

	"github.com/jllopis/atlas/pkg/config"
)

// ToolFilter gates tool calls with allow/deny lists and an optional policy
// engine. Lists accept exact names or path.Match globs. A ToolFilter can be
// reconfigured while in use.
type ToolFilter struct {
	mu           sync.RWMutex
	allowlist    map[string]bool
	denylist     map[string]bool
	policyEngine PolicyEngine
}

// ToolFilterOption configures a ToolFilter.
type ToolFilterOption func(*ToolFilter)

// NewToolFilter creates a new ToolFilter with the given options.
func NewToolFilter(opts ...ToolFilterOption) *ToolFilter {
	tf := &ToolFilter{}
	tf.reset(opts)
	return tf
}

// FromConfig builds a filter from the governance config section.
func FromConfig(cfg config.GovernanceConfig) *ToolFilter {
	return NewToolFilter(configOptions(cfg)...)
}

func configOptions(cfg config.GovernanceConfig) []ToolFilterOption {
	opts := []ToolFilterOption{WithAllowlist(cfg.Allow), WithDenylist(cfg.Deny)}
	if len(cfg.Policies) > 0 {
		opts = append(opts, WithPolicyEngine(RuleSetFromConfig(cfg)))
	}
	return opts
}

// WithAllowlist sets the allowlist of permitted tool names/patterns.
func WithAllowlist(tools []string) ToolFilterOption {
	return func(tf *ToolFilter) { addAll(tf.allowlist, tools) }
}

// WithDenylist sets the denylist of forbidden tool names/patterns.
func WithDenylist(tools []string) ToolFilterOption {
	return func(tf *ToolFilter) { addAll(tf.denylist, tools) }
}

// WithPolicyEngine attaches a policy engine consulted after the lists.
func WithPolicyEngine(engine PolicyEngine) ToolFilterOption {
	return func(tf *ToolFilter) { tf.policyEngine = engine }
}

// Reconfigure atomically replaces lists and engine.
func (tf *ToolFilter) Reconfigure(opts ...ToolFilterOption) {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	tf.reset(opts)
}

// ApplyConfig reconfigures the filter from a governance config section.
func (tf *ToolFilter) ApplyConfig(cfg config.GovernanceConfig) {
	tf.Reconfigure(configOptions(cfg)...)
}

func (tf *ToolFilter) reset(opts []ToolFilterOption) {
	tf.allowlist = make(map[string]bool)
	tf.denylist = make(map[string]bool)
	tf.policyEngine = nil
	for _, opt := range opts {
		opt(tf)
	}
}

// Evaluate checks an action. The lists only gate tools:
//  1. a denylisted tool is denied
//  2. with a non-empty allowlist, an unlisted tool is denied
//  3. the policy engine decides, if one is configured
//  4. otherwise the action is allowed
func (tf *ToolFilter) Evaluate(ctx context.Context, action Action) Decision {
	tf.mu.RLock()
	defer tf.mu.RUnlock()

	if action.Type == ActionTool {
		if matchesList(action.Name, tf.denylist) {
			return deny("tool is in denylist")
		}
		if len(tf.allowlist) > 0 && !matchesList(action.Name, tf.allowlist) {
			return deny("tool is not in allowlist")
		}
	}
	if tf.policyEngine != nil {
		return tf.policyEngine.Evaluate(ctx, action)
	}
	return allow()
}

// IsAllowed evaluates a tool call by name.
func (tf *ToolFilter) IsAllowed(ctx context.Context, toolName string) Decision {
	return tf.Evaluate(ctx, Action{Type: ActionTool, Name: toolName})
}

// FilterTools returns the names whose decision is allow, preserving order.
// Pending tools are left out.
func (tf *ToolFilter) FilterTools(ctx context.Context, toolNames []string) []string {
	filtered := make([]string, 0, len(toolNames))
	for _, name := range toolNames {
		if tf.IsAllowed(ctx, name).IsAllowed() {
			filtered = append(filtered, name)
		}
	}
	return filtered
}

func addAll(list map[string]bool, tools []string) {
	for _, tool := range tools {
		tool = strings.TrimSpace(tool)
		if tool != "" {
			list[tool] = true
		}
	}
}

func matchesList(name string, list map[string]bool) bool {
	if list[name] {
		return true
	}
	for pattern := range list {
		if ok, err := path.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
