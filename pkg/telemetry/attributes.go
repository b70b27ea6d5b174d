// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry wires OpenTelemetry and slog for Atlas.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys used on Atlas spans, metrics and log records.
const (
	AttrAgentName = "atlas.agent.name"

	AttrToolName       = "atlas.tool.name"
	AttrToolDurationMs = "atlas.tool.duration_ms"
	AttrToolSuccess    = "atlas.tool.success"
	AttrToolSource     = "atlas.tool.source" // local, mcp

	AttrTaskID     = "atlas.task.id"
	AttrTaskStatus = "atlas.task.status"

	AttrResourceName = "atlas.resource.name"
	AttrResourceType = "atlas.resource.type"

	AttrErrorCode = "atlas.error.code"

	AttrPolicyAllowed = "atlas.policy.allowed"
	AttrPolicyReason  = "atlas.policy.reason"
	AttrPolicyRuleID  = "atlas.policy.rule_id"

	AttrEventType = "atlas.event.type"
)

// ToolAttributes returns attributes for a tool call span.
func ToolAttributes(name, taskID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(AttrToolName, name)}
	if taskID != "" {
		attrs = append(attrs, attribute.String(AttrTaskID, taskID))
	}
	return attrs
}

// TaskAttributes returns attributes for a task span or metric.
func TaskAttributes(agent, taskID string, status string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentName, agent),
		attribute.String(AttrTaskID, taskID),
	}
	if status != "" {
		attrs = append(attrs, attribute.String(AttrTaskStatus, status))
	}
	return attrs
}

// PolicyAttributes describes a governance decision.
func PolicyAttributes(allowed bool, reason, ruleID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Bool(AttrPolicyAllowed, allowed)}
	if reason != "" {
		attrs = append(attrs, attribute.String(AttrPolicyReason, reason))
	}
	if ruleID != "" {
		attrs = append(attrs, attribute.String(AttrPolicyRuleID, ruleID))
	}
	return attrs
}
