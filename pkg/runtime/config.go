// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"strings"

	"github.com/jllopis/atlas/pkg/config"
	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/errors"
)

// Config is the identity of the agent hosted by a Runtime.
type Config struct {
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	Capabilities []string    `json:"capabilities"`
	Config       core.Params `json:"config"`
}

// Validate rejects a configuration without a name.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.InvalidConfig("agent name is required")
	}
	return nil
}

// ConfigFromAgent converts the agent config section.
func ConfigFromAgent(a config.AgentConfig) Config {
	return Config{
		Name:         a.Name,
		Description:  a.Description,
		Capabilities: append([]string(nil), a.Capabilities...),
		Config:       core.Params(a.Config).Clone(),
	}
}

// LockPolicy controls how long ExecuteTask holds the state write lock.
type LockPolicy string

const (
	// LockRelease takes the lock to record the task as Running, releases it
	// while the tool runs and takes it again to record the outcome. Other
	// state operations proceed during tool execution.
	LockRelease LockPolicy = "release"

	// LockHold keeps the lock for the whole execution, serializing task
	// executions against each other and against every state reader. Tools
	// and middleware must not touch runtime state under this policy.
	LockHold LockPolicy = "hold"
)

// ParseLockPolicy maps a config value to a LockPolicy. The empty string
// selects LockRelease.
func ParseLockPolicy(s string) (LockPolicy, error) {
	switch LockPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", LockRelease:
		return LockRelease, nil
	case LockHold:
		return LockHold, nil
	default:
		return "", errors.InvalidConfig("unknown lock policy: " + s)
	}
}
