// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads Atlas configuration from defaults, YAML files,
// ATLAS_* environment variables and command line overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jllopis/atlas/pkg/errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

const envPrefix = "ATLAS_"

type Config struct {
	Log        LogConfig        `koanf:"log"`
	Agent      AgentConfig      `koanf:"agent"`
	Memory     MemoryConfig     `koanf:"memory"`
	Runtime    RuntimeConfig    `koanf:"runtime"`
	Tools      ToolsConfig      `koanf:"tools"`
	Governance GovernanceConfig `koanf:"governance"`
	RateLimit  RateLimitConfig  `koanf:"ratelimit"`
	Resilience ResilienceConfig `koanf:"resilience"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Server     ServerConfig     `koanf:"server"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

// AgentConfig is the identity of the agent hosted by the runtime.
type AgentConfig struct {
	Name         string         `koanf:"name"`
	Description  string         `koanf:"description"`
	Capabilities []string       `koanf:"capabilities"`
	Config       map[string]any `koanf:"config"`
}

type MemoryConfig struct {
	Capacity    int    `koanf:"capacity"`
	Persistent  bool   `koanf:"persistent"`
	PersistPath string `koanf:"persist_path"`
}

type RuntimeConfig struct {
	LockPolicy    string `koanf:"lock_policy"` // release, hold
	MaxConcurrent int    `koanf:"max_concurrent"`
	JournalPath   string `koanf:"journal_path"`
}

type ToolsConfig struct {
	Manifest string             `koanf:"manifest"`
	Root     string             `koanf:"root"`
	Remote   []RemoteToolConfig `koanf:"remote"`
}

// RemoteToolConfig describes an MCP server whose tools are registered
// locally. URL selects Streamable HTTP; otherwise Command is launched and
// spoken to over stdio.
type RemoteToolConfig struct {
	Name    string   `koanf:"name"`
	Command string   `koanf:"command"`
	Args    []string `koanf:"args"`
	URL     string   `koanf:"url"`
	Prefix  string   `koanf:"prefix"`
}

type GovernanceConfig struct {
	Allow    []string           `koanf:"allow"`
	Deny     []string           `koanf:"deny"`
	Policies []PolicyRuleConfig `koanf:"policies"`
}

type PolicyRuleConfig struct {
	ID     string `koanf:"id"`
	Effect string `koanf:"effect"` // allow, deny, pending
	Type   string `koanf:"type"`   // tool, resource
	Name   string `koanf:"name"`
	Reason string `koanf:"reason"`
}

type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

// ResilienceConfig bounds tool calls. A zero ToolTimeout or
// BreakerThreshold disables the corresponding middleware.
type ResilienceConfig struct {
	ToolTimeout      time.Duration `koanf:"tool_timeout"`
	BreakerThreshold int           `koanf:"breaker_threshold"`
	BreakerCooldown  time.Duration `koanf:"breaker_cooldown"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type ServerConfig struct {
	Name      string `koanf:"name"`
	Version   string `koanf:"version"`
	Transport string `koanf:"transport"` // stdio, http
	Addr      string `koanf:"addr"`
}

func defaults() map[string]any {
	return map[string]any{
		"log.level":                    "info",
		"log.format":                   "text",
		"agent.name":                   "atlas",
		"memory.capacity":              1000,
		"memory.persistent":            false,
		"runtime.lock_policy":          "release",
		"runtime.max_concurrent":       8,
		"tools.root":                   ".",
		"ratelimit.enabled":            false,
		"ratelimit.rps":                10.0,
		"ratelimit.burst":              20,
		"resilience.tool_timeout":      "0s",
		"resilience.breaker_threshold": 0,
		"resilience.breaker_cooldown":  "30s",
		"telemetry.exporter":           "none",
		"telemetry.otlp_endpoint":      "localhost:4317",
		"telemetry.otlp_insecure":      true,
		"server.name":                  "atlas",
		"server.version":               "dev",
		"server.transport":             "stdio",
		"server.addr":                  ":8080",
	}
}

// Load reads configuration from path (optional) and the environment.
func Load(path string) (*Config, error) {
	return load(path, "", nil)
}

// LoadWithProfile loads path and then overlays the profile file next to it,
// e.g. config.yaml + "prod" reads config.prod.yaml when it exists.
func LoadWithProfile(path, profile string) (*Config, error) {
	return load(path, profile, nil)
}

// LoadWithCLI loads configuration honouring --config, --profile (or --env)
// and repeated --set key=value flags. Unknown arguments are ignored.
func LoadWithCLI(args []string) (*Config, error) {
	cli, overrides, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	return load(cli.ConfigPath, cli.Profile, overrides)
}

func load(path, profile string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")
	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, err
		}
	}

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	// 2. Profile overlay
	if profile != "" {
		profilePath := profileConfigPath(path, profile)
		if _, err := os.Stat(profilePath); err == nil {
			if err := k.Load(file.Provider(profilePath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load profile %s: %w", profilePath, err)
			}
		}
	}

	// 3. Load from ENV (ATLAS_MEMORY_PERSIST_PATH -> memory.persist_path)
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, envPrefix)), "_", ".", 1)
	}), nil); err != nil {
		return nil, err
	}

	// 4. CLI overrides
	for key, value := range overrides {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("apply override %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the runtime cannot honour.
func (c *Config) Validate() error {
	if c.Memory.Capacity < 1 {
		return errors.InvalidConfig("memory.capacity must be at least 1")
	}
	if c.Memory.Persistent && strings.TrimSpace(c.Memory.PersistPath) == "" {
		return errors.InvalidConfig("memory.persist_path is required when memory.persistent is set")
	}
	switch c.Runtime.LockPolicy {
	case "release", "hold":
	default:
		return errors.InvalidConfig("runtime.lock_policy must be release or hold, got " + c.Runtime.LockPolicy)
	}
	if c.Runtime.MaxConcurrent < 1 {
		return errors.InvalidConfig("runtime.max_concurrent must be at least 1")
	}
	switch c.Telemetry.Exporter {
	case "", "none", "stdout", "otlp":
	default:
		return errors.InvalidConfig("unknown telemetry exporter " + c.Telemetry.Exporter)
	}
	switch c.Server.Transport {
	case "stdio", "http":
	default:
		return errors.InvalidConfig("server.transport must be stdio or http, got " + c.Server.Transport)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1) {
		return errors.InvalidConfig("ratelimit requires rps > 0 and burst >= 1")
	}
	if c.Resilience.ToolTimeout < 0 || c.Resilience.BreakerThreshold < 0 || c.Resilience.BreakerCooldown < 0 {
		return errors.InvalidConfig("resilience settings must not be negative")
	}
	for i, p := range c.Governance.Policies {
		switch strings.ToLower(strings.TrimSpace(p.Effect)) {
		case "allow", "deny", "pending":
		default:
			return errors.InvalidConfig("governance.policies[" + strconv.Itoa(i) + "] has unknown effect " + strconv.Quote(p.Effect))
		}
		switch strings.ToLower(p.Type) {
		case "", "tool", "resource":
		default:
			return errors.InvalidConfig("governance.policies[" + strconv.Itoa(i) + "] has unknown type " + strconv.Quote(p.Type))
		}
	}
	for i, r := range c.Tools.Remote {
		if r.Command == "" && r.URL == "" {
			return errors.InvalidConfig("tools.remote[" + strconv.Itoa(i) + "] needs a command or a url")
		}
	}
	return nil
}

func profileConfigPath(base, profile string) string {
	if base == "" {
		return "config." + profile + ".yaml"
	}
	dir := filepath.Dir(base)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(filepath.Base(base), ext)
	if ext == "" {
		ext = ".yaml"
	}
	return filepath.Join(dir, name+"."+profile+ext)
}

type cliArgs struct {
	ConfigPath string
	Profile    string
}

func parseCLIOverrides(args []string) (cliArgs, map[string]any, error) {
	var cli cliArgs
	overrides := make(map[string]any)

	value := func(i int, flag string) (string, error) {
		if i+1 >= len(args) || strings.HasPrefix(args[i+1], "--") {
			return "", fmt.Errorf("missing value for %s", flag)
		}
		return args[i+1], nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		flag, inline, hasInline := strings.Cut(arg, "=")
		if !strings.HasPrefix(flag, "--") {
			continue
		}
		switch flag {
		case "--config", "--profile", "--env", "--set":
		default:
			continue
		}
		v := inline
		if !hasInline {
			var err error
			if v, err = value(i, flag); err != nil {
				return cli, nil, err
			}
			i++
		}
		switch flag {
		case "--config":
			cli.ConfigPath = v
		case "--profile", "--env":
			cli.Profile = v
		case "--set":
			key, raw, ok := strings.Cut(v, "=")
			key = strings.TrimSpace(key)
			if !ok || key == "" {
				return cli, nil, fmt.Errorf("invalid --set value %q, expected key=value", v)
			}
			overrides[key] = parseOverrideValue(raw)
		}
	}
	return cli, overrides, nil
}

// parseOverrideValue decodes raw as a YAML value so numbers, booleans, lists
// and inline maps keep their types. Anything unparsable stays a string.
func parseOverrideValue(raw string) any {
	var v any
	if err := yamlv3.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	return v
}
