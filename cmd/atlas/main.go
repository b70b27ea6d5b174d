// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the atlas command: it hosts one agent runtime and
// either serves it over MCP or runs single tasks from the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

var version = "dev"

type globalFlags struct {
	ConfigArgs []string
	ConfigPath string
	Profile    string
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	global, args, err := parseGlobalFlags(argv)
	if err != nil {
		printError(stderr, err, false)
		return 2
	}
	if global.Help || len(args) == 0 {
		printUsage(stdout)
		return 0
	}

	switch args[0] {
	case "help":
		printUsage(stdout)
		return 0
	case "version":
		fmt.Fprintln(stdout, version)
		return 0
	case "serve", "run", "tools", "resource", "tasks", "history", "remember", "recall", "health":
	default:
		printError(stderr, fmt.Errorf("unknown command %q", args[0]), global.JSON)
		return 2
	}

	a, err := newApp(ctx, global, stderr)
	if err != nil {
		printError(stderr, err, global.JSON)
		return 1
	}
	defer a.Close(context.Background())

	var cmdErr error
	switch args[0] {
	case "serve":
		cmdErr = runServe(ctx, a, global, args[1:])
	case "run":
		cmdErr = runTool(ctx, a, global, args[1:], stdout)
	case "tools":
		cmdErr = runTools(a, global, stdout)
	case "resource":
		cmdErr = runResource(ctx, a, global, args[1:], stdout)
	case "tasks":
		cmdErr = runTasks(ctx, a, global, args[1:], stdout)
	case "history":
		cmdErr = runHistory(ctx, a, global, args[1:], stdout)
	case "remember":
		cmdErr = runRemember(ctx, a, global, args[1:], stdout)
	case "recall":
		cmdErr = runRecall(a, global, args[1:], stdout)
	case "health":
		cmdErr = runHealth(ctx, a, global, stdout)
	}
	if cmdErr != nil {
		printError(stderr, cmdErr, global.JSON)
		return 1
	}
	return 0
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		name, inline, hasInline := strings.Cut(arg, "=")
		switch name {
		case "-h", "--help":
			flags.Help = true
			return flags, nil, nil
		case "--json":
			flags.JSON = true
		case "--config", "--profile", "--env", "--set":
			value := inline
			if !hasInline {
				if i+1 >= len(args) {
					return flags, nil, fmt.Errorf("missing value for %s", name)
				}
				value = args[i+1]
				i++
			}
			flags.ConfigArgs = append(flags.ConfigArgs, name, value)
			switch name {
			case "--config":
				flags.ConfigPath = value
			case "--profile", "--env":
				flags.Profile = value
			}
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Atlas agent runtime

Usage:
  atlas [global flags] <command> [args]

Global flags:
  --config <path>      YAML configuration file
  --profile <name>     Overlay config.<name>.yaml next to --config
  --set key=value      Override config (repeatable)
  --json               JSON output

Commands:
  serve                        Serve the runtime over MCP (stdio or http)
  run <tool> [key=value ...]   Execute one tool as a task
  tools                        List registered tools
  resource <name> [key=value]  Read a resource
  tasks submit <tool> [k=v]    Submit a task and wait for it
  history [--task id] [--status s] [--limit n]
                               Show journaled task transitions
  remember <text>              Append an entry to agent memory
  recall [query]               Search agent memory
  health                       Check journal, memory, remotes and tools
  version
`)
}
