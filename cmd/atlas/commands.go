// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/jllopis/atlas/pkg/config"
	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/errors"
	"github.com/jllopis/atlas/pkg/mcp"
	"github.com/jllopis/atlas/pkg/runtime"
	"github.com/jllopis/atlas/pkg/task"
	yaml "gopkg.in/yaml.v3"
)

func runServe(ctx context.Context, a *app, flags globalFlags, args []string) error {
	if len(args) > 0 {
		return errors.InvalidRequest(fmt.Sprintf("unexpected args: %v", args), nil)
	}
	srv := mcp.NewServer(a.rt, a.cfg.Server.Name, a.cfg.Server.Version,
		mcp.WithServerLogger(a.logger),
		mcp.WithInstructions(a.cfg.Agent.Description),
		mcp.WithToolFilter(a.filter),
	)
	if flags.ConfigPath != "" {
		watcher, err := config.NewWatcher(flags.ConfigPath,
			config.WithWatchProfile(flags.Profile),
			config.WithWatchLogger(a.logger),
		)
		if err != nil {
			return err
		}
		watcher.OnChange(func(cfg *config.Config) {
			if err := cfg.Validate(); err != nil {
				a.logger.Warn("config.reload.rejected", slog.String("error", err.Error()))
				return
			}
			a.filter.ApplyConfig(cfg.Governance)
			srv.Sync()
			a.logger.Info("governance.reloaded",
				slog.Int("allow", len(cfg.Governance.Allow)),
				slog.Int("deny", len(cfg.Governance.Deny)),
				slog.Int("policies", len(cfg.Governance.Policies)),
			)
		})
		watcher.Start(ctx)
		defer watcher.Stop()

		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		served := make(chan struct{})
		defer close(served)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-served:
					return
				case <-hup:
					_ = watcher.Reload()
				}
			}
		}()
	}

	a.logger.Info("atlas.serve",
		slog.String("agent", a.rt.Name()),
		slog.String("transport", a.cfg.Server.Transport),
		slog.Int("tools", a.rt.Registry().Len()),
	)
	if a.cfg.Server.Transport == "http" {
		return srv.ServeStreamableHTTP(ctx, a.cfg.Server.Addr)
	}
	return srv.ServeStdio()
}

func runTool(ctx context.Context, a *app, flags globalFlags, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.InvalidRequest("usage: atlas run <tool> [key=value ...]", nil)
	}
	params, err := parseParams(args[1:])
	if err != nil {
		return err
	}
	params[runtime.ToolParam] = args[0]

	id := uuid.New()
	start := time.Now()
	out, err := a.rt.ExecuteTask(ctx, id, params)
	if err != nil {
		return err
	}
	if flags.JSON {
		return printJSON(stdout, map[string]any{"task_id": id.String(), "result": out})
	}
	color.New(color.FgGreen).Fprintf(stdout, "✓ %s", args[0])
	color.New(color.Faint).Fprintf(stdout, " (task %s, %s)\n", id, time.Since(start).Round(time.Microsecond))
	return printParams(stdout, out)
}

func runTools(a *app, flags globalFlags, stdout io.Writer) error {
	descriptors := a.rt.ListTools()
	if flags.JSON {
		return printJSON(stdout, descriptors)
	}
	cyan := color.New(color.FgCyan)
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	for _, d := range descriptors {
		cyan.Fprint(w, d.Name)
		fmt.Fprintf(w, "\t%s\n", d.Description)
	}
	return w.Flush()
}

func runResource(ctx context.Context, a *app, flags globalFlags, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		list := a.rt.Resources().List()
		if flags.JSON {
			return printJSON(stdout, list)
		}
		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		for _, info := range list {
			fmt.Fprintf(w, "%s\t%s\n", info.Name, info.ResourceType)
		}
		return w.Flush()
	}
	params, err := parseParams(args[1:])
	if err != nil {
		return err
	}
	out, err := a.rt.AccessResource(ctx, args[0], params)
	if err != nil {
		return err
	}
	if flags.JSON {
		return printJSON(stdout, out)
	}
	return printParams(stdout, out)
}

func runTasks(ctx context.Context, a *app, flags globalFlags, args []string, stdout io.Writer) error {
	if len(args) < 2 || args[0] != "submit" {
		return errors.InvalidRequest("usage: atlas tasks submit <tool> [key=value ...]", nil)
	}
	params, err := parseParams(args[2:])
	if err != nil {
		return err
	}
	params[runtime.ToolParam] = args[1]
	id, err := a.rt.Submit(ctx, params)
	if err != nil {
		return err
	}
	a.rt.Wait()
	rec, _ := a.rt.GetTask(id)
	if flags.JSON {
		return printJSON(stdout, rec)
	}
	printRecord(stdout, rec)
	return nil
}

func runHistory(ctx context.Context, a *app, flags globalFlags, args []string, stdout io.Writer) error {
	if a.journal == nil {
		return errors.InvalidConfig("runtime.journal_path is not configured")
	}
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	taskID := fs.String("task", "", "only show this task")
	status := fs.String("status", "", "only show this status")
	limit := fs.Int("limit", 0, "maximum rows")
	if err := fs.Parse(args); err != nil {
		return errors.InvalidRequest("history flags", err)
	}
	filter := task.JournalFilter{Status: task.Status(*status), Limit: *limit}
	if *taskID != "" {
		id, err := uuid.Parse(*taskID)
		if err != nil {
			return errors.InvalidRequest("invalid --task", err)
		}
		filter.TaskID = id
	}
	history, err := a.journal.History(ctx, filter)
	if err != nil {
		return err
	}
	if flags.JSON {
		if history == nil {
			history = []task.Record{}
		}
		return printJSON(stdout, history)
	}
	for _, rec := range history {
		printRecord(stdout, rec)
	}
	return nil
}

func runRemember(ctx context.Context, a *app, flags globalFlags, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.InvalidRequest("usage: atlas remember <text>", nil)
	}
	id, err := a.rt.Remember(ctx, strings.Join(args, " "), core.Params{"source": "cli"})
	if err != nil {
		return err
	}
	if flags.JSON {
		return printJSON(stdout, map[string]string{"id": id.String()})
	}
	fmt.Fprintln(stdout, id)
	return nil
}

func runRecall(a *app, flags globalFlags, args []string, stdout io.Writer) error {
	entries := a.rt.Recall(strings.Join(args, " "))
	if flags.JSON {
		return printJSON(stdout, entries)
	}
	faint := color.New(color.Faint)
	for _, e := range entries {
		faint.Fprintf(stdout, "%s ", e.Timestamp.Format(time.RFC3339))
		fmt.Fprintf(stdout, "%v\n", e.Data)
	}
	return nil
}

func runHealth(ctx context.Context, a *app, flags globalFlags, stdout io.Writer) error {
	results, overall := a.health.CheckAll(ctx)
	if flags.JSON {
		if err := printJSON(stdout, map[string]any{"status": overall, "components": results}); err != nil {
			return err
		}
	} else {
		w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.Component, r.Status, r.Message)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	if overall == core.HealthUnhealthy {
		return errors.StateError("runtime is unhealthy", nil)
	}
	return nil
}

// parseParams turns key=value arguments into params. Values are decoded as
// YAML scalars or flow collections, so a=15 is a number and tags=[x,y] a list.
func parseParams(args []string) (core.Params, error) {
	params := core.Params{}
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, errors.InvalidRequest(fmt.Sprintf("expected key=value, got %q", arg), nil)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
			value = raw
		}
		params[key] = value
	}
	return params, nil
}

func printRecord(w io.Writer, rec task.Record) {
	status := color.New(color.FgYellow)
	switch rec.Status {
	case task.StatusCompleted:
		status = color.New(color.FgGreen)
	case task.StatusFailed:
		status = color.New(color.FgRed)
	}
	status.Fprintf(w, "%-10s", rec.Status)
	fmt.Fprintf(w, " %s %s", rec.ID, rec.Tool)
	if rec.Error != "" {
		fmt.Fprintf(w, " %s: %s", rec.ErrorCode, rec.Error)
	}
	fmt.Fprintln(w)
}

func printParams(w io.Writer, p core.Params) error {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		v := p[k]
		switch v.(type) {
		case map[string]any, []any:
			encoded, err := json.Marshal(v)
			if err != nil {
				return err
			}
			v = string(encoded)
		}
		fmt.Fprintf(tw, "%s\t%v\n", k, v)
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
