// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jllopis/atlas/pkg/config"
	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/governance"
	"github.com/jllopis/atlas/pkg/mcp"
	"github.com/jllopis/atlas/pkg/memory"
	"github.com/jllopis/atlas/pkg/middleware"
	"github.com/jllopis/atlas/pkg/runtime"
	"github.com/jllopis/atlas/pkg/task"
	"github.com/jllopis/atlas/pkg/telemetry"
	"github.com/jllopis/atlas/pkg/tool"
	"github.com/jllopis/atlas/pkg/tools"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"
)

// app is a fully wired runtime plus the resources it owns.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	rt       *runtime.Runtime
	filter   *governance.ToolFilter
	journal  *task.SQLiteJournal
	remotes  *mcp.Remotes
	health   *core.Health
	shutdown telemetry.ShutdownFunc
}

func newApp(ctx context.Context, flags globalFlags, logOut io.Writer) (_ *app, err error) {
	cfg, err := config.LoadWithCLI(flags.ConfigArgs)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.logger = telemetry.ConfigureSlog(logOut, cfg.Log.Level, cfg.Log.Format)
	a.shutdown, err = telemetry.Init(cfg.Server.Name, version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		Writer:       logOut,
	})
	if err != nil {
		return nil, err
	}
	metrics, err := telemetry.NewMetrics(otel.Meter("atlas"))
	if err != nil {
		return nil, err
	}

	store, err := newMemoryStore(ctx, cfg.Memory, metrics, a.logger)
	if err != nil {
		return nil, err
	}

	opts := []runtime.Option{
		runtime.WithLogger(a.logger),
		runtime.WithMetrics(metrics),
		runtime.WithMemoryStore(store),
		runtime.WithLockPolicy(runtime.LockPolicy(cfg.Runtime.LockPolicy)),
		runtime.WithMaxConcurrent(cfg.Runtime.MaxConcurrent),
		runtime.WithEventEmitter(core.EmitterFunc(func(ctx context.Context, ev core.Event) {
			a.logger.DebugContext(ctx, "runtime.event",
				slog.String("type", string(ev.Type)),
				slog.String("task_id", ev.TaskID),
			)
		})),
	}
	if cfg.Runtime.JournalPath != "" {
		a.journal, err = task.OpenSQLiteJournal(cfg.Runtime.JournalPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, runtime.WithJournal(a.journal))
	}

	a.filter = governance.FromConfig(cfg.Governance)
	opts = append(opts, runtime.WithResourcePolicy(a.filter))
	opts = append(opts, runtime.WithMiddleware(
		middleware.Logging(a.logger),
		middleware.Tracing(otel.Tracer("atlas/tools")),
		middleware.Metrics(metrics),
		middleware.Policy(a.filter),
	))
	if cfg.RateLimit.Enabled {
		opts = append(opts, runtime.WithMiddleware(middleware.RateLimit(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst)))
	}
	if n := cfg.Resilience.BreakerThreshold; n > 0 {
		opts = append(opts, runtime.WithMiddleware(middleware.CircuitBreaker(middleware.BreakerConfig{
			FailureThreshold: n,
			Cooldown:         cfg.Resilience.BreakerCooldown,
		})))
	}
	if d := cfg.Resilience.ToolTimeout; d > 0 {
		opts = append(opts, runtime.WithMiddleware(middleware.Timeout(d)))
	}

	a.rt, err = runtime.New(runtime.ConfigFromAgent(cfg.Agent), opts...)
	if err != nil {
		return nil, err
	}
	if err := tools.RegisterBuiltins(a.rt.Registry(), a.rt.Resources(), cfg.Tools.Root); err != nil {
		return nil, err
	}
	if len(cfg.Tools.Remote) > 0 {
		a.remotes = mcp.ConnectRemotes(ctx, a.rt.Registry(), cfg.Tools.Remote, nil, a.logger)
	}
	if cfg.Tools.Manifest != "" {
		manifest, err := tool.LoadManifest(cfg.Tools.Manifest)
		if err != nil {
			return nil, err
		}
		if err := manifest.Apply(a.rt.Registry()); err != nil {
			return nil, err
		}
	}
	a.health = a.healthChecks(store)
	return a, nil
}

func (a *app) healthChecks(store *memory.Store) *core.Health {
	h := core.NewHealth()
	h.Register("tools", core.HealthFunc(func(context.Context) core.HealthResult {
		n := a.rt.Registry().Len()
		if n == 0 {
			return core.HealthResult{Status: core.HealthDegraded, Message: "no tools registered"}
		}
		return core.HealthResult{Status: core.HealthHealthy, Message: fmt.Sprintf("%d tools", n)}
	}))
	h.Register("memory", core.HealthFunc(func(context.Context) core.HealthResult {
		return core.HealthResult{
			Status:  core.HealthHealthy,
			Message: fmt.Sprintf("%d/%d entries", store.Len(), store.Config().Capacity),
		}
	}))
	if a.journal != nil {
		h.Register("journal", core.HealthFunc(func(ctx context.Context) core.HealthResult {
			if err := a.journal.Ping(ctx); err != nil {
				return core.HealthResult{Status: core.HealthUnhealthy, Message: err.Error()}
			}
			return core.HealthResult{Status: core.HealthHealthy}
		}))
	}
	if configured := len(a.cfg.Tools.Remote); configured > 0 {
		h.Register("remotes", core.HealthFunc(func(ctx context.Context) core.HealthResult {
			connected := 0
			if a.remotes != nil {
				connected = a.remotes.Len() - len(a.remotes.Ping(ctx))
			}
			status := core.HealthHealthy
			switch {
			case connected == 0:
				status = core.HealthUnhealthy
			case connected < configured:
				status = core.HealthDegraded
			}
			return core.HealthResult{Status: status, Message: fmt.Sprintf("%d/%d connected", connected, configured)}
		}))
	}
	return h
}

func newMemoryStore(ctx context.Context, cfg config.MemoryConfig, metrics *telemetry.Metrics, logger *slog.Logger) (*memory.Store, error) {
	memCfg := memory.Config{
		Capacity:    cfg.Capacity,
		Persistent:  cfg.Persistent,
		PersistPath: cfg.PersistPath,
	}
	store, err := memory.NewStore(memCfg, memory.WithObserver(metrics), memory.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := store.Load(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// Close waits for submitted tasks and releases everything the app owns.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.rt != nil {
		a.rt.Wait()
	}
	if a.remotes != nil {
		errs = append(errs, a.remotes.Close())
	}
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
	}
	return stderrors.Join(errs...)
}
