// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/jllopis/atlas/pkg/core"
	"github.com/jllopis/atlas/pkg/errors"
	"github.com/jllopis/atlas/pkg/tool"
)

// Timeout bounds each tool call to d. The tool sees a context with the
// deadline; one that ignores it keeps running in the background and its
// result is discarded. A zero d disables the bound.
func Timeout(d time.Duration) Middleware {
	return Func(func(ctx context.Context, tc *tool.Context, next Next) (core.Params, error) {
		if d <= 0 {
			return next(ctx, tc)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		type outcome struct {
			result core.Params
			err    error
		}
		done := make(chan outcome, 1)
		go func() {
			result, err := next(ctx, tc)
			done <- outcome{result, err}
		}()

		select {
		case <-ctx.Done():
			return nil, errors.New(errors.CodeToolExecutionFailed, "tool "+tc.Name()+" exceeded timeout", ctx.Err()).
				WithContext("tool", tc.Name()).
				WithContext("timeout", d.String())
		case out := <-done:
			return out.result, out.err
		}
	})
}

// BreakerState is the state of a per-tool circuit breaker.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// BreakerConfig configures CircuitBreaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens a
	// tool's circuit. Defaults to 5.
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes that close it
	// again. Defaults to 1.
	SuccessThreshold int
	// Cooldown is how long an open circuit rejects calls before admitting
	// a trial call. Defaults to 30s.
	Cooldown time.Duration
}

// Breakers tracks one circuit per tool name. Only TOOL_EXECUTION_FAILED
// outcomes count as failures; rejected or invalid calls leave the circuit
// alone.
type Breakers struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	circuits map[string]*circuit
}

type circuit struct {
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
	probing   bool
}

// NewBreakers returns an empty breaker set with defaults applied to cfg.
func NewBreakers(cfg BreakerConfig) *Breakers {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold < 1 {
		cfg.SuccessThreshold = 1
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breakers{cfg: cfg, now: time.Now, circuits: make(map[string]*circuit)}
}

// State reports the circuit state for name. Unknown tools are closed.
func (b *Breakers) State(name string) BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.circuits[name]
	if !ok {
		return BreakerClosed
	}
	if c.state == BreakerOpen && b.now().Sub(c.openedAt) >= b.cfg.Cooldown {
		return BreakerHalfOpen
	}
	return c.state
}

// Reset closes the circuit for name.
func (b *Breakers) Reset(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.circuits, name)
}

// Middleware returns the interceptor that enforces the breakers.
func (b *Breakers) Middleware() Middleware {
	return Func(func(ctx context.Context, tc *tool.Context, next Next) (core.Params, error) {
		name := tc.Name()
		if !b.allow(name) {
			return nil, errors.New(errors.CodeToolExecutionFailed, "circuit open for tool "+name, nil).
				WithContext("tool", name).
				WithContext("breaker", string(BreakerOpen))
		}
		recorded := false
		defer func() {
			if !recorded {
				b.record(name, true)
			}
		}()
		result, err := next(ctx, tc)
		recorded = true
		b.record(name, errors.HasCode(err, errors.CodeToolExecutionFailed))
		return result, err
	})
}

// allow admits a call. The tool body runs outside b.mu; while half-open
// only one trial call is in flight at a time. A call that panics counts as
// a failure.
func (b *Breakers) allow(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.circuits[name]
	if !ok {
		c = &circuit{state: BreakerClosed}
		b.circuits[name] = c
	}
	switch c.state {
	case BreakerOpen:
		if b.now().Sub(c.openedAt) < b.cfg.Cooldown {
			return false
		}
		c.state = BreakerHalfOpen
		c.successes = 0
		c.probing = true
		return true
	case BreakerHalfOpen:
		if c.probing {
			return false
		}
		c.probing = true
		return true
	}
	return true
}

func (b *Breakers) record(name string, failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.circuits[name]
	if !ok {
		return
	}
	switch c.state {
	case BreakerHalfOpen:
		c.probing = false
		if failed {
			c.state = BreakerOpen
			c.openedAt = b.now()
			c.failures = b.cfg.FailureThreshold
			return
		}
		c.successes++
		if c.successes >= b.cfg.SuccessThreshold {
			c.state = BreakerClosed
			c.failures = 0
			c.successes = 0
		}
	case BreakerClosed:
		if !failed {
			c.failures = 0
			return
		}
		c.failures++
		if c.failures >= b.cfg.FailureThreshold {
			c.state = BreakerOpen
			c.openedAt = b.now()
		}
	}
}

// CircuitBreaker is shorthand for NewBreakers(cfg).Middleware().
func CircuitBreaker(cfg BreakerConfig) Middleware {
	return NewBreakers(cfg).Middleware()
}
