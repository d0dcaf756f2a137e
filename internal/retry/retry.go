// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retry wraps a single backend call with bounded exponential backoff.
// Implements: prd008-resilience (R2.1-R2.4);
//
//	docs/ARCHITECTURE § Retry Policy.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/pdiddy/research-orchestrator/internal/backend"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 50 * time.Millisecond
	defaultMaxDelay    = 2 * time.Second
)

// Policy retries transient backend failures with exponential backoff and
// full jitter. Permanent failures pass through after exactly one attempt
// (R2.2). All sleeps respect the caller's context, so retries never outlive
// the task deadline (R2.3).
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// NewPolicy builds a policy from cfg, filling zero fields with defaults.
func NewPolicy(cfg types.RetryConfig) Policy {
	p := Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	return p
}

// Do runs fn up to MaxAttempts times. On exhaustion the last transient
// error surfaces as kind service_error so the circuit breaker counts it
// against the failure window (R2.4).
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) ([]types.ResultItem, error)) ([]types.ResultItem, error) {
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, p.delay(attempt-1)); err != nil {
				return nil, err
			}
		}

		items, err := fn(ctx)
		if err == nil {
			return items, nil
		}
		if !backend.Transient(err) {
			return nil, err
		}
		lastErr = err
	}

	name := "backend"
	if be, ok := lastErr.(*backend.Error); ok {
		name = be.Backend
	}
	return nil, backend.NewError(name, types.FailureServiceError,
		fmt.Errorf("%d attempts exhausted: %w", p.MaxAttempts, lastErr))
}

// delay returns base * 2^attempt plus jitter in [0, delay/2), capped at
// MaxDelay. The AWS full-jitter shape, bounded so a task deadline stays
// predictable.
func (p Policy) delay(attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	d := p.BaseDelay << uint(attempt)
	if d <= 0 || d > p.MaxDelay {
		return p.MaxDelay
	}
	d += time.Duration(rand.Int63n(int64(d)/2 + 1))
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// sleepContext sleeps for d but returns early if ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
