// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package circuit isolates calls to failing backends behind per-dependency
// circuit breakers. The registry is an explicit object owned by the
// orchestrator's composition root, never a package-level singleton.
// Implements: prd008-resilience (R3.1-R3.5);
//
//	docs/ARCHITECTURE § Circuit Breaker.
package circuit

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/pdiddy/research-orchestrator/internal/backend"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// ErrCircuitOpen is the sentinel wrapped into the circuit_open failure
// surfaced while a dependency is isolated.
var ErrCircuitOpen = errors.New("circuit open")

// State is the circuit state exposed on the introspection surface.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
	StateUnknown  State = "unknown"
)

// Health is a point-in-time snapshot of one dependency's circuit.
type Health struct {
	Backend             string    `json:"backend"`
	State               State     `json:"state"`
	Requests            uint32    `json:"requests"`
	TotalFailures       uint32    `json:"total_failures"`
	ConsecutiveFailures uint32    `json:"consecutive_failures"`
	LastTransition      time.Time `json:"last_transition"`
}

// TransitionListener is notified after a dependency changes state. It runs
// on the breaker's transition path and must not call back into the registry.
type TransitionListener func(name string, from, to State)

// Registry holds one circuit breaker per dependency. Creation is lazy;
// state mutation is confined to gobreaker's own per-breaker synchronization,
// so unrelated dependencies never contend (prd008-resilience R3.5).
type Registry struct {
	cfg    types.CircuitConfig
	logger *zap.Logger

	mu       sync.RWMutex
	deps     map[string]*dependency
	listener TransitionListener
}

type dependency struct {
	breaker *gobreaker.CircuitBreaker

	mu             sync.RWMutex
	lastTransition time.Time
}

// NewRegistry builds a registry with cfg, filling zero fields with the
// defaults from prd008-resilience R3.1 (threshold 5, ratio 0.6 over at
// least 10 requests, 30s cooldown).
func NewRegistry(cfg types.CircuitConfig, logger *zap.Logger) *Registry {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.6
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 10
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.WindowInterval <= 0 {
		cfg.WindowInterval = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		cfg:    cfg,
		logger: logger,
		deps:   make(map[string]*dependency),
	}
}

// SetTransitionListener registers the single transition listener. Call
// before the registry serves traffic.
func (r *Registry) SetTransitionListener(fn TransitionListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listener = fn
}

// Execute runs fn through name's circuit breaker. While the circuit is
// open, fn is never invoked and the call fails immediately with a
// circuit_open error (R3.2). Permanent backend errors pass through without
// counting against the failure window; only transient failures degrade the
// dependency's health.
func (r *Registry) Execute(name string, fn func() ([]types.ResultItem, error)) ([]types.ResultItem, error) {
	dep := r.getOrCreate(name)

	out, err := dep.breaker.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, backend.NewError(name, types.FailureCircuitOpen, ErrCircuitOpen)
		}
		return nil, err
	}

	items, _ := out.([]types.ResultItem)
	return items, nil
}

// State returns the current circuit state for name, StateUnknown if the
// dependency has never been called.
func (r *Registry) State(name string) State {
	r.mu.RLock()
	dep, ok := r.deps[name]
	r.mu.RUnlock()
	if !ok {
		return StateUnknown
	}
	return fromGobreaker(dep.breaker.State())
}

// Health returns the introspection snapshot for name.
func (r *Registry) Health(name string) (Health, bool) {
	r.mu.RLock()
	dep, ok := r.deps[name]
	r.mu.RUnlock()
	if !ok {
		return Health{}, false
	}

	counts := dep.breaker.Counts()
	dep.mu.RLock()
	last := dep.lastTransition
	dep.mu.RUnlock()

	return Health{
		Backend:             name,
		State:               fromGobreaker(dep.breaker.State()),
		Requests:            counts.Requests,
		TotalFailures:       counts.TotalFailures,
		ConsecutiveFailures: counts.ConsecutiveFailures,
		LastTransition:      last,
	}, true
}

// Names returns the dependencies the registry has seen, in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.deps))
	for name := range r.deps {
		names = append(names, name)
	}
	return names
}

func (r *Registry) getOrCreate(name string) *dependency {
	r.mu.RLock()
	dep, ok := r.deps[name]
	r.mu.RUnlock()
	if ok {
		return dep
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if dep, ok = r.deps[name]; ok {
		return dep
	}

	dep = &dependency{}
	settings := gobreaker.Settings{
		Name: name,
		// Exactly one probe while half-open (R3.3).
		MaxRequests: 1,
		Interval:    r.cfg.WindowInterval,
		Timeout:     r.cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures >= r.cfg.FailureThreshold ||
				(counts.Requests >= r.cfg.MinRequests && failureRatio >= r.cfg.FailureRatio)
		},
		IsSuccessful: func(err error) bool {
			// Permanent failures are the caller's problem, not the
			// dependency's health.
			return err == nil || !backend.Transient(err)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			r.handleTransition(dep, name, fromGobreaker(from), fromGobreaker(to))
		},
	}
	dep.breaker = gobreaker.NewCircuitBreaker(settings)
	r.deps[name] = dep
	return dep
}

func (r *Registry) handleTransition(dep *dependency, name string, from, to State) {
	dep.mu.Lock()
	dep.lastTransition = time.Now()
	dep.mu.Unlock()

	r.logger.Warn("circuit state changed",
		zap.String("backend", name),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	r.mu.RLock()
	listener := r.listener
	r.mu.RUnlock()
	if listener != nil {
		listener(name, from, to)
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	}
	return StateUnknown
}
