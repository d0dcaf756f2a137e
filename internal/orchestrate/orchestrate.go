// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrate fans one research query out to the targeted backends
// concurrently, consulting the cache first per backend and routing fresh
// calls through the circuit breaker and retry chain, then synthesizes a
// partial-tolerant answer within the query's time budget.
// Implements: prd007-orchestration (R1-R5);
//
//	docs/ARCHITECTURE § Orchestrator.
package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/research-orchestrator/internal/backend"
	"github.com/pdiddy/research-orchestrator/internal/cache"
	"github.com/pdiddy/research-orchestrator/internal/circuit"
	"github.com/pdiddy/research-orchestrator/internal/retry"
	"github.com/pdiddy/research-orchestrator/internal/synthesis"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

const defaultBudget = 2 * time.Second

// Orchestrator coordinates concurrent backend calls for one logical query.
// All dependencies are injected at composition time; the orchestrator holds
// no hidden global state (prd007-orchestration R5.1).
type Orchestrator struct {
	order   []string
	clients map[string]backend.Backend
	cfgs    map[string]types.BackendConfig

	registry *circuit.Registry
	cache    cache.Cache
	policy   retry.Policy
	synth    *synthesis.Synthesizer
	events   *Dispatcher
	logger   *zap.Logger

	defaultBudget time.Duration
	defaultTTL    time.Duration
}

// New wires an orchestrator from cfg and the backend clients, one client
// per cfg.Backends entry. The circuit registry's transition listener is
// claimed here and forwarded to the event dispatcher.
func New(cfg types.Config, clients []backend.Backend, reg *circuit.Registry, c cache.Cache, events *Dispatcher, logger *zap.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	byName := make(map[string]backend.Backend, len(clients))
	for _, cl := range clients {
		byName[cl.Name()] = cl
	}

	o := &Orchestrator{
		clients:       byName,
		cfgs:          make(map[string]types.BackendConfig, len(cfg.Backends)),
		registry:      reg,
		cache:         c,
		policy:        retry.NewPolicy(cfg.Retry),
		events:        events,
		logger:        logger,
		defaultBudget: cfg.Orchestrator.DefaultBudget,
		defaultTTL:    cfg.Cache.DefaultTTL,
	}
	if o.defaultBudget <= 0 {
		o.defaultBudget = defaultBudget
	}
	if o.defaultTTL <= 0 {
		o.defaultTTL = 5 * time.Minute
	}

	profiles := make(map[string]synthesis.SourceProfile, len(cfg.Backends))
	for _, bc := range cfg.Backends {
		if _, ok := byName[bc.Name]; !ok {
			return nil, fmt.Errorf("no client provided for configured backend %q", bc.Name)
		}
		o.order = append(o.order, bc.Name)
		o.cfgs[bc.Name] = bc
		profiles[bc.Name] = synthesis.SourceProfile{
			QualityWeight: bc.QualityWeight,
			Priority:      bc.Priority,
		}
	}
	o.synth = synthesis.New(profiles, cfg.Orchestrator.MaxItems)

	if reg != nil {
		reg.SetTransitionListener(func(name string, from, to circuit.State) {
			o.events.Dispatch(Event{
				Kind:    EventCircuitTransition,
				Backend: name,
				From:    string(from),
				To:      string(to),
			})
		})
	}
	return o, nil
}

// Backends returns the configured backend identifiers in configuration order.
func (o *Orchestrator) Backends() []string {
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}

// DependencyHealth returns the circuit snapshot for one backend.
func (o *Orchestrator) DependencyHealth(name string) (circuit.Health, bool) {
	if _, ok := o.cfgs[name]; !ok {
		return circuit.Health{}, false
	}
	h, ok := o.registry.Health(name)
	if !ok {
		// Never called yet: report a closed, untouched circuit.
		return circuit.Health{Backend: name, State: circuit.StateClosed}, true
	}
	return h, true
}

// Run executes one research query and always returns a result for valid
// input: partial failure annotates the result, it never aborts the call
// (prd007-orchestration R4.4). The only errors are malformed input.
func (o *Orchestrator) Run(ctx context.Context, q types.ResearchQuery) (types.OrchestrationResult, error) {
	if strings.TrimSpace(q.Text) == "" {
		return types.OrchestrationResult{}, fmt.Errorf("query text is empty")
	}
	budget := q.Budget
	if budget == 0 {
		budget = o.defaultBudget
	}
	if budget < 0 {
		return types.OrchestrationResult{}, fmt.Errorf("query budget must be positive, got %v", budget)
	}

	targets := q.Backends
	if len(targets) == 0 {
		targets = o.order
	}
	if len(targets) == 0 {
		return types.OrchestrationResult{}, fmt.Errorf("no target backends configured")
	}
	seen := make(map[string]bool, len(targets))
	for _, name := range targets {
		if _, ok := o.cfgs[name]; !ok {
			return types.OrchestrationResult{}, fmt.Errorf("unknown backend %q", name)
		}
		if seen[name] {
			return types.OrchestrationResult{}, fmt.Errorf("duplicate backend %q in target set", name)
		}
		seen[name] = true
	}

	queryID := uuid.NewString()
	started := time.Now()
	o.events.Dispatch(Event{Kind: EventQueryStarted, QueryID: queryID, Query: q.Text})

	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	// One task per backend, all started together (prd007 R3.1). The channel
	// is buffered so stragglers finishing after the budget never block.
	ch := make(chan types.ServiceResult, len(targets))
	maxWeight := 1.0
	for _, name := range targets {
		if w := o.cfgs[name].Weight; w > maxWeight {
			maxWeight = w
		}
	}
	for _, name := range targets {
		share := taskShare(budget, o.cfgs[name].Weight, maxWeight)
		go o.resolveTask(runCtx, queryID, name, q.Text, share, ch)
	}

	// Joint wait: all tasks resolve or the budget expires, whichever first.
	// Result assembly happens only after this loop, so the outcome is
	// order-independent with respect to which backend answers first.
	resolved := make(map[string]bool, len(targets))
	ordered := make([]types.ServiceResult, 0, len(targets))
	for len(ordered) < len(targets) {
		select {
		case res := <-ch:
			resolved[res.Backend] = true
			ordered = append(ordered, res)
			o.events.Dispatch(Event{Kind: EventBackendResolved, QueryID: queryID, Backend: res.Backend, Result: &res})
		case <-runCtx.Done():
			// Budget expired: signal cancellation and record the
			// stragglers without waiting on them (prd007 R3.4).
			cancel()
			for _, name := range targets {
				if resolved[name] {
					continue
				}
				res := types.ServiceResult{
					Backend:        name,
					Status:         types.StatusTimeout,
					Latency:        budget,
					FailureKind:    types.FailureBudgetExceeded,
					FailureMessage: fmt.Sprintf("unresolved after %v budget", budget),
				}
				ordered = append(ordered, res)
				o.events.Dispatch(Event{Kind: EventBackendResolved, QueryID: queryID, Backend: name, Result: &res})
			}
		}
	}

	result := o.assemble(queryID, q.Text, targets, ordered, started)
	o.events.Dispatch(Event{
		Kind:         EventQueryCompleted,
		QueryID:      queryID,
		Completeness: result.CompletenessScore,
		Elapsed:      time.Since(started),
	})
	return result, nil
}

// resolveTask produces exactly one ServiceResult for a (query, backend)
// pairing: cache first, then the circuit → retry → client chain.
func (o *Orchestrator) resolveTask(ctx context.Context, queryID, name, text string, share time.Duration, ch chan<- types.ServiceResult) {
	start := time.Now()
	key := cache.Key(name, text)

	if value, ok, err := o.cache.Get(ctx, key); err != nil {
		o.logger.Warn("cache get failed",
			zap.String("query_id", queryID),
			zap.String("backend", name),
			zap.Error(err))
	} else if ok {
		var items []types.ResultItem
		if err := json.Unmarshal(value, &items); err == nil {
			ch <- types.ServiceResult{
				Backend:  name,
				Status:   types.StatusSuccess,
				Items:    items,
				CacheHit: true,
				Latency:  time.Since(start),
			}
			return
		}
		// Undecodable entry: drop it and fall through to a fresh call.
		_ = o.cache.Invalidate(ctx, key)
	}

	taskCtx, cancel := context.WithTimeout(ctx, share)
	defer cancel()

	items, err := o.registry.Execute(name, func() ([]types.ResultItem, error) {
		return o.policy.Do(taskCtx, func(ctx context.Context) ([]types.ResultItem, error) {
			return o.clients[name].Call(ctx, text)
		})
	})
	if err != nil {
		ch <- types.ServiceResult{
			Backend:        name,
			Status:         types.StatusFailure,
			Latency:        time.Since(start),
			FailureKind:    backend.KindOf(err),
			FailureMessage: err.Error(),
		}
		return
	}

	o.writeBack(ctx, name, key, items)
	ch <- types.ServiceResult{
		Backend: name,
		Status:  types.StatusSuccess,
		Items:   items,
		Latency: time.Since(start),
	}
}

// writeBack stores a fresh success under the backend's TTL. The write is
// detached from the query deadline so a result arriving near expiry still
// lands in the cache.
func (o *Orchestrator) writeBack(ctx context.Context, name, key string, items []types.ResultItem) {
	ttl := o.cfgs[name].CacheTTL
	if ttl <= 0 {
		ttl = o.defaultTTL
	}
	value, err := json.Marshal(items)
	if err != nil {
		o.logger.Warn("cache encode failed", zap.String("backend", name), zap.Error(err))
		return
	}
	if err := o.cache.Set(context.WithoutCancel(ctx), key, value, ttl); err != nil {
		o.logger.Warn("cache set failed", zap.String("backend", name), zap.Error(err))
	}
}

// assemble builds the immutable OrchestrationResult from the collected
// per-task outcomes (prd007 R4.1-R4.5).
func (o *Orchestrator) assemble(queryID, text string, targets []string, ordered []types.ServiceResult, started time.Time) types.OrchestrationResult {
	result := types.OrchestrationResult{
		QueryID:             queryID,
		Query:               text,
		Items:               o.synth.Merge(ordered),
		PerBackendLatencyMS: make(map[string]int64, len(ordered)),
		StartedAt:           started,
	}

	successes := 0
	for _, res := range ordered {
		result.PerBackendLatencyMS[res.Backend] = res.Latency.Milliseconds()
		if res.Success() {
			successes++
			if res.CacheHit {
				result.CacheHits = append(result.CacheHits, res.Backend)
			}
			continue
		}
		result.FailedComponents = append(result.FailedComponents, types.FailedComponent{
			Backend: res.Backend,
			Kind:    res.FailureKind,
			Message: res.FailureMessage,
		})
	}

	result.CompletenessScore = float64(successes) / float64(len(targets))
	result.PartialResults = successes < len(targets)
	result.ElapsedMS = time.Since(started).Milliseconds()
	return result
}

// taskShare sizes one task's slice of the shared budget window. Tasks run
// concurrently, so an equal-weight backend gets the whole window; a lighter
// weight shrinks its slice proportionally.
func taskShare(budget time.Duration, weight, maxWeight float64) time.Duration {
	if weight <= 0 {
		weight = 1.0
	}
	share := time.Duration(float64(budget) * weight / maxWeight)
	if share <= 0 || share > budget {
		return budget
	}
	return share
}
