// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-orchestrator/internal/telemetry"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// EventKind tags one orchestration lifecycle event.
type EventKind string

const (
	EventQueryStarted      EventKind = "query_started"
	EventBackendResolved   EventKind = "backend_resolved"
	EventCircuitTransition EventKind = "circuit_transition"
	EventQueryCompleted    EventKind = "query_completed"
)

// Event is one orchestration lifecycle notification. Fields are populated
// per kind: Result for backend_resolved, From/To for circuit_transition,
// Completeness/Elapsed for query_completed.
type Event struct {
	Kind    EventKind
	QueryID string
	Query   string
	Backend string

	Result *types.ServiceResult

	From string
	To   string

	Completeness float64
	Elapsed      time.Duration

	Time time.Time
}

// Handler consumes lifecycle events it declares interest in. Handlers are
// registered explicitly at composition time, in order; Dispatch hands each
// event to the first handler whose CanHandle accepts its kind.
type Handler interface {
	CanHandle(kind EventKind) bool
	Handle(e Event)
}

// Dispatcher routes events through an ordered handler list.
type Dispatcher struct {
	handlers []Handler
}

// NewDispatcher builds a dispatcher over handlers in the given order.
func NewDispatcher(handlers ...Handler) *Dispatcher {
	return &Dispatcher{handlers: handlers}
}

// Dispatch delivers e to the first matching handler. Events nobody claims
// are dropped; a nil dispatcher drops everything.
func (d *Dispatcher) Dispatch(e Event) {
	if d == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	for _, h := range d.handlers {
		if h.CanHandle(e.Kind) {
			h.Handle(e)
			return
		}
	}
}

// QueryLifecycleHandler logs and measures query start/completion.
type QueryLifecycleHandler struct {
	Logger  *zap.Logger
	Metrics *telemetry.Collectors
}

func (h *QueryLifecycleHandler) CanHandle(kind EventKind) bool {
	return kind == EventQueryStarted || kind == EventQueryCompleted
}

func (h *QueryLifecycleHandler) Handle(e Event) {
	switch e.Kind {
	case EventQueryStarted:
		if h.Metrics != nil {
			h.Metrics.QueriesTotal.Inc()
		}
		h.Logger.Info("query started",
			zap.String("query_id", e.QueryID),
			zap.String("query", e.Query))
	case EventQueryCompleted:
		if h.Metrics != nil {
			h.Metrics.QueryDuration.Observe(e.Elapsed.Seconds())
		}
		h.Logger.Info("query completed",
			zap.String("query_id", e.QueryID),
			zap.Float64("completeness", e.Completeness),
			zap.Duration("elapsed", e.Elapsed))
	}
}

// BackendResolvedHandler logs and measures per-backend task outcomes.
type BackendResolvedHandler struct {
	Logger  *zap.Logger
	Metrics *telemetry.Collectors
}

func (h *BackendResolvedHandler) CanHandle(kind EventKind) bool {
	return kind == EventBackendResolved
}

func (h *BackendResolvedHandler) Handle(e Event) {
	res := e.Result
	if res == nil {
		return
	}

	if res.Success() {
		if h.Metrics != nil {
			if res.CacheHit {
				h.Metrics.CacheHits.Inc()
			} else {
				h.Metrics.CacheMisses.Inc()
			}
		}
		h.Logger.Debug("backend resolved",
			zap.String("query_id", e.QueryID),
			zap.String("backend", res.Backend),
			zap.Bool("cache_hit", res.CacheHit),
			zap.Int("items", len(res.Items)),
			zap.Duration("latency", res.Latency))
		return
	}

	if h.Metrics != nil {
		h.Metrics.BackendFailures.WithLabelValues(res.Backend, string(res.FailureKind)).Inc()
	}
	h.Logger.Warn("backend failed",
		zap.String("query_id", e.QueryID),
		zap.String("backend", res.Backend),
		zap.String("kind", string(res.FailureKind)),
		zap.String("message", res.FailureMessage))
}

// CircuitTransitionHandler logs and measures circuit breaker transitions.
type CircuitTransitionHandler struct {
	Logger  *zap.Logger
	Metrics *telemetry.Collectors
}

func (h *CircuitTransitionHandler) CanHandle(kind EventKind) bool {
	return kind == EventCircuitTransition
}

func (h *CircuitTransitionHandler) Handle(e Event) {
	if h.Metrics != nil {
		h.Metrics.CircuitTransitions.WithLabelValues(e.Backend, e.To).Inc()
	}
	h.Logger.Warn("circuit transition",
		zap.String("backend", e.Backend),
		zap.String("from", e.From),
		zap.String("to", e.To))
}

// DefaultHandlers returns the standard handler chain in dispatch order.
func DefaultHandlers(logger *zap.Logger, metrics *telemetry.Collectors) []Handler {
	return []Handler{
		&QueryLifecycleHandler{Logger: logger, Metrics: metrics},
		&BackendResolvedHandler{Logger: logger, Metrics: metrics},
		&CircuitTransitionHandler{Logger: logger, Metrics: metrics},
	}
}
