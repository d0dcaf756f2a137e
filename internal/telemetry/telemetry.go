// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package telemetry builds the service logger and the Prometheus collectors
// shared by the orchestrator and the HTTP surface.
package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// NewLogger builds a zap logger from cfg. Development mode uses the console
// encoder; production logs JSON.
func NewLogger(cfg types.LoggingConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
		}
	}

	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// Collectors groups the Prometheus metrics for one orchestrator instance.
// The registry is instance-owned so tests never collide on the global
// default registry.
type Collectors struct {
	registry *prometheus.Registry

	QueriesTotal       prometheus.Counter
	QueryDuration      prometheus.Histogram
	BackendFailures    *prometheus.CounterVec
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	CircuitTransitions *prometheus.CounterVec
}

// NewCollectors builds and registers the metric set.
func NewCollectors() *Collectors {
	reg := prometheus.NewRegistry()

	c := &Collectors{
		registry: reg,
		QueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "research_queries_total",
			Help: "Research queries accepted by the orchestrator.",
		}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "research_query_duration_seconds",
			Help:    "Wall-clock duration of orchestrated queries.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		BackendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "research_backend_failures_total",
			Help: "Backend task failures by backend and failure kind.",
		}, []string{"backend", "kind"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "research_cache_hits_total",
			Help: "Backend tasks served from the cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "research_cache_misses_total",
			Help: "Backend tasks that required a fresh call.",
		}),
		CircuitTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "research_circuit_transitions_total",
			Help: "Circuit breaker state transitions by backend and new state.",
		}, []string{"backend", "to"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		c.QueriesTotal,
		c.QueryDuration,
		c.BackendFailures,
		c.CacheHits,
		c.CacheMisses,
		c.CircuitTransitions,
	)
	return c
}

// Handler serves the /metrics endpoint for this collector set.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
