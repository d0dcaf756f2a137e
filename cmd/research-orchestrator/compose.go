// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/research-orchestrator/internal/backend"
	"github.com/pdiddy/research-orchestrator/internal/cache"
	"github.com/pdiddy/research-orchestrator/internal/circuit"
	"github.com/pdiddy/research-orchestrator/internal/orchestrate"
	"github.com/pdiddy/research-orchestrator/internal/store"
	"github.com/pdiddy/research-orchestrator/internal/telemetry"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// components holds the composed orchestration core shared by the serve and
// query commands.
type components struct {
	logger  *zap.Logger
	metrics *telemetry.Collectors
	cache   cache.Cache
	orch    *orchestrate.Orchestrator
	history *store.Store
}

// compose wires the full dependency graph from cfg: clients, circuit
// registry, cache, event handlers, orchestrator, and the optional history
// store. Close releases everything.
func compose(cfg types.Config) (*components, error) {
	if len(cfg.Backends) == 0 {
		return nil, fmt.Errorf("no backends configured: add a backends section to the config file")
	}

	logger, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	clients := make([]backend.Backend, 0, len(cfg.Backends))
	for _, bc := range cfg.Backends {
		cl, err := backend.New(bc)
		if err != nil {
			return nil, err
		}
		clients = append(clients, cl)
	}

	c, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, err
	}

	metrics := telemetry.NewCollectors()
	registry := circuit.NewRegistry(cfg.Circuit, logger)
	events := orchestrate.NewDispatcher(orchestrate.DefaultHandlers(logger, metrics)...)

	orch, err := orchestrate.New(cfg, clients, registry, c, events, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	comps := &components{
		logger:  logger,
		metrics: metrics,
		cache:   c,
		orch:    orch,
	}
	if cfg.HistoryDB != "" {
		comps.history, err = store.New(cfg.HistoryDB)
		if err != nil {
			c.Close()
			return nil, err
		}
	}
	return comps, nil
}

// Close releases the cache, history store, and buffered log entries.
func (c *components) Close() {
	if c.history != nil {
		c.history.Close()
	}
	c.cache.Close()
	c.logger.Sync()
}
