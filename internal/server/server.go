// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the orchestration core over HTTP: the query
// endpoint, cache administration, dependency health introspection, and
// Prometheus metrics. Named operations are also reachable through a single
// gateway endpoint dispatched by a lookup table built once at startup.
// Implements: prd011-service (R1-R3);
//
//	docs/ARCHITECTURE § Service Surface.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/pdiddy/research-orchestrator/internal/cache"
	"github.com/pdiddy/research-orchestrator/internal/orchestrate"
	"github.com/pdiddy/research-orchestrator/internal/store"
	"github.com/pdiddy/research-orchestrator/internal/telemetry"
	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// opFunc is one named operation reachable through the gateway endpoint.
// Params arrive as raw JSON; the operation owns decoding.
type opFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Server hosts the HTTP surface. History is optional; nil disables
// recording.
type Server struct {
	orch    *orchestrate.Orchestrator
	cache   cache.Cache
	metrics *telemetry.Collectors
	history *store.Store
	logger  *zap.Logger
	cfg     types.ServerConfig

	ops    map[string]opFunc
	router chi.Router
}

// New builds the server and its operation table. The table is a closed set
// resolved once here, never by reflection at request time.
func New(orch *orchestrate.Orchestrator, c cache.Cache, metrics *telemetry.Collectors, history *store.Store, logger *zap.Logger, cfg types.ServerConfig) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		orch:    orch,
		cache:   c,
		metrics: metrics,
		history: history,
		logger:  logger,
		cfg:     cfg,
	}

	s.ops = map[string]opFunc{
		"query":            s.opQuery,
		"cache.metrics":    s.opCacheMetrics,
		"cache.health":     s.opCacheHealth,
		"cache.invalidate": s.opCacheInvalidate,
		"dependency.health": func(ctx context.Context, params json.RawMessage) (any, error) {
			var p struct {
				Backend string `json:"backend"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, fmt.Errorf("decoding params: %w", err)
			}
			h, ok := s.orch.DependencyHealth(p.Backend)
			if !ok {
				return nil, fmt.Errorf("unknown backend %q", p.Backend)
			}
			return h, nil
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/v1/query", s.handleQuery)
	r.Post("/v1/ops", s.handleOps)
	r.Get("/v1/dependencies", s.handleDependencies)
	r.Get("/v1/dependencies/{name}/health", s.handleDependencyHealth)
	r.Get("/v1/cache/metrics", s.handleCacheMetrics)
	r.Get("/v1/cache/health", s.handleCacheHealth)
	r.Delete("/v1/cache", s.handleCacheInvalidate)
	r.Get("/healthz", s.handleHealthz)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}
	s.router = r
	return s
}

// Handler returns the HTTP handler for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// --- query ---

type queryRequest struct {
	Text     string   `json:"text"`
	Backends []string `json:"backends,omitempty"`
	BudgetMS int64    `json:"budget_ms,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}

	result, err := s.runQuery(r.Context(), req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) runQuery(ctx context.Context, req queryRequest) (types.OrchestrationResult, error) {
	q := types.ResearchQuery{
		Text:     req.Text,
		Backends: req.Backends,
		Budget:   time.Duration(req.BudgetMS) * time.Millisecond,
	}
	result, err := s.orch.Run(ctx, q)
	if err != nil {
		return types.OrchestrationResult{}, err
	}

	if s.history != nil {
		targets := req.Backends
		if len(targets) == 0 {
			targets = s.orch.Backends()
		}
		if err := s.history.Record(ctx, targets, result); err != nil {
			s.logger.Warn("history record failed", zap.String("query_id", result.QueryID), zap.Error(err))
		}
	}
	return result, nil
}

// --- gateway ops ---

type opsRequest struct {
	Op     string          `json:"op"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (s *Server) handleOps(w http.ResponseWriter, r *http.Request) {
	var req opsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}

	op, ok := s.ops[req.Op]
	if !ok {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown op %q (known: %v)", req.Op, s.opNames()))
		return
	}

	out, err := op(r.Context(), req.Params)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"op": req.Op, "result": out})
}

func (s *Server) opNames() []string {
	names := make([]string, 0, len(s.ops))
	for name := range s.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) opQuery(ctx context.Context, params json.RawMessage) (any, error) {
	var req queryRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("decoding params: %w", err)
	}
	return s.runQuery(ctx, req)
}

func (s *Server) opCacheMetrics(ctx context.Context, _ json.RawMessage) (any, error) {
	return s.cache.Metrics(ctx)
}

func (s *Server) opCacheHealth(ctx context.Context, _ json.RawMessage) (any, error) {
	return s.cache.Health(ctx), nil
}

func (s *Server) opCacheInvalidate(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Key     string `json:"key,omitempty"`
		Pattern string `json:"pattern,omitempty"`
		All     bool   `json:"all,omitempty"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decoding params: %w", err)
		}
	}
	return s.invalidate(ctx, p.Key, p.Pattern, p.All)
}

func (s *Server) invalidate(ctx context.Context, key, pattern string, all bool) (map[string]any, error) {
	switch {
	case key != "":
		if err := s.cache.Invalidate(ctx, key); err != nil {
			return nil, err
		}
		return map[string]any{"invalidated": "key", "key": key}, nil
	case pattern != "":
		n, err := s.cache.InvalidatePattern(ctx, pattern)
		if err != nil {
			return nil, err
		}
		return map[string]any{"invalidated": "pattern", "pattern": pattern, "removed": n}, nil
	case all:
		if err := s.cache.InvalidateAll(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"invalidated": "all"}, nil
	}
	return nil, errors.New("provide key, pattern, or all")
}

// --- cache admin ---

func (s *Server) handleCacheMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.cache.Metrics(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCacheHealth(w http.ResponseWriter, r *http.Request) {
	h := s.cache.Health(r.Context())
	status := http.StatusOK
	if !h.Healthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, h)
}

func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := s.invalidate(r.Context(), q.Get("key"), q.Get("pattern"), q.Get("all") == "true")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// --- dependency health ---

func (s *Server) handleDependencies(w http.ResponseWriter, r *http.Request) {
	names := s.orch.Backends()
	out := make([]any, 0, len(names))
	for _, name := range names {
		if h, ok := s.orch.DependencyHealth(name); ok {
			out = append(out, h)
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDependencyHealth(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	h, ok := s.orch.DependencyHealth(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("unknown backend %q", name))
		return
	}
	s.writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- helpers ---

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
