// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the research-orchestrator
// core. Implements: prd007-orchestration (ResearchQuery, ServiceResult,
//
//	OrchestrationResult, R1.1-R1.4, R4.1-R4.5);
//	prd010-synthesis (ResultItem, MergedItem, R2.1-R2.3).
//
// See docs/ARCHITECTURE.md § Orchestration Interface, § Data Structures.
package types

import "time"

// ResearchQuery is one logical research request. It is immutable once
// submitted to the orchestrator (R1.1).
type ResearchQuery struct {
	// Text is the free-text research question or payload.
	Text string `json:"text" yaml:"text"`

	// Backends lists the target backend identifiers. Empty means all
	// configured backends (R1.2).
	Backends []string `json:"backends,omitempty" yaml:"backends,omitempty"`

	// Budget is the overall wall-clock time allotted across all backend
	// fan-outs (R1.3).
	Budget time.Duration `json:"budget" yaml:"budget"`
}

// ResultItem is one item returned by a backend: a snippet, a scored vector
// match, or a related entity, reduced to a uniform shape.
type ResultItem struct {
	// ID is the logical entity identifier used for cross-backend
	// deduplication (prd010-synthesis R1.1).
	ID string `json:"id" yaml:"id"`

	// Content is the item body: snippet text, matched passage, or entity label.
	Content string `json:"content" yaml:"content"`

	// Confidence is a value between 0.0 and 1.0.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Source identifies which backend produced this item.
	Source string `json:"source" yaml:"source"`
}

// ResultStatus tags the outcome of one backend task.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusFailure ResultStatus = "failure"
	StatusTimeout ResultStatus = "timeout"
)

// FailureKind is the normalized failure taxonomy shared by the backend
// clients, retry policy, and circuit breaker (prd008-resilience R1.1-R1.4).
type FailureKind string

const (
	// Transient kinds: retried, then counted against the circuit window.
	FailureTimeout     FailureKind = "timeout"
	FailureConnection  FailureKind = "connection"
	FailureRateLimited FailureKind = "rate_limited"
	FailureUnavailable FailureKind = "unavailable"

	// Permanent kinds: never retried.
	FailureValidation FailureKind = "validation"
	FailureNotFound   FailureKind = "not_found"
	FailureBadRequest FailureKind = "bad_request"

	// FailureServiceError marks a transient failure that exhausted its
	// retry allowance.
	FailureServiceError FailureKind = "service_error"

	// FailureCircuitOpen marks a call rejected fast because the backend's
	// circuit is open; the backend was never invoked.
	FailureCircuitOpen FailureKind = "circuit_open"

	// FailureBudgetExceeded marks a task that did not resolve before the
	// query's overall deadline. Distinct from a backend-reported timeout.
	FailureBudgetExceeded FailureKind = "budget_exceeded"
)

// ServiceResult is the outcome of one (query, backend) task. Exactly one
// exists per task once the query completes (R4.1).
type ServiceResult struct {
	Backend string       `json:"backend" yaml:"backend"`
	Status  ResultStatus `json:"status" yaml:"status"`

	// Items is populated only on success.
	Items []ResultItem `json:"items,omitempty" yaml:"items,omitempty"`

	// CacheHit reports whether the items came from the cache rather than
	// a fresh backend call.
	CacheHit bool `json:"cache_hit" yaml:"cache_hit"`

	// Latency is the time the task took to resolve.
	Latency time.Duration `json:"latency" yaml:"latency"`

	FailureKind    FailureKind `json:"failure_kind,omitempty" yaml:"failure_kind,omitempty"`
	FailureMessage string      `json:"failure_message,omitempty" yaml:"failure_message,omitempty"`
}

// Success reports whether the task produced a usable result. Cache hits
// count as successes (R4.2).
func (r ServiceResult) Success() bool { return r.Status == StatusSuccess }

// MergedItem is a deduplicated, ranked item in the synthesized answer,
// carrying attribution for every backend that contributed it.
type MergedItem struct {
	ResultItem `yaml:",inline"`

	// Sources lists every backend that returned this item, highest
	// confidence instance first.
	Sources []string `json:"sources" yaml:"sources"`
}

// FailedComponent records one backend that did not contribute to the answer.
type FailedComponent struct {
	Backend string      `json:"backend" yaml:"backend"`
	Kind    FailureKind `json:"kind" yaml:"kind"`
	Message string      `json:"message,omitempty" yaml:"message,omitempty"`
}

// OrchestrationResult is the synthesized, partial-tolerant answer to one
// research query. Immutable after return (R4.5).
type OrchestrationResult struct {
	// QueryID uniquely identifies this orchestration run.
	QueryID string `json:"query_id" yaml:"query_id"`

	// Query echoes the submitted query text.
	Query string `json:"query" yaml:"query"`

	// Items holds the ranked, merged, attributed results.
	Items []MergedItem `json:"items" yaml:"items"`

	// CompletenessScore is successful backends / targeted backends, in
	// [0,1]. Cache hits count as successes (R4.2).
	CompletenessScore float64 `json:"completeness_score" yaml:"completeness_score"`

	// PartialResults is true when any targeted backend did not succeed.
	PartialResults bool `json:"partial_results" yaml:"partial_results"`

	// FailedComponents lists each non-successful backend with its
	// failure kind (R4.3).
	FailedComponents []FailedComponent `json:"failed_components,omitempty" yaml:"failed_components,omitempty"`

	// PerBackendLatencyMS maps backend identifier to its task latency in
	// milliseconds.
	PerBackendLatencyMS map[string]int64 `json:"per_backend_latency_ms" yaml:"per_backend_latency_ms"`

	// CacheHits lists the backends whose results were served from cache.
	CacheHits []string `json:"cache_hits,omitempty" yaml:"cache_hits,omitempty"`

	// ElapsedMS is the total wall-clock time for the query in milliseconds.
	ElapsedMS int64 `json:"elapsed_ms" yaml:"elapsed_ms"`

	// StartedAt is when the orchestrator accepted the query.
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
}
