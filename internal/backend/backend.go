// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backend provides one capability client per external research
// service. Each client issues a single request/response call and translates
// the service's native errors into the normalized transient/permanent
// taxonomy. Implements: prd007-orchestration (R2.1-R2.6);
//
//	docs/ARCHITECTURE § Backend Clients.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// Backend issues a single call to one opaque service. Implementations are
// stateless per call; retry and circuit breaking are layered on top.
type Backend interface {
	Name() string
	Call(ctx context.Context, query string) ([]types.ResultItem, error)
}

// Error is a backend failure normalized into the shared taxonomy.
type Error struct {
	Backend string
	Kind    types.FailureKind
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Backend, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Backend, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying.
func (e *Error) Transient() bool {
	switch e.Kind {
	case types.FailureTimeout, types.FailureConnection,
		types.FailureRateLimited, types.FailureUnavailable,
		types.FailureServiceError:
		return true
	}
	return false
}

// NewError wraps err with a backend identity and failure kind.
func NewError(backend string, kind types.FailureKind, err error) *Error {
	return &Error{Backend: backend, Kind: kind, Err: err}
}

// Transient reports whether err is a retryable backend failure. Errors that
// are not *Error (including context cancellation) are treated as permanent.
func Transient(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Transient()
	}
	return false
}

// KindOf extracts the failure kind from err, defaulting to service_error
// for unclassified failures.
func KindOf(err error) types.FailureKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return types.FailureServiceError
}

// classifyTransport maps a transport-level error (no HTTP response) to a
// failure kind.
func classifyTransport(ctx context.Context, err error) types.FailureKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.FailureTimeout
	}
	return types.FailureConnection
}

// classifyStatus maps an HTTP status code to a failure kind.
func classifyStatus(code int) types.FailureKind {
	switch code {
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return types.FailureTimeout
	case http.StatusTooManyRequests:
		return types.FailureRateLimited
	case http.StatusNotFound:
		return types.FailureNotFound
	case http.StatusUnprocessableEntity:
		return types.FailureValidation
	case http.StatusBadRequest:
		return types.FailureBadRequest
	}
	if code >= 500 {
		return types.FailureUnavailable
	}
	return types.FailureBadRequest
}

// statusError builds an Error for a non-200 HTTP response.
func statusError(backend string, code int) *Error {
	return NewError(backend, classifyStatus(code), fmt.Errorf("HTTP %d", code))
}

// positionConfidence derives a relevance score from list position for
// services that report none: 1.0 for the first item, decaying to 0.1.
func positionConfidence(i, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	return 1.0 - float64(i)/float64(total-1)*0.9
}

// New builds the client for cfg.Kind. The returned client owns an
// http.Client bounded by cfg.Timeout.
func New(cfg types.BackendConfig) (Backend, error) {
	switch cfg.Kind {
	case types.BackendTextSearch:
		return NewTextSearch(cfg), nil
	case types.BackendVector:
		return NewVector(cfg), nil
	case types.BackendGraph:
		return NewGraph(cfg), nil
	}
	return nil, fmt.Errorf("unknown backend kind %q for %s", cfg.Kind, cfg.Name)
}
