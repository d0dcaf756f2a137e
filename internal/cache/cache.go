// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache memoizes fresh backend results under deterministic keys
// with per-entry TTLs. Two implementations: an in-process LRU store and a
// cluster-shared Redis store. The store is volatile; losing it degrades hit
// rate, never correctness. Implements: prd009-cache (R1-R4);
//
//	docs/ARCHITECTURE § Cache Manager.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// Cache is the shared key-value contract consulted before any backend
// dispatch. Values are opaque byte payloads; the orchestrator owns the
// encoding.
type Cache interface {
	// Get returns the value for key, or ok=false on a miss. Entries past
	// their TTL are never returned (R2.3).
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key for ttl, overwriting any previous entry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate removes one key.
	Invalidate(ctx context.Context, key string) error

	// InvalidatePattern removes every key with the given prefix and
	// returns how many were dropped. No subsequent Get on a matching key
	// returns a value inserted before the call (R3.2).
	InvalidatePattern(ctx context.Context, prefix string) (int, error)

	// InvalidateAll clears the store.
	InvalidateAll(ctx context.Context) error

	// Metrics reports hit/miss counts, entry count, and a memory estimate.
	Metrics(ctx context.Context) (Metrics, error)

	// Health reports whether the store is reachable.
	Health(ctx context.Context) Health

	Close() error
}

// Metrics holds cache observability counters (R4.2).
type Metrics struct {
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Entries     int64  `json:"entries"`
	MemoryBytes int64  `json:"memory_bytes"`
}

// HitRate returns hits / (hits + misses), 0 when the cache is cold.
func (m Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0
	}
	return float64(m.Hits) / float64(total)
}

// Health reports store reachability (R4.1).
type Health struct {
	Backend string `json:"backend"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Key derives the deterministic cache key for one (backend, payload) pair:
// the backend identifier followed by a hash of the normalized payload.
// Identical queries against the same backend always collide to the same key
// regardless of call order (R2.1), and the backend prefix lets
// InvalidatePattern target one dependency (R3.1).
func Key(backendName, payload string) string {
	sum := sha256.Sum256([]byte(normalize(payload)))
	return backendName + ":" + hex.EncodeToString(sum[:16])
}

// normalize lowercases the payload and collapses runs of whitespace so
// cosmetic differences do not fragment the cache.
func normalize(payload string) string {
	return strings.Join(strings.Fields(strings.ToLower(payload)), " ")
}

// New builds the configured cache implementation.
func New(cfg types.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case types.CacheMemory, "":
		return NewMemory(cfg), nil
	case types.CacheRedis:
		return NewRedis(cfg.Redis), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}
