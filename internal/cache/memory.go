// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

const (
	defaultMaxBytes = 64 << 20

	// entryOverhead approximates the bookkeeping cost per entry beyond
	// key and value bytes.
	entryOverhead = 64
)

// Memory is an in-process LRU cache with per-entry TTLs. Expiry is checked
// lazily on read and optionally swept in the background; LRU eviction at
// the byte ceiling is independent of TTL (R2.4).
type Memory struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	lru      *list.List // front = most recently used
	bytes    int64
	maxBytes int64

	hits   atomic.Uint64
	misses atomic.Uint64

	stopOnce sync.Once
	stop     chan struct{}
}

type memEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewMemory builds a memory cache from cfg. A positive SweepInterval starts
// a background goroutine that drops expired entries; Close stops it.
func NewMemory(cfg types.CacheConfig) *Memory {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	m := &Memory{
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
		maxBytes: maxBytes,
		stop:     make(chan struct{}),
	}
	if cfg.SweepInterval > 0 {
		go m.sweepLoop(cfg.SweepInterval)
	}
	return m
}

// Get returns the cached value for key. An expired entry is removed and
// reported as a miss.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[key]
	if !ok {
		m.misses.Add(1)
		return nil, false, nil
	}
	e := el.Value.(*memEntry)
	if time.Now().After(e.expiresAt) {
		m.removeLocked(el)
		m.misses.Add(1)
		return nil, false, nil
	}
	m.lru.MoveToFront(el)
	m.hits.Add(1)
	return e.value, true, nil
}

// Set stores value under key for ttl, evicting least-recently-used entries
// once the byte ceiling is exceeded.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[key]; ok {
		m.removeLocked(el)
	}

	e := &memEntry{key: key, value: value, expiresAt: time.Now().Add(ttl)}
	el := m.lru.PushFront(e)
	m.entries[key] = el
	m.bytes += entrySize(e)

	for m.bytes > m.maxBytes {
		oldest := m.lru.Back()
		if oldest == nil || oldest == el {
			break
		}
		m.removeLocked(oldest)
	}
	return nil
}

// Invalidate removes one key.
func (m *Memory) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.entries[key]; ok {
		m.removeLocked(el)
	}
	return nil
}

// InvalidatePattern removes every key with the given prefix.
func (m *Memory) InvalidatePattern(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, el := range m.entries {
		if strings.HasPrefix(key, prefix) {
			m.removeLocked(el)
			removed++
		}
	}
	return removed, nil
}

// InvalidateAll clears the store.
func (m *Memory) InvalidateAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*list.Element)
	m.lru.Init()
	m.bytes = 0
	return nil
}

// Metrics reports counters and the byte estimate.
func (m *Memory) Metrics(_ context.Context) (Metrics, error) {
	m.mu.Lock()
	entries := int64(len(m.entries))
	bytes := m.bytes
	m.mu.Unlock()

	return Metrics{
		Hits:        m.hits.Load(),
		Misses:      m.misses.Load(),
		Entries:     entries,
		MemoryBytes: bytes,
	}, nil
}

// Health always reports healthy; the process owns the store.
func (m *Memory) Health(context.Context) Health {
	return Health{Backend: "memory", Healthy: true}
}

// Close stops the background sweeper.
func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

func (m *Memory) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

func (m *Memory) sweep() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, el := range m.entries {
		if now.After(el.Value.(*memEntry).expiresAt) {
			m.removeLocked(el)
		}
	}
}

// removeLocked drops el from the map, the LRU list, and the byte count.
// Caller holds m.mu.
func (m *Memory) removeLocked(el *list.Element) {
	e := el.Value.(*memEntry)
	delete(m.entries, e.key)
	m.lru.Remove(el)
	m.bytes -= entrySize(e)
}

func entrySize(e *memEntry) int64 {
	return int64(len(e.key)+len(e.value)) + entryOverhead
}
