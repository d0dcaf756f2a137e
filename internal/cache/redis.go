// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// keyspace prefixes every key this service writes so InvalidateAll never
// touches another tenant of the same Redis.
const keyspace = "research:"

// Redis is the cluster-shared cache for multi-process deployments. Hit and
// miss counters are process-local; entry counts come from the server.
type Redis struct {
	client *redis.Client

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewRedis builds a Redis cache from cfg. Connection failures surface on
// first use, not here.
func NewRedis(cfg types.RedisConfig) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// Get returns the value for key; redis.Nil maps to a plain miss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, keyspace+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.misses.Add(1)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	r.hits.Add(1)
	return value, true, nil
}

// Set stores value under key; Redis enforces the TTL server-side.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, keyspace+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Invalidate removes one key.
func (r *Redis) Invalidate(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, keyspace+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// InvalidatePattern removes every key with the given prefix via SCAN, in
// batches, so a large keyspace never blocks the server.
func (r *Redis) InvalidatePattern(ctx context.Context, prefix string) (int, error) {
	iter := r.client.Scan(ctx, 0, keyspace+prefix+"*", 500).Iterator()

	removed := 0
	batch := make([]string, 0, 500)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del batch: %w", err)
		}
		removed += len(batch)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan %s: %w", prefix, err)
	}
	if err := flush(); err != nil {
		return removed, err
	}
	return removed, nil
}

// InvalidateAll clears every key in this service's keyspace.
func (r *Redis) InvalidateAll(ctx context.Context) error {
	_, err := r.InvalidatePattern(ctx, "")
	return err
}

// Metrics reports process-local hit/miss counters plus server-side entry
// count and memory usage.
func (r *Redis) Metrics(ctx context.Context) (Metrics, error) {
	m := Metrics{
		Hits:   r.hits.Load(),
		Misses: r.misses.Load(),
	}

	iter := r.client.Scan(ctx, 0, keyspace+"*", 500).Iterator()
	for iter.Next(ctx) {
		m.Entries++
	}
	if err := iter.Err(); err != nil {
		return m, fmt.Errorf("redis scan: %w", err)
	}

	if info, err := r.client.Info(ctx, "memory").Result(); err == nil {
		m.MemoryBytes = parseUsedMemory(info)
	}
	return m, nil
}

// Health pings the server.
func (r *Redis) Health(ctx context.Context) Health {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return Health{Backend: "redis", Healthy: false, Error: err.Error()}
	}
	return Health{Backend: "redis", Healthy: true}
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// parseUsedMemory extracts used_memory from an INFO memory section.
func parseUsedMemory(info string) int64 {
	for _, line := range strings.Split(info, "\n") {
		if rest, ok := strings.CutPrefix(line, "used_memory:"); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
			if err == nil {
				return n
			}
		}
	}
	return 0
}
