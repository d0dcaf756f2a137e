// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by backend clients.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "research-orchestrator/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// BackendKind identifies the capability a backend provides.
type BackendKind string

const (
	BackendTextSearch BackendKind = "text_search"
	BackendVector     BackendKind = "vector"
	BackendGraph      BackendKind = "graph"
)

// BackendConfig describes one external backend service.
// Per prd007-orchestration R2.2-R2.5.
type BackendConfig struct {
	HTTPConfig `yaml:",inline"`

	// Name is the backend identifier (e.g. "textsearch", "vector", "graph").
	Name string `json:"name" yaml:"name"`

	// Kind selects the client implementation: text_search, vector, or graph.
	Kind BackendKind `json:"kind" yaml:"kind"`

	// BaseURL is the backend service base URL.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey is an optional authentication key.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Weight adjusts this backend's share of the query budget (default 1.0).
	Weight float64 `json:"weight" yaml:"weight"`

	// QualityWeight scales item confidence during synthesis ranking
	// (default 1.0).
	QualityWeight float64 `json:"quality_weight" yaml:"quality_weight"`

	// Priority breaks synthesis ranking ties; higher wins (default 0).
	Priority int `json:"priority" yaml:"priority"`

	// CacheTTL is how long fresh results from this backend stay cached.
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`

	// MaxResults caps the items requested per call (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// TraversalDepth applies to graph backends only (default 2).
	TraversalDepth int `json:"traversal_depth,omitempty" yaml:"traversal_depth,omitempty"`
}

// RetryConfig holds the retry policy settings.
// Per prd008-resilience R2.1-R2.4.
type RetryConfig struct {
	// MaxAttempts is the total number of tries for transient failures
	// (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// BaseDelay seeds the exponential backoff: base * 2^attempt (default 50ms).
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`

	// MaxDelay caps any single backoff sleep (default 2s).
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`
}

// CircuitConfig holds the per-dependency circuit breaker settings.
// Per prd008-resilience R3.1-R3.5.
type CircuitConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit (default 5).
	FailureThreshold uint32 `json:"failure_threshold" yaml:"failure_threshold"`

	// FailureRatio opens the circuit when exceeded over the window,
	// once MinRequests have been observed (default 0.6).
	FailureRatio float64 `json:"failure_ratio" yaml:"failure_ratio"`

	// MinRequests is the minimum window size before FailureRatio applies
	// (default 10).
	MinRequests uint32 `json:"min_requests" yaml:"min_requests"`

	// Cooldown is how long the circuit stays open before allowing a
	// half-open probe (default 30s).
	Cooldown time.Duration `json:"cooldown" yaml:"cooldown"`

	// WindowInterval is the rolling window over which closed-state
	// counters accumulate before resetting (default 60s).
	WindowInterval time.Duration `json:"window_interval" yaml:"window_interval"`
}

// CacheBackend selects the cache implementation.
type CacheBackend string

const (
	CacheMemory CacheBackend = "memory"
	CacheRedis  CacheBackend = "redis"
)

// RedisConfig holds connection settings for the Redis cache.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db" yaml:"db"`
}

// CacheConfig holds the cache manager settings.
// Per prd009-cache R1.1-R1.4.
type CacheConfig struct {
	// Backend selects the implementation: memory (default) or redis.
	Backend CacheBackend `json:"backend" yaml:"backend"`

	// MaxBytes is the memory ceiling that triggers LRU eviction
	// (default 64 MiB). Memory cache only.
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes"`

	// SweepInterval is how often expired entries are swept in the
	// background; zero disables the sweep (default 1m). Memory cache only.
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval"`

	// DefaultTTL applies when a backend has no CacheTTL configured
	// (default 5m).
	DefaultTTL time.Duration `json:"default_ttl" yaml:"default_ttl"`

	Redis RedisConfig `json:"redis" yaml:"redis"`
}

// ServerConfig holds the HTTP service settings.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout and WriteTimeout bound request handling.
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
}

// LoggingConfig holds logger construction settings.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, error (default info).
	Level string `json:"level" yaml:"level"`

	// Development switches to the human-readable console encoder.
	Development bool `json:"development" yaml:"development"`
}

// OrchestratorConfig holds orchestration-level defaults.
type OrchestratorConfig struct {
	// DefaultBudget applies when a query carries no budget (default 2s).
	DefaultBudget time.Duration `json:"default_budget" yaml:"default_budget"`

	// MaxItems caps the merged items in the final answer (default 50).
	MaxItems int `json:"max_items" yaml:"max_items"`
}

// Config groups all settings for the orchestration service.
type Config struct {
	Backends     []BackendConfig    `json:"backends" yaml:"backends"`
	Retry        RetryConfig        `json:"retry" yaml:"retry"`
	Circuit      CircuitConfig      `json:"circuit" yaml:"circuit"`
	Cache        CacheConfig        `json:"cache" yaml:"cache"`
	Server       ServerConfig       `json:"server" yaml:"server"`
	Logging      LoggingConfig      `json:"logging" yaml:"logging"`
	Orchestrator OrchestratorConfig `json:"orchestrator" yaml:"orchestrator"`

	// HistoryDB is the path of the SQLite query-history database.
	// Empty disables history recording.
	HistoryDB string `json:"history_db,omitempty" yaml:"history_db,omitempty"`
}
