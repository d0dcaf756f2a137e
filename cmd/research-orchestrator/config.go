// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

const defaultUserAgent = "research-orchestrator/0.1"

// loadConfig reads the YAML config file located by viper into a typed
// Config, then applies environment overrides for the handful of settings
// that change per deployment. Missing file means defaults only.
func loadConfig() (types.Config, error) {
	var cfg types.Config

	if path := viper.ConfigFileUsed(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	// Deployment-level overrides via RESEARCH_ORCHESTRATOR_* env.
	if addr := viper.GetString("server_addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if addr := viper.GetString("redis_addr"); addr != "" {
		cfg.Cache.Redis.Addr = addr
	}
	if level := viper.GetString("log_level"); level != "" {
		cfg.Logging.Level = level
	}
	if db := viper.GetString("history_db"); db != "" {
		cfg.HistoryDB = db
	}

	applyDefaults(&cfg)
	return cfg, nil
}

// applyDefaults fills zero fields so a minimal config file still runs.
func applyDefaults(cfg *types.Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Cache.DefaultTTL <= 0 {
		cfg.Cache.DefaultTTL = 5 * time.Minute
	}
	if cfg.Orchestrator.DefaultBudget <= 0 {
		cfg.Orchestrator.DefaultBudget = 2 * time.Second
	}

	for i := range cfg.Backends {
		bc := &cfg.Backends[i]
		if bc.Timeout <= 0 {
			bc.Timeout = 10 * time.Second
		}
		if bc.UserAgent == "" {
			bc.UserAgent = defaultUserAgent
		}
		if bc.Weight <= 0 {
			bc.Weight = 1.0
		}
		if bc.QualityWeight <= 0 {
			bc.QualityWeight = 1.0
		}
		if bc.CacheTTL <= 0 {
			bc.CacheTTL = cfg.Cache.DefaultTTL
		}
		// API keys come from .secrets/<name>-api-key unless configured.
		bc.APIKey = secretDefault(bc.Name+"-api-key", bc.APIKey)
	}
}
