// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-orchestrator CLI.
// Implements: prd007-orchestration, prd011-service (CLI surface).
// See docs/ARCHITECTURE § Service Surface, § Project Structure.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-orchestrator/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the research-orchestrator CLI.
var rootCmd = &cobra.Command{
	Use:   "research-orchestrator",
	Short: "Resilient fan-out orchestration for research backends",
	Long: `research-orchestrator coordinates concurrent research queries across
independent backend services (text search, vector similarity, graph traversal)
under a shared time budget, with per-dependency circuit breaking, retries,
and result caching. Partial backend failure degrades the answer instead of
failing it.

Run "serve" for the HTTP service, "query" for a one-shot query, and "cache",
"health", "history" for the administration surfaces.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-orchestrator.yaml or ~/.config/research-orchestrator/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("research-orchestrator")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "research-orchestrator"))
		}
	}

	viper.SetEnvPrefix("RESEARCH_ORCHESTRATOR")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
