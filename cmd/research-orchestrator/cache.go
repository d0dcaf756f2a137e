// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Administer the result cache of a running service",
	Long: `Cache talks to a running research-orchestrator service and exposes the
cache administration surface: hit/miss metrics, reachability, and
invalidation by key, backend prefix, or everything.`,
}

var cacheMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print cache hit/miss counters and size",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getJSON(serviceAddr(cmd) + "/v1/cache/metrics")
	},
}

var cacheHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check cache reachability",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getJSON(serviceAddr(cmd) + "/v1/cache/health")
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Drop cached entries by key, prefix, or entirely",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		pattern, _ := cmd.Flags().GetString("pattern")
		all, _ := cmd.Flags().GetBool("all")
		if key == "" && pattern == "" && !all {
			return fmt.Errorf("provide --key, --pattern, or --all")
		}

		params := url.Values{}
		if key != "" {
			params.Set("key", key)
		}
		if pattern != "" {
			params.Set("pattern", pattern)
		}
		if all {
			params.Set("all", "true")
		}
		return deleteJSON(serviceAddr(cmd) + "/v1/cache?" + params.Encode())
	},
}

func init() {
	cacheCmd.PersistentFlags().String("addr", "http://localhost:8080", "address of the running service")

	cacheInvalidateCmd.Flags().String("key", "", "exact cache key to drop")
	cacheInvalidateCmd.Flags().String("pattern", "", "key prefix to drop (e.g. a backend name followed by ':')")
	cacheInvalidateCmd.Flags().Bool("all", false, "drop every cached entry")

	cacheCmd.AddCommand(cacheMetricsCmd, cacheHealthCmd, cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}
