// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-orchestrator/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orchestration HTTP service",
	Long: `Serve exposes the orchestration core over HTTP: POST /v1/query for
research queries, cache administration under /v1/cache, per-dependency
circuit health under /v1/dependencies, Prometheus metrics on /metrics, and
a named-operation gateway on POST /v1/ops.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	comps, err := compose(cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	srv := server.New(comps.orch, comps.cache, comps.metrics, comps.history, comps.logger, cfg.Server)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
