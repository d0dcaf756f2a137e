// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

var queryCmd = &cobra.Command{
	Use:   "query [text...]",
	Short: "Run one research query across the configured backends",
	Long: `Query fans the research question out to the targeted backends
concurrently, merges and ranks the answers, and prints the synthesized
result. Partial backend failure is reported, not fatal.`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().String("backends", "", "comma-separated backend subset (default: all configured)")
	queryCmd.Flags().Duration("budget", 0, "overall time budget (default from config, 2s)")
	queryCmd.Flags().String("output", "table", "output format: table, json, or yaml")

	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return fmt.Errorf("provide a research question")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	comps, err := compose(cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	q := types.ResearchQuery{Text: text}
	if list, _ := cmd.Flags().GetString("backends"); list != "" {
		for _, name := range strings.Split(list, ",") {
			q.Backends = append(q.Backends, strings.TrimSpace(name))
		}
	}
	q.Budget, _ = cmd.Flags().GetDuration("budget")

	result, err := comps.orch.Run(context.Background(), q)
	if err != nil {
		return err
	}

	if comps.history != nil {
		targets := q.Backends
		if len(targets) == 0 {
			targets = comps.orch.Backends()
		}
		if err := comps.history.Record(context.Background(), targets, result); err != nil {
			fmt.Fprintf(os.Stderr, "warning: history record failed: %v\n", err)
		}
	}

	output, _ := cmd.Flags().GetString("output")
	switch output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(result)
	default:
		formatResult(result, os.Stdout)
		return nil
	}
}

// formatResult writes the synthesized answer as a human-readable table.
func formatResult(res types.OrchestrationResult, w io.Writer) {
	fmt.Fprintf(w, "query %s  completeness %.2f  elapsed %dms\n",
		res.QueryID, res.CompletenessScore, res.ElapsedMS)

	if len(res.CacheHits) > 0 {
		fmt.Fprintf(w, "cache hits: %s\n", strings.Join(res.CacheHits, ", "))
	}
	for _, fc := range res.FailedComponents {
		fmt.Fprintf(w, "failed: %s (%s) %s\n", fc.Backend, fc.Kind, fc.Message)
	}

	if len(res.Items) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}

	fmt.Fprintf(w, "\n%-4s  %-60s  %-6s  %s\n", "Rank", "Content", "Conf", "Sources")
	fmt.Fprintln(w, strings.Repeat("-", 95))
	for i, item := range res.Items {
		content := item.Content
		if len(content) > 60 {
			content = content[:57] + "..."
		}
		fmt.Fprintf(w, "%-4d  %-60s  %-6.2f  %s\n",
			i+1, content, item.Confidence, strings.Join(item.Sources, ","))
	}

	fmt.Fprintf(w, "\n%d results", len(res.Items))
	var latencies []string
	for backend, ms := range res.PerBackendLatencyMS {
		latencies = append(latencies, fmt.Sprintf("%s %dms", backend, ms))
	}
	if len(latencies) > 0 {
		fmt.Fprintf(w, "  (%s)", strings.Join(latencies, ", "))
	}
	fmt.Fprintln(w)
}
