// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-orchestrator/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent orchestrated queries from the history database",
	Long: `History reads the SQLite query-history database (history_db in the
config file) and lists recent runs with completeness and failure summaries.
Use --export to dump the entries as YAML.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to show")
	historyCmd.Flags().Bool("export", false, "write entries as YAML instead of a table")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.HistoryDB == "" {
		return fmt.Errorf("history_db is not configured")
	}

	s, err := store.New(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer s.Close()

	limit, _ := cmd.Flags().GetInt("limit")

	if export, _ := cmd.Flags().GetBool("export"); export {
		return s.ExportYAML(context.Background(), os.Stdout, limit)
	}

	entries, err := s.List(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No recorded queries.")
		return nil
	}

	fmt.Printf("%-36s  %-40s  %-5s  %-7s  %s\n", "ID", "Query", "Score", "Elapsed", "Failures")
	fmt.Println(strings.Repeat("-", 110))
	for _, e := range entries {
		query := e.Query
		if len(query) > 40 {
			query = query[:37] + "..."
		}
		var failures []string
		for _, fc := range e.FailedComponents {
			failures = append(failures, fmt.Sprintf("%s(%s)", fc.Backend, fc.Kind))
		}
		fmt.Printf("%-36s  %-40s  %-5.2f  %-7s  %s\n",
			e.ID, query, e.Completeness, fmt.Sprintf("%dms", e.ElapsedMS),
			strings.Join(failures, ","))
	}
	return nil
}
