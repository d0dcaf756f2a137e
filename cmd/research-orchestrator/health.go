// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health [backend]",
	Short: "Show circuit state for one or all dependencies of a running service",
	Long: `Health prints the circuit breaker snapshot (state, failure counters,
last transition) for one backend, or for every configured backend when no
argument is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base := serviceAddr(cmd) + "/v1/dependencies"
		if len(args) == 1 {
			return getJSON(base + "/" + args[0] + "/health")
		}
		return getJSON(base)
	},
}

func init() {
	healthCmd.Flags().String("addr", "http://localhost:8080", "address of the running service")

	rootCmd.AddCommand(healthCmd)
}

// serviceAddr returns the --addr flag value, tolerating commands that
// inherit it from a parent.
func serviceAddr(cmd *cobra.Command) string {
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = "http://localhost:8080"
	}
	return addr
}

// getJSON fetches a service endpoint and pretty-prints the JSON response.
func getJSON(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("reaching service: %w", err)
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

// deleteJSON issues a DELETE and pretty-prints the JSON response.
func deleteJSON(url string) error {
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("reaching service: %w", err)
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var pretty any
	if json.Unmarshal(body, &pretty) == nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(pretty)
	} else {
		os.Stdout.Write(body)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("service returned HTTP %d", resp.StatusCode)
	}
	return nil
}
