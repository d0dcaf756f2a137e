// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists a history of orchestrated queries in SQLite so
// operators can inspect completeness and failure trends after the fact.
// Implements: prd011-service (R4.1-R4.4);
//
//	docs/ARCHITECTURE § Query History.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// Store manages the query-history SQLite database.
type Store struct {
	db *sql.DB
}

// New opens or creates the history database at path, creating the schema
// if it does not exist.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS queries (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			backends TEXT NOT NULL,
			completeness REAL NOT NULL,
			partial INTEGER NOT NULL,
			failed_components TEXT,
			item_count INTEGER NOT NULL,
			cache_hits TEXT,
			elapsed_ms INTEGER NOT NULL,
			started_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_queries_started_at ON queries(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record inserts one completed orchestration run.
func (s *Store) Record(ctx context.Context, targets []string, res types.OrchestrationResult) error {
	backendsJSON, _ := json.Marshal(targets)
	failedJSON, _ := json.Marshal(res.FailedComponents)
	cacheHitsJSON, _ := json.Marshal(res.CacheHits)

	partial := 0
	if res.PartialResults {
		partial = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queries (id, query, backends, completeness, partial,
			failed_components, item_count, cache_hits, elapsed_ms, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.QueryID, res.Query, string(backendsJSON), res.CompletenessScore, partial,
		string(failedJSON), len(res.Items), string(cacheHitsJSON),
		res.ElapsedMS, res.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording query %s: %w", res.QueryID, err)
	}
	return nil
}

// Entry is one recorded orchestration run.
type Entry struct {
	ID               string                  `json:"id" yaml:"id"`
	Query            string                  `json:"query" yaml:"query"`
	Backends         []string                `json:"backends" yaml:"backends"`
	Completeness     float64                 `json:"completeness" yaml:"completeness"`
	Partial          bool                    `json:"partial" yaml:"partial"`
	FailedComponents []types.FailedComponent `json:"failed_components,omitempty" yaml:"failed_components,omitempty"`
	ItemCount        int                     `json:"item_count" yaml:"item_count"`
	CacheHits        []string                `json:"cache_hits,omitempty" yaml:"cache_hits,omitempty"`
	ElapsedMS        int64                   `json:"elapsed_ms" yaml:"elapsed_ms"`
	StartedAt        time.Time               `json:"started_at" yaml:"started_at"`
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, backends, completeness, partial, failed_components,
			item_count, cache_hits, elapsed_ms, started_at
		 FROM queries ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing queries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			backends   string
			partial    int
			failed     string
			cacheHits  string
			startedStr string
		)
		if err := rows.Scan(&e.ID, &e.Query, &backends, &e.Completeness, &partial,
			&failed, &e.ItemCount, &cacheHits, &e.ElapsedMS, &startedStr); err != nil {
			return nil, fmt.Errorf("scanning query row: %w", err)
		}
		e.Partial = partial != 0
		json.Unmarshal([]byte(backends), &e.Backends)
		json.Unmarshal([]byte(failed), &e.FailedComponents)
		json.Unmarshal([]byte(cacheHits), &e.CacheHits)
		if t, parseErr := time.Parse(time.RFC3339Nano, startedStr); parseErr == nil {
			e.StartedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ExportYAML writes the most recent runs to w as YAML.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, limit int) error {
	entries, err := s.List(ctx, limit)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	return nil
}
