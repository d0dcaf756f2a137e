// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(id string, started time.Time) types.OrchestrationResult {
	return types.OrchestrationResult{
		QueryID:           id,
		Query:             "solid state batteries",
		Items:             []types.MergedItem{{ResultItem: types.ResultItem{ID: "x"}}},
		CompletenessScore: 2.0 / 3.0,
		PartialResults:    true,
		FailedComponents: []types.FailedComponent{
			{Backend: "graph", Kind: types.FailureCircuitOpen, Message: "circuit open"},
		},
		CacheHits: []string{"vector"},
		ElapsedMS: 123,
		StartedAt: started,
	}
}

func TestRecordListRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := s.Record(ctx, []string{"textsearch", "vector", "graph"}, sampleResult("q-1", started)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}

	e := entries[0]
	if e.ID != "q-1" {
		t.Errorf("ID = %q", e.ID)
	}
	if e.Query != "solid state batteries" {
		t.Errorf("Query = %q", e.Query)
	}
	if len(e.Backends) != 3 || e.Backends[2] != "graph" {
		t.Errorf("Backends = %v", e.Backends)
	}
	if !e.Partial {
		t.Error("Partial = false, want true")
	}
	if len(e.FailedComponents) != 1 || e.FailedComponents[0].Kind != types.FailureCircuitOpen {
		t.Errorf("FailedComponents = %+v", e.FailedComponents)
	}
	if e.ItemCount != 1 {
		t.Errorf("ItemCount = %d, want 1", e.ItemCount)
	}
	if len(e.CacheHits) != 1 || e.CacheHits[0] != "vector" {
		t.Errorf("CacheHits = %v", e.CacheHits)
	}
	if e.ElapsedMS != 123 {
		t.Errorf("ElapsedMS = %d", e.ElapsedMS)
	}
	if !e.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", e.StartedAt, started)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		res := sampleResult(id, base.Add(time.Duration(i)*time.Hour))
		if err := s.Record(ctx, []string{"a"}, res); err != nil {
			t.Fatalf("Record(%s): %v", id, err)
		}
	}

	entries, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2 (limit)", len(entries))
	}
	if entries[0].ID != "new" || entries[1].ID != "mid" {
		t.Errorf("order = [%s %s], want [new mid]", entries[0].ID, entries[1].ID)
	}
}

func TestListEmptyDatabase(t *testing.T) {
	s := newTestStore(t)
	entries, err := s.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %+v, want none", entries)
	}
}

func TestDuplicateQueryIDRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res := sampleResult("dup", time.Now())
	if err := s.Record(ctx, []string{"a"}, res); err != nil {
		t.Fatalf("first Record: %v", err)
	}
	if err := s.Record(ctx, []string{"a"}, res); err == nil {
		t.Error("expected primary key violation on duplicate query ID")
	}
}

func TestExportYAML(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, []string{"a"}, sampleResult("q-yaml", time.Now().UTC())); err != nil {
		t.Fatalf("Record: %v", err)
	}

	var buf bytes.Buffer
	if err := s.ExportYAML(ctx, &buf, 10); err != nil {
		t.Fatalf("ExportYAML: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"q-yaml", "solid state batteries", "circuit_open"} {
		if !strings.Contains(out, want) {
			t.Errorf("YAML output missing %q:\n%s", want, out)
		}
	}
}

func TestNewCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "history.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Close()
}
