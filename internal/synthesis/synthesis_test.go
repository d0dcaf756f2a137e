// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synthesis

import (
	"fmt"
	"testing"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

func success(backend string, items ...types.ResultItem) types.ServiceResult {
	return types.ServiceResult{Backend: backend, Status: types.StatusSuccess, Items: items}
}

func item(id, source string, confidence float64) types.ResultItem {
	return types.ResultItem{ID: id, Content: "content " + id, Confidence: confidence, Source: source}
}

// --- Deduplication ---

func TestMergeDeduplicatesAcrossBackends(t *testing.T) {
	s := New(nil, 0)
	out := s.Merge([]types.ServiceResult{
		success("a", item("x", "a", 0.5)),
		success("b", item("x", "b", 0.9)),
	})
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	// Highest-confidence instance wins and leads the attribution list.
	if out[0].Confidence != 0.9 {
		t.Errorf("Confidence = %f, want 0.9", out[0].Confidence)
	}
	if len(out[0].Sources) != 2 || out[0].Sources[0] != "b" {
		t.Errorf("Sources = %v, want [b a]", out[0].Sources)
	}
}

func TestMergeKeepsFirstInstanceOnEqualConfidence(t *testing.T) {
	s := New(nil, 0)
	out := s.Merge([]types.ServiceResult{
		success("a", item("x", "a", 0.7)),
		success("b", item("x", "b", 0.7)),
	})
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].Source != "a" {
		t.Errorf("kept Source = %q, want first-arriving a", out[0].Source)
	}
	if out[0].Sources[0] != "a" || out[0].Sources[1] != "b" {
		t.Errorf("Sources = %v, want [a b]", out[0].Sources)
	}
}

func TestMergeDistinctIDsAllKept(t *testing.T) {
	s := New(nil, 0)
	out := s.Merge([]types.ServiceResult{
		success("a", item("x", "a", 0.9), item("y", "a", 0.8)),
		success("b", item("z", "b", 0.7)),
	})
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
}

func TestMergeRepeatSourceDeduplicated(t *testing.T) {
	// Same backend reports the same ID twice; attribution lists it once.
	s := New(nil, 0)
	out := s.Merge([]types.ServiceResult{
		success("a", item("x", "a", 0.5), item("x", "a", 0.6)),
	})
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if len(out[0].Sources) != 1 || out[0].Sources[0] != "a" {
		t.Errorf("Sources = %v, want [a]", out[0].Sources)
	}
	if out[0].Confidence != 0.6 {
		t.Errorf("Confidence = %f, want 0.6", out[0].Confidence)
	}
}

// --- Non-success filtering ---

func TestMergeIgnoresFailures(t *testing.T) {
	s := New(nil, 0)
	out := s.Merge([]types.ServiceResult{
		success("a", item("x", "a", 0.9)),
		{
			Backend:     "b",
			Status:      types.StatusFailure,
			Items:       []types.ResultItem{item("poison", "b", 1.0)},
			FailureKind: types.FailureUnavailable,
		},
		{Backend: "c", Status: types.StatusTimeout},
	})
	if len(out) != 1 || out[0].ID != "x" {
		t.Errorf("out = %+v, want only item x", out)
	}
}

func TestMergeEmptyInput(t *testing.T) {
	s := New(nil, 0)
	if out := s.Merge(nil); len(out) != 0 {
		t.Errorf("Merge(nil) = %+v, want empty", out)
	}
}

// --- Ranking ---

func TestMergeRanksByConfidence(t *testing.T) {
	s := New(nil, 0)
	out := s.Merge([]types.ServiceResult{
		success("a", item("low", "a", 0.2), item("high", "a", 0.9), item("mid", "a", 0.5)),
	})
	want := []string{"high", "mid", "low"}
	for i, id := range want {
		if out[i].ID != id {
			t.Errorf("out[%d].ID = %q, want %q", i, out[i].ID, id)
		}
	}
}

func TestMergeQualityWeightDominatesConfidence(t *testing.T) {
	s := New(map[string]SourceProfile{
		"curated": {QualityWeight: 2.0},
		"noisy":   {QualityWeight: 0.5},
	}, 0)
	out := s.Merge([]types.ServiceResult{
		success("noisy", item("n", "noisy", 0.99)),
		success("curated", item("c", "curated", 0.3)),
	})
	if out[0].ID != "c" {
		t.Errorf("out[0].ID = %q, want curated item first", out[0].ID)
	}
}

func TestMergePriorityBreaksTies(t *testing.T) {
	s := New(map[string]SourceProfile{
		"primary":   {QualityWeight: 1.0, Priority: 10},
		"secondary": {QualityWeight: 1.0, Priority: 1},
	}, 0)
	out := s.Merge([]types.ServiceResult{
		success("secondary", item("s", "secondary", 0.8)),
		success("primary", item("p", "primary", 0.8)),
	})
	if out[0].ID != "p" {
		t.Errorf("out[0].ID = %q, want priority backend first", out[0].ID)
	}
}

func TestMergeArrivalBreaksFinalTie(t *testing.T) {
	s := New(nil, 0)
	out := s.Merge([]types.ServiceResult{
		success("first", item("f", "first", 0.8)),
		success("second", item("s", "second", 0.8)),
	})
	if out[0].ID != "f" || out[1].ID != "s" {
		t.Errorf("order = [%s %s], want arrival order [f s]", out[0].ID, out[1].ID)
	}
}

// --- Capping ---

func TestMergeCapsItems(t *testing.T) {
	s := New(nil, 3)
	var items []types.ResultItem
	for i := 0; i < 10; i++ {
		items = append(items, item(fmt.Sprintf("i%d", i), "a", float64(10-i)/10))
	}
	out := s.Merge([]types.ServiceResult{success("a", items...)})
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
	// The cap keeps the top-ranked entries.
	if out[0].ID != "i0" || out[2].ID != "i2" {
		t.Errorf("capped order = [%s .. %s]", out[0].ID, out[2].ID)
	}
}

func TestMergeDefaultCap(t *testing.T) {
	s := New(nil, 0)
	var items []types.ResultItem
	for i := 0; i < 60; i++ {
		items = append(items, item(fmt.Sprintf("i%d", i), "a", 0.5))
	}
	out := s.Merge([]types.ServiceResult{success("a", items...)})
	if len(out) != 50 {
		t.Errorf("len(out) = %d, want default cap 50", len(out))
	}
}
