// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package synthesis merges per-backend results into one ranked, deduplicated,
// attributed answer. Implements: prd010-synthesis (R1-R3);
//
//	docs/ARCHITECTURE § Result Synthesis.
package synthesis

import (
	"sort"

	"github.com/pdiddy/research-orchestrator/pkg/types"
)

// SourceProfile carries the ranking knobs for one backend.
type SourceProfile struct {
	// QualityWeight scales the backend's item confidence (default 1.0).
	QualityWeight float64

	// Priority breaks ranking ties between backends; higher wins.
	Priority int
}

// Synthesizer merges Success results for one query. Construct once per
// orchestrator; Merge is safe for concurrent use.
type Synthesizer struct {
	profiles map[string]SourceProfile
	maxItems int
}

// New builds a synthesizer. Backends absent from profiles rank with
// QualityWeight 1.0 and Priority 0.
func New(profiles map[string]SourceProfile, maxItems int) *Synthesizer {
	if maxItems <= 0 {
		maxItems = 50
	}
	return &Synthesizer{profiles: profiles, maxItems: maxItems}
}

// merged is one item under construction, tracking which result arrived
// first so ties rank deterministically (R3.2).
type merged struct {
	item    types.ResultItem
	sources []string
	arrival int
}

// Merge deduplicates items across results by identity key, keeping the
// highest-confidence instance and recording every contributing source, then
// ranks by (quality weight, confidence, source priority) descending with
// ties broken by earliest-arriving backend (R1.1-R1.3, R3.1-R3.2).
// Non-success results are ignored; results must be in arrival order.
func (s *Synthesizer) Merge(results []types.ServiceResult) []types.MergedItem {
	seen := make(map[string]int) // identity key → index in order
	var order []*merged

	for arrival, res := range results {
		if !res.Success() {
			continue
		}
		for _, item := range res.Items {
			idx, ok := seen[item.ID]
			if !ok {
				seen[item.ID] = len(order)
				order = append(order, &merged{
					item:    item,
					sources: []string{item.Source},
					arrival: arrival,
				})
				continue
			}

			m := order[idx]
			m.sources = append(m.sources, item.Source)
			if item.Confidence > m.item.Confidence {
				// The kept instance's source leads the attribution list.
				m.item = item
				last := len(m.sources) - 1
				m.sources[0], m.sources[last] = m.sources[last], m.sources[0]
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		pa, pb := s.profile(a.item.Source), s.profile(b.item.Source)

		if pa.QualityWeight != pb.QualityWeight {
			return pa.QualityWeight > pb.QualityWeight
		}
		if a.item.Confidence != b.item.Confidence {
			return a.item.Confidence > b.item.Confidence
		}
		if pa.Priority != pb.Priority {
			return pa.Priority > pb.Priority
		}
		return a.arrival < b.arrival
	})

	if len(order) > s.maxItems {
		order = order[:s.maxItems]
	}

	out := make([]types.MergedItem, 0, len(order))
	for _, m := range order {
		out = append(out, types.MergedItem{
			ResultItem: m.item,
			Sources:    dedupeSources(m.sources),
		})
	}
	return out
}

func (s *Synthesizer) profile(source string) SourceProfile {
	if p, ok := s.profiles[source]; ok {
		if p.QualityWeight <= 0 {
			p.QualityWeight = 1.0
		}
		return p
	}
	return SourceProfile{QualityWeight: 1.0}
}

// dedupeSources drops repeat mentions of a backend while preserving order.
func dedupeSources(sources []string) []string {
	seen := make(map[string]bool, len(sources))
	out := sources[:0]
	for _, src := range sources {
		if !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
	}
	return out
}
