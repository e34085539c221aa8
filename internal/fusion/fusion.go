// Package fusion merges ranked result lists from heterogeneous retrieval
// sources into a single ranking. Each source's raw scores are min-max
// normalized into [0,1] before the weighted sum, so sources with different
// score scales combine fairly.
package fusion

import (
	"sort"

	"github.com/quadfuse/quadfuse/internal/vectormath"
)

// Hit is a single result from one source. Raw is the source's native score;
// Normalized is the [0,1] score used by the weighted sum. NormalizeScores
// fills Normalized from the raw scores of a whole result list.
type Hit struct {
	ID         string
	Raw        float64
	Normalized float64
	Metadata   map[string]string
}

// SourceResult is the ranked list one source returned.
type SourceResult struct {
	Source string
	Hits   []Hit
}

// SourceScore is one source's contribution to a fused result.
type SourceScore struct {
	Source     string  `json:"source"`
	Raw        float64 `json:"raw_score"`
	Normalized float64 `json:"normalized_score"`
}

// Fused is a merged result with per-source attribution.
type Fused struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Sources  []SourceScore     `json:"sources"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NormalizeScores min-max normalizes the raw scores of hits in place. A list
// whose raw scores are all equal normalizes to 0.5 everywhere.
func NormalizeScores(hits []Hit) {
	if len(hits) == 0 {
		return
	}
	min, max := hits[0].Raw, hits[0].Raw
	for _, h := range hits[1:] {
		if h.Raw < min {
			min = h.Raw
		}
		if h.Raw > max {
			max = h.Raw
		}
	}
	for i := range hits {
		hits[i].Normalized = vectormath.Normalize(hits[i].Raw, min, max)
	}
}

// Fuse combines per-source rankings into one list of at most topK results.
//
// Hits are grouped by ID across sources. The fused score is the sum of
// weight * normalized score over the sources that returned the document; a
// source that did not return a document contributes exactly 0 for it. The
// weights are not renormalized over the subset of sources mentioning a
// given ID, so documents surfaced by several sources outrank single-source
// spikes of equal normalized score. This is a fixed contract, not an
// implementation accident.
//
// Results are ordered by fused score descending, ties broken by ascending
// ID, so equal inputs always produce identical output. topK <= 0 means no
// truncation.
func Fuse(results []SourceResult, weights map[string]float64, topK int) []Fused {
	merged := make(map[string]*Fused)

	for _, sr := range results {
		weight := weights[sr.Source]
		for _, h := range sr.Hits {
			f, ok := merged[h.ID]
			if !ok {
				f = &Fused{ID: h.ID}
				merged[h.ID] = f
			}
			f.Sources = append(f.Sources, SourceScore{
				Source:     sr.Source,
				Raw:        h.Raw,
				Normalized: h.Normalized,
			})
			f.Score += weight * h.Normalized
			for k, v := range h.Metadata {
				if f.Metadata == nil {
					f.Metadata = make(map[string]string)
				}
				if _, exists := f.Metadata[k]; !exists {
					f.Metadata[k] = v
				}
			}
		}
	}

	fused := make([]Fused, 0, len(merged))
	for _, f := range merged {
		sort.Slice(f.Sources, func(i, j int) bool {
			return f.Sources[i].Source < f.Sources[j].Source
		})
		fused = append(fused, *f)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ID < fused[j].ID
	})

	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}
	return fused
}
