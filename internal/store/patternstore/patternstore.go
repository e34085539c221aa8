// Package patternstore holds learned behavioral patterns ordered by
// confidence. The pattern retrieval source matches query terms against
// pattern triggers, filtered by a minimum confidence threshold. Confidence
// values are produced by an external feedback engine; this store only reads
// them.
package patternstore

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/btree"

	qerrors "github.com/quadfuse/quadfuse/internal/errors"
)

// Pattern is one learned trigger -> action association.
type Pattern struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"`
	Action     string    `json:"action,omitempty"`
	Confidence float64   `json:"confidence"`
	UsageCount int       `json:"usage_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Scored is a match with its relevance score.
type Scored struct {
	Pattern Pattern
	Score   float64
}

// Store keeps patterns in a B-tree ordered by confidence descending, so
// threshold scans stop early once confidence drops below the cutoff.
type Store struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[Pattern]
	byID map[string]Pattern
}

func patternLess(a, b Pattern) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.ID < b.ID
}

// New creates an empty pattern store.
func New() *Store {
	return &Store{
		tree: btree.NewBTreeG(patternLess),
		byID: make(map[string]Pattern),
	}
}

// Put inserts or replaces a pattern. Confidence is clamped to [0,1].
func (s *Store) Put(p Pattern) error {
	if p.ID == "" || p.Trigger == "" {
		return qerrors.New(qerrors.ErrCodeInvalidOptions, "pattern ID and trigger must not be empty", nil)
	}
	if p.Confidence < 0 {
		p.Confidence = 0
	} else if p.Confidence > 1 {
		p.Confidence = 1
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byID[p.ID]; ok {
		s.tree.Delete(old)
	}
	s.tree.Set(p)
	s.byID[p.ID] = p
	return nil
}

// Get returns the pattern with the given ID.
func (s *Store) Get(id string) (Pattern, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	return p, ok
}

// Delete removes a pattern. Returns false when absent.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return false
	}
	s.tree.Delete(p)
	delete(s.byID, id)
	return true
}

// Len returns the number of patterns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// All returns every pattern in tree order: confidence descending, ties by
// ascending ID.
func (s *Store) All() []Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	patterns := make([]Pattern, 0, len(s.byID))
	s.tree.Scan(func(p Pattern) bool {
		patterns = append(patterns, p)
		return true
	})
	return patterns
}

// Match scores patterns whose trigger shares terms with the query, skipping
// those below minConfidence. Score is term overlap times confidence.
// Results are ordered score descending, ties by ascending ID, truncated to
// limit.
func (s *Store) Match(query string, minConfidence float64, limit int) []Scored {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []Scored
	s.tree.Scan(func(p Pattern) bool {
		if p.Confidence < minConfidence {
			// Tree is ordered by confidence descending; nothing below
			// this point can pass the threshold.
			return false
		}
		trigger := strings.ToLower(p.Trigger)
		matched := 0
		for _, t := range terms {
			if strings.Contains(trigger, t) {
				matched++
			}
		}
		if matched > 0 {
			overlap := float64(matched) / float64(len(terms))
			hits = append(hits, Scored{Pattern: p, Score: overlap * p.Confidence})
		}
		return true
	})

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Pattern.ID < hits[j].Pattern.ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// SaveFile writes all patterns as JSON.
func (s *Store) SaveFile(path string) error {
	s.mu.RLock()
	patterns := make([]Pattern, 0, len(s.byID))
	s.tree.Scan(func(p Pattern) bool {
		patterns = append(patterns, p)
		return true
	})
	s.mu.RUnlock()

	data, err := json.MarshalIndent(patterns, "", "  ")
	if err != nil {
		return qerrors.New(qerrors.ErrCodeInternal, "failed to encode patterns", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return qerrors.New(qerrors.ErrCodeInternal, "failed to write pattern file", err)
	}
	return nil
}

// LoadFile reads patterns from a JSON file written by SaveFile, replacing
// the current contents.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return qerrors.New(qerrors.ErrCodeSourceUnavailable, "failed to read pattern file", err)
	}
	var patterns []Pattern
	if err := json.Unmarshal(data, &patterns); err != nil {
		return qerrors.New(qerrors.ErrCodeSourceFailed, "failed to decode pattern file", err)
	}

	s.mu.Lock()
	s.tree = btree.NewBTreeG(patternLess)
	s.byID = make(map[string]Pattern, len(patterns))
	s.mu.Unlock()

	for _, p := range patterns {
		if err := s.Put(p); err != nil {
			return err
		}
	}
	return nil
}
