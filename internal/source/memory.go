package source

import (
	"context"
	"strconv"

	"github.com/quadfuse/quadfuse/internal/store/memstore"
)

// MemoryAdapter looks up episodic records in one namespace. The raw score
// is query-term overlap weighted by record salience.
type MemoryAdapter struct {
	store *memstore.Store
}

// NewMemoryAdapter creates a memory adapter over the given store.
func NewMemoryAdapter(store *memstore.Store) *MemoryAdapter {
	return &MemoryAdapter{store: store}
}

// Name returns "memory".
func (a *MemoryAdapter) Name() string { return Memory }

// Query searches p.MemoryNamespace. An empty namespace returns no hits.
func (a *MemoryAdapter) Query(ctx context.Context, p Params) ([]Hit, error) {
	scored, err := a.store.Search(ctx, p.MemoryNamespace, p.Query, p.TopK)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, len(scored))
	for i, s := range scored {
		hits[i] = Hit{
			ID:       s.Record.ID,
			RawScore: s.Score,
			Metadata: map[string]string{
				"namespace": s.Record.Namespace,
				"content":   s.Record.Content,
				"salience":  strconv.FormatFloat(s.Record.Salience, 'f', -1, 64),
			},
		}
	}
	return hits, nil
}
