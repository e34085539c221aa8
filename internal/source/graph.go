package source

import (
	"context"
	"strconv"

	"github.com/quadfuse/quadfuse/internal/store/graphstore"
)

// GraphAdapter runs bounded traversal from query-matched seed nodes. The
// raw score is 1/(1+hops): seeds score 1.0 and relevance decays with
// distance from them.
type GraphAdapter struct {
	store *graphstore.Store
}

// NewGraphAdapter creates a graph adapter over the given store.
func NewGraphAdapter(store *graphstore.Store) *GraphAdapter {
	return &GraphAdapter{store: store}
}

// Name returns "graph".
func (a *GraphAdapter) Name() string { return Graph }

// Query finds seed nodes matching the query terms and expands to
// p.GraphDepth hops.
func (a *GraphAdapter) Query(ctx context.Context, p Params) ([]Hit, error) {
	seeds := a.store.FindSeeds(p.Query)
	if len(seeds) == 0 {
		return nil, nil
	}

	visits, err := a.store.Traverse(ctx, seeds, p.GraphDepth)
	if err != nil {
		return nil, err
	}

	limit := p.TopK
	if limit > 0 && len(visits) > limit {
		// Visits are ordered by hops ascending then ID, so truncation keeps
		// the closest nodes.
		visits = visits[:limit]
	}

	hits := make([]Hit, len(visits))
	for i, v := range visits {
		hits[i] = Hit{
			ID:       v.ID,
			RawScore: 1.0 / (1.0 + float64(v.Hops)),
			Metadata: map[string]string{
				"hops": strconv.Itoa(v.Hops),
			},
		}
	}
	return hits, nil
}
