package source

import (
	"context"
	"strconv"

	"github.com/quadfuse/quadfuse/internal/embed"
	qerrors "github.com/quadfuse/quadfuse/internal/errors"
	"github.com/quadfuse/quadfuse/internal/vectorindex"
)

// VectorAdapter queries the HNSW index. The raw score is 1/(1+distance),
// monotonically decreasing in distance and bounded to (0,1].
type VectorAdapter struct {
	index    *vectorindex.Index
	embedder embed.Embedder
}

// NewVectorAdapter creates a vector adapter over the given index and
// embedder.
func NewVectorAdapter(index *vectorindex.Index, embedder embed.Embedder) *VectorAdapter {
	return &VectorAdapter{index: index, embedder: embedder}
}

// Name returns "vector".
func (a *VectorAdapter) Name() string { return Vector }

// Query embeds the query text unless an embedding was supplied, then runs
// nearest-neighbor search.
func (a *VectorAdapter) Query(ctx context.Context, p Params) ([]Hit, error) {
	embedding := p.Embedding
	if embedding == nil {
		var err error
		embedding, err = a.embedder.Embed(ctx, p.Query)
		if err != nil {
			return nil, qerrors.New(qerrors.ErrCodeEmbeddingFailed, "failed to embed query", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, qerrors.New(qerrors.ErrCodeSourceTimeout, "vector search cancelled", err)
	}

	k := p.TopK
	if k <= 0 {
		k = 10
	}
	results, err := a.index.Search(embedding, k, 0)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			ID:       r.ID,
			RawScore: 1.0 / (1.0 + r.Distance),
			Metadata: map[string]string{
				"distance": strconv.FormatFloat(r.Distance, 'f', -1, 64),
			},
		}
	}
	return hits, nil
}
