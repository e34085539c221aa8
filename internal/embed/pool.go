package embed

import (
	"context"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	qerrors "github.com/quadfuse/quadfuse/internal/errors"
)

// PooledEmbedder parallelizes EmbedBatch across a bounded worker pool.
// Single Embed calls pass through; batches are split into chunks of
// DefaultBatchSize and embedded concurrently. Useful for bulk indexing
// where thousands of documents are embedded at once.
type PooledEmbedder struct {
	inner Embedder
	pool  *ants.Pool
}

// NewPooledEmbedder creates a pooled embedder with the given worker count.
// workers <= 0 uses GOMAXPROCS.
func NewPooledEmbedder(inner Embedder, workers int) (*PooledEmbedder, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, qerrors.New(qerrors.ErrCodeInternal, "failed to create embedding worker pool", err)
	}
	return &PooledEmbedder{inner: inner, pool: pool}, nil
}

// Embed passes through to the inner embedder.
func (p *PooledEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.inner.Embed(ctx, text)
}

// EmbedBatch splits texts into chunks and embeds them concurrently. Results
// keep their input order. The first chunk error cancels the remaining work.
func (p *PooledEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) <= DefaultBatchSize {
		return p.inner.EmbedBatch(ctx, texts)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]float32, len(texts))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for start := 0; start < len(texts); start += DefaultBatchSize {
		end := start + DefaultBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunkStart, chunk := start, texts[start:end]

		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			vecs, err := p.inner.EmbedBatch(ctx, chunk)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				return
			}
			copy(results[chunkStart:], vecs)
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = qerrors.New(qerrors.ErrCodeInternal, "failed to submit embedding chunk", submitErr)
				cancel()
			}
			mu.Unlock()
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// Dimensions returns the embedding dimension of the inner embedder.
func (p *PooledEmbedder) Dimensions() int {
	return p.inner.Dimensions()
}

// ModelName returns the model identifier of the inner embedder.
func (p *PooledEmbedder) ModelName() string {
	return p.inner.ModelName()
}

// Available checks if the inner embedder is ready.
func (p *PooledEmbedder) Available(ctx context.Context) bool {
	return p.inner.Available(ctx)
}

// Close releases the worker pool and closes the inner embedder.
func (p *PooledEmbedder) Close() error {
	p.pool.Release()
	return p.inner.Close()
}
