package embed

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedderDeterministic(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	a, err := e.Embed(t.Context(), "weighted fusion of retrieval sources")
	require.NoError(t, err)
	b, err := e.Embed(t.Context(), "weighted fusion of retrieval sources")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, DefaultDimensions)
}

func TestStaticEmbedderUnitLength(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	vec, err := e.Embed(t.Context(), "hello world")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestStaticEmbedderEmptyInput(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	for _, text := range []string{"", "   ", "\n\t"} {
		vec, err := e.Embed(t.Context(), text)
		require.NoError(t, err)
		assert.Equal(t, make([]float32, DefaultDimensions), vec)
	}
}

func TestStaticEmbedderSimilarTextsCloser(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	ctx := t.Context()
	base, err := e.Embed(ctx, "vector index search query")
	require.NoError(t, err)
	near, err := e.Embed(ctx, "vector index search queries")
	require.NoError(t, err)
	far, err := e.Embed(ctx, "banana smoothie recipe")
	require.NoError(t, err)

	assert.Greater(t, dot(base, near), dot(base, far))
}

func TestStaticEmbedderClosed(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())
	assert.False(t, e.Available(t.Context()))

	_, err := e.Embed(t.Context(), "anything")
	require.Error(t, err)
}

func TestSplitIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"camelCase", []string{"camel", "Case"}},
		{"HTTPServer", []string{"HTTPServer"}},
		{"v2index", []string{"v", "2", "index"}},
		{"plain", []string{"plain"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitIdentifier(tt.in), "input %q", tt.in)
	}
}

func TestCachedEmbedderHitsCache(t *testing.T) {
	inner := &countingEmbedder{inner: NewStaticEmbedder()}
	c := NewCachedEmbedder(inner, 10)
	defer c.Close()

	ctx := t.Context()
	first, err := c.Embed(ctx, "repeated query")
	require.NoError(t, err)
	second, err := c.Embed(ctx, "repeated query")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), inner.calls.Load())
}

func TestCachedEmbedderBatchPartialHits(t *testing.T) {
	inner := &countingEmbedder{inner: NewStaticEmbedder()}
	c := NewCachedEmbedder(inner, 10)
	defer c.Close()

	ctx := t.Context()
	_, err := c.Embed(ctx, "alpha")
	require.NoError(t, err)

	results, err := c.EmbedBatch(ctx, []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Len(t, r, DefaultDimensions)
	}
	// One Embed call plus one batch call for the two misses.
	assert.Equal(t, int64(3), inner.calls.Load())
}

func TestCachedEmbedderEviction(t *testing.T) {
	inner := &countingEmbedder{inner: NewStaticEmbedder()}
	c := NewCachedEmbedder(inner, 2)
	defer c.Close()

	ctx := t.Context()
	for _, q := range []string{"one", "two", "three", "one"} {
		_, err := c.Embed(ctx, q)
		require.NoError(t, err)
	}
	// "one" was evicted by "three", so it recomputes: 4 total.
	assert.Equal(t, int64(4), inner.calls.Load())
}

func TestPooledEmbedderOrdersResults(t *testing.T) {
	p, err := NewPooledEmbedder(NewStaticEmbedder(), 4)
	require.NoError(t, err)
	defer p.Close()

	texts := make([]string, 150)
	for i := range texts {
		texts[i] = fmt.Sprintf("document number %d", i)
	}

	got, err := p.EmbedBatch(t.Context(), texts)
	require.NoError(t, err)
	require.Len(t, got, len(texts))

	want, err := NewStaticEmbedder().EmbedBatch(t.Context(), texts)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPooledEmbedderSmallBatchPassthrough(t *testing.T) {
	inner := &countingEmbedder{inner: NewStaticEmbedder()}
	p, err := NewPooledEmbedder(inner, 2)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.EmbedBatch(t.Context(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), inner.calls.Load())
}

// countingEmbedder counts individual embeddings computed by the inner
// embedder.
type countingEmbedder struct {
	inner Embedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(int64(len(texts)))
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) Dimensions() int                     { return c.inner.Dimensions() }
func (c *countingEmbedder) ModelName() string                   { return c.inner.ModelName() }
func (c *countingEmbedder) Available(ctx context.Context) bool  { return c.inner.Available(ctx) }
func (c *countingEmbedder) Close() error                        { return c.inner.Close() }

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
