package vectorindex

import (
	"bytes"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/quadfuse/quadfuse/internal/errors"
	"github.com/quadfuse/quadfuse/internal/vectormath"
)

func euclideanIndex(t *testing.T, dim int) *Index {
	t.Helper()
	ix, err := New(dim, Config{Metric: vectormath.MetricEuclidean})
	require.NoError(t, err)
	return ix
}

func TestNewRejectsBadDimension(t *testing.T) {
	_, err := New(0, Config{})
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeInvalidOptions, qerrors.GetCode(err))

	_, err = New(-3, Config{})
	require.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	ix, err := New(4, Config{})
	require.NoError(t, err)
	cfg := ix.Config()
	assert.Equal(t, DefaultM, cfg.M)
	assert.Equal(t, DefaultEfConstruction, cfg.EfConstruction)
	assert.Equal(t, DefaultEfSearch, cfg.EfSearch)
	assert.Equal(t, vectormath.MetricCosine, cfg.Metric)
}

func TestInsertAndSearchThreePoints(t *testing.T) {
	ix := euclideanIndex(t, 2)
	require.NoError(t, ix.Insert("A", []float32{0, 0}))
	require.NoError(t, ix.Insert("B", []float32{1, 0}))
	require.NoError(t, ix.Insert("C", []float32{5, 5}))

	results, err := ix.Search([]float32{0, 0.1}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].ID)
	assert.InDelta(t, 0.01, results[0].Distance, 1e-9)
}

func TestSearchSelfHasZeroDistance(t *testing.T) {
	ix := euclideanIndex(t, 3)
	for i := 0; i < 20; i++ {
		v := []float32{float32(i), float32(i % 5), float32(i % 3)}
		require.NoError(t, ix.Insert(fmt.Sprintf("v%02d", i), v))
	}
	results, err := ix.Search([]float32{7, 2, 1}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v07", results[0].ID)
	assert.Equal(t, 0.0, results[0].Distance)
}

func TestInsertDuplicateID(t *testing.T) {
	ix := euclideanIndex(t, 2)
	require.NoError(t, ix.Insert("a", []float32{1, 2}))
	err := ix.Insert("a", []float32{3, 4})
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeDuplicateID, qerrors.GetCode(err))
	assert.Equal(t, 1, ix.Size())

	// The original vector is untouched.
	v, ok := ix.Vector("a")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2}, v)
}

func TestInsertDimensionMismatchLeavesIndexUnchanged(t *testing.T) {
	ix := euclideanIndex(t, 2)
	require.NoError(t, ix.Insert("a", []float32{1, 2}))

	err := ix.Insert("b", []float32{1, 2, 3})
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeDimensionMismatch, qerrors.GetCode(err))
	assert.Equal(t, 1, ix.Size())
	assert.False(t, ix.Contains("b"))
}

func TestSearchDimensionMismatch(t *testing.T) {
	ix := euclideanIndex(t, 2)
	require.NoError(t, ix.Insert("a", []float32{1, 2}))

	_, err := ix.Search([]float32{1}, 1, 0)
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeDimensionMismatch, qerrors.GetCode(err))
}

func TestSearchEmptyIndex(t *testing.T) {
	ix := euclideanIndex(t, 2)
	results, err := ix.Search([]float32{0, 0}, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchInvalidK(t *testing.T) {
	ix := euclideanIndex(t, 2)
	require.NoError(t, ix.Insert("a", []float32{1, 2}))
	_, err := ix.Search([]float32{1, 2}, 0, 0)
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeInvalidOptions, qerrors.GetCode(err))
}

func TestSearchKLargerThanIndex(t *testing.T) {
	ix := euclideanIndex(t, 2)
	require.NoError(t, ix.Insert("a", []float32{0, 0}))
	require.NoError(t, ix.Insert("b", []float32{1, 0}))

	results, err := ix.Search([]float32{0, 0}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchTieBreaksByID(t *testing.T) {
	ix := euclideanIndex(t, 2)
	// Equidistant points from the origin.
	require.NoError(t, ix.Insert("zz", []float32{1, 0}))
	require.NoError(t, ix.Insert("aa", []float32{0, 1}))
	require.NoError(t, ix.Insert("mm", []float32{-1, 0}))

	results, err := ix.Search([]float32{0, 0}, 3, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "aa", results[0].ID)
	assert.Equal(t, "mm", results[1].ID)
	assert.Equal(t, "zz", results[2].ID)
}

func TestCosineNormalizesOnInsert(t *testing.T) {
	ix, err := New(2, Config{Metric: vectormath.MetricCosine})
	require.NoError(t, err)
	require.NoError(t, ix.Insert("a", []float32{3, 4}))

	v, ok := ix.Vector("a")
	require.True(t, ok)
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)

	// Same direction, different magnitude means distance ~0.
	results, err := ix.Search([]float32{30, 40}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
}

func TestDelete(t *testing.T) {
	ix := euclideanIndex(t, 2)
	require.NoError(t, ix.Insert("a", []float32{0, 0}))
	require.NoError(t, ix.Insert("b", []float32{1, 0}))
	require.NoError(t, ix.Insert("c", []float32{2, 0}))

	assert.False(t, ix.Delete("nope"))
	assert.True(t, ix.Delete("b"))
	assert.False(t, ix.Delete("b"))
	assert.Equal(t, 2, ix.Size())

	results, err := ix.Search([]float32{1, 0}, 3, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NotEqual(t, "b", r.ID)
	}
}

func TestDeleteEntryPointReelects(t *testing.T) {
	ix := euclideanIndex(t, 2)
	for i := 0; i < 50; i++ {
		require.NoError(t, ix.Insert(fmt.Sprintf("n%02d", i), []float32{float32(i), 0}))
	}
	ep, ok := ix.EntryPoint()
	require.True(t, ok)

	assert.True(t, ix.Delete(ep))
	newEP, ok := ix.EntryPoint()
	require.True(t, ok)
	assert.NotEqual(t, ep, newEP)
	assert.Equal(t, ix.nodes[ix.entry].level, ix.MaxLevel())

	// The graph still answers queries.
	results, err := ix.Search([]float32{10, 0}, 5, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestDeleteLastNodeEmptiesIndex(t *testing.T) {
	ix := euclideanIndex(t, 2)
	require.NoError(t, ix.Insert("only", []float32{1, 1}))
	assert.True(t, ix.Delete("only"))

	_, ok := ix.EntryPoint()
	assert.False(t, ok)
	assert.Equal(t, -1, ix.MaxLevel())
	assert.Equal(t, 0, ix.Size())

	// Slot reuse after deletion behaves like a fresh insert.
	require.NoError(t, ix.Insert("again", []float32{2, 2}))
	assert.Equal(t, 1, ix.Size())
	results, err := ix.Search([]float32{2, 2}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "again", results[0].ID)
}

func TestDeleteRemovesDanglingInEdges(t *testing.T) {
	ix := euclideanIndex(t, 2)
	for i := 0; i < 100; i++ {
		require.NoError(t, ix.Insert(fmt.Sprintf("n%03d", i), []float32{float32(i % 10), float32(i / 10)}))
	}
	for i := 0; i < 100; i += 3 {
		require.True(t, ix.Delete(fmt.Sprintf("n%03d", i)))
	}
	for slot, n := range ix.nodes {
		if n == nil {
			continue
		}
		for l := 0; l <= n.level; l++ {
			for _, nb := range n.neighbors[l] {
				require.NotNil(t, ix.nodes[nb], "node %d layer %d references freed slot %d", slot, l, nb)
			}
		}
	}
}

func TestRecallOnRandomVectors(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ix := euclideanIndex(t, 8)

	vecs := make(map[string][]float32, 200)
	for i := 0; i < 200; i++ {
		v := make([]float32, 8)
		for j := range v {
			v[j] = rng.Float32()
		}
		id := fmt.Sprintf("v%03d", i)
		vecs[id] = v
		require.NoError(t, ix.Insert(id, v))
	}

	// Querying a stored vector must find it at distance 0.
	hits := 0
	for id, v := range vecs {
		results, err := ix.Search(v, 1, 100)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		if results[0].ID == id {
			hits++
		}
	}
	assert.GreaterOrEqual(t, hits, 195, "self-recall should be near perfect")
}

func TestQuantizedSearchReranks(t *testing.T) {
	ix, err := New(4, Config{
		Metric:   vectormath.MetricEuclidean,
		Quantize: true,
	})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		v := make([]float32, 4)
		for j := range v {
			v[j] = rng.Float32() * 10
		}
		require.NoError(t, ix.Insert(fmt.Sprintf("q%03d", i), v))
	}
	require.NoError(t, ix.Insert("target", []float32{100, 100, 100, 100}))

	results, err := ix.Search([]float32{99, 99, 99, 99}, 3, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "target", results[0].ID)
	// Reranked distances are exact, not approximations.
	assert.InDelta(t, 4.0, results[0].Distance, 1e-3)
}

func TestQuantizedSearchSmallRerankStillReturnsK(t *testing.T) {
	ix, err := New(2, Config{
		Metric:           vectormath.MetricEuclidean,
		Quantize:         true,
		RerankCandidates: 1,
	})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, ix.Insert(fmt.Sprintf("p%d", i), []float32{float32(i), float32(i)}))
	}

	results, err := ix.Search([]float32{0, 0}, 3, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "p0", results[0].ID)
	assert.Equal(t, "p1", results[1].ID)
	assert.Equal(t, "p2", results[2].ID)
}

func TestRebuildPreservesContents(t *testing.T) {
	ix := euclideanIndex(t, 2)
	for i := 0; i < 60; i++ {
		require.NoError(t, ix.Insert(fmt.Sprintf("r%02d", i), []float32{float32(i), float32(-i)}))
	}
	for i := 0; i < 60; i += 2 {
		require.True(t, ix.Delete(fmt.Sprintf("r%02d", i)))
	}

	require.NoError(t, ix.Rebuild())
	assert.Equal(t, 30, ix.Size())

	results, err := ix.Search([]float32{31, -31}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "r31", results[0].ID)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ix := euclideanIndex(t, 3)
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 80; i++ {
		v := []float32{rng.Float32(), rng.Float32(), rng.Float32()}
		require.NoError(t, ix.Insert(fmt.Sprintf("s%03d", i), v))
	}

	var first bytes.Buffer
	require.NoError(t, ix.WriteSnapshot(&first))

	restored, err := ReadSnapshot(bytes.NewReader(first.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, ix.Size(), restored.Size())

	ep, _ := ix.EntryPoint()
	rep, _ := restored.EntryPoint()
	assert.Equal(t, ep, rep)
	assert.Equal(t, ix.MaxLevel(), restored.MaxLevel())

	// The serialized form is canonical (IDs and neighbor sets sorted), so a
	// structurally identical restore reserializes to identical bytes.
	var second bytes.Buffer
	require.NoError(t, restored.WriteSnapshot(&second))
	assert.Equal(t, first.String(), second.String())

	// And it answers identically.
	q := []float32{0.5, 0.5, 0.5}
	want, err := ix.Search(q, 10, 0)
	require.NoError(t, err)
	got, err := restored.Search(q, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSnapshotQuantizedRecomputesCodes(t *testing.T) {
	ix, err := New(2, Config{Metric: vectormath.MetricEuclidean, Quantize: true})
	require.NoError(t, err)
	require.NoError(t, ix.Insert("a", []float32{1, 2}))
	require.NoError(t, ix.Insert("b", []float32{3, 4}))

	var buf bytes.Buffer
	require.NoError(t, ix.WriteSnapshot(&buf))
	restored, err := ReadSnapshot(&buf)
	require.NoError(t, err)

	for _, n := range restored.nodes {
		if n == nil {
			continue
		}
		assert.Len(t, n.codes, 2)
		assert.NotZero(t, n.scale)
	}
}

func TestReadSnapshotRejectsBadVersion(t *testing.T) {
	raw := `{"version":"2.0","dimension":2,"config":{"m":16,"ef_construction":200,"ef_search":50,"metric":"euclidean"},"max_level":-1,"nodes":[]}`
	_, err := ReadSnapshot(strings.NewReader(raw))
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeSnapshotVersion, qerrors.GetCode(err))
}

func TestReadSnapshotRejectsCorruptJSON(t *testing.T) {
	_, err := ReadSnapshot(strings.NewReader("{not json"))
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeCorruptSnapshot, qerrors.GetCode(err))
}

func TestReadSnapshotRejectsUnknownNeighbor(t *testing.T) {
	raw := `{"version":"1.0","dimension":1,"config":{"m":16,"ef_construction":200,"ef_search":50,"metric":"euclidean"},"entry_point":"a","max_level":0,"nodes":[{"id":"a","level":0,"layers":[{"level":0,"neighbors":["ghost"]}]}],"vectors":[{"id":"a","data":[1]}]}`
	_, err := ReadSnapshot(strings.NewReader(raw))
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeCorruptSnapshot, qerrors.GetCode(err))
}

func TestSaveAndLoadFile(t *testing.T) {
	ix := euclideanIndex(t, 2)
	require.NoError(t, ix.Insert("a", []float32{1, 0}))
	require.NoError(t, ix.Insert("b", []float32{0, 1}))

	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, ix.SaveFile(path))

	restored, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Size())
	assert.True(t, restored.Contains("a"))
	assert.True(t, restored.Contains("b"))
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeCorruptSnapshot, qerrors.GetCode(err))
}

func TestRandomLevelDistribution(t *testing.T) {
	ix := euclideanIndex(t, 2)
	counts := make(map[int]int)
	for i := 0; i < 10000; i++ {
		counts[ix.randomLevel()]++
	}
	// With mL = 1/ln(16), roughly 93-94% of draws land on level 0.
	assert.Greater(t, counts[0], 9000)
	assert.Less(t, counts[0], 9700)
}
