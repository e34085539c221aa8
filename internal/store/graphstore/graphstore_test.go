package graphstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildGraph(t *testing.T) *Store {
	t.Helper()
	s := New()
	// a -> b -> c -> d, plus a side branch b -> e.
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, s.AddNode(id, map[string]string{"name": "node " + id}))
	}
	require.NoError(t, s.AddEdge("a", "b", "links"))
	require.NoError(t, s.AddEdge("b", "c", "links"))
	require.NoError(t, s.AddEdge("c", "d", "links"))
	require.NoError(t, s.AddEdge("b", "e", "mentions"))
	return s
}

func TestAddEdgeRequiresNodes(t *testing.T) {
	s := New()
	require.NoError(t, s.AddNode("a", nil))

	err := s.AddEdge("a", "ghost", "links")
	require.Error(t, err)
	err = s.AddEdge("ghost", "a", "links")
	require.Error(t, err)
}

func TestAddNodeEmptyID(t *testing.T) {
	require.Error(t, New().AddNode("", nil))
}

func TestTraverseDepthBounds(t *testing.T) {
	s := buildGraph(t)
	ctx := context.Background()

	visits, err := s.Traverse(ctx, []string{"a"}, 0)
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.Equal(t, "a", visits[0].ID)
	assert.Equal(t, 0, visits[0].Hops)

	visits, err = s.Traverse(ctx, []string{"a"}, 2)
	require.NoError(t, err)
	ids := make(map[string]int)
	for _, v := range visits {
		ids[v.ID] = v.Hops
	}
	assert.Equal(t, map[string]int{"a": 0, "b": 1, "c": 2, "e": 2}, ids)
}

func TestTraverseFollowsReverseEdges(t *testing.T) {
	s := buildGraph(t)
	visits, err := s.Traverse(context.Background(), []string{"c"}, 1)
	require.NoError(t, err)

	ids := make(map[string]int)
	for _, v := range visits {
		ids[v.ID] = v.Hops
	}
	// b reaches c, c reaches d.
	assert.Equal(t, map[string]int{"c": 0, "b": 1, "d": 1}, ids)
}

func TestTraverseOrderingDeterministic(t *testing.T) {
	s := buildGraph(t)
	first, err := s.Traverse(context.Background(), []string{"a"}, 3)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := s.Traverse(context.Background(), []string{"a"}, 3)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestTraverseSkipsUnknownSeeds(t *testing.T) {
	s := buildGraph(t)
	visits, err := s.Traverse(context.Background(), []string{"ghost", "a"}, 1)
	require.NoError(t, err)
	require.NotEmpty(t, visits)
	assert.Equal(t, "a", visits[0].ID)
}

func TestTraverseCancelled(t *testing.T) {
	s := buildGraph(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Traverse(ctx, []string{"a"}, 3)
	require.Error(t, err)
}

func TestFindSeeds(t *testing.T) {
	s := New()
	require.NoError(t, s.AddNode("user-alice", map[string]string{"role": "admin"}))
	require.NoError(t, s.AddNode("user-bob", map[string]string{"role": "viewer"}))
	require.NoError(t, s.AddNode("doc-1", map[string]string{"title": "Alice onboarding"}))

	assert.Equal(t, []string{"doc-1", "user-alice"}, s.FindSeeds("alice"))
	assert.Equal(t, []string{"user-alice"}, s.FindSeeds("admin"))
	assert.Empty(t, s.FindSeeds(""))
	assert.Empty(t, s.FindSeeds("zzz"))
}

func TestDuplicateEdgeIgnored(t *testing.T) {
	s := buildGraph(t)
	require.NoError(t, s.AddEdge("a", "b", "links"))

	visits, err := s.Traverse(context.Background(), []string{"a"}, 1)
	require.NoError(t, err)
	assert.Len(t, visits, 2)
}

func TestSaveAndLoadFile(t *testing.T) {
	s := buildGraph(t)
	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, s.SaveFile(path))

	loaded := New()
	require.NoError(t, loaded.LoadFile(path))
	assert.Equal(t, s.Size(), loaded.Size())
	assert.Equal(t, s.Edges(), loaded.Edges())

	visits, err := loaded.Traverse(context.Background(), []string{"a"}, 2)
	require.NoError(t, err)
	assert.Len(t, visits, 4)
}

func TestLoadFileRejectsDanglingEdge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	raw := `{"nodes":[{"id":"a"}],"edges":[{"from":"a","to":"ghost","relation":"links"}]}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	err := New().LoadFile(path)
	require.Error(t, err)
}

func TestLoadFileFailureKeepsContents(t *testing.T) {
	s := buildGraph(t)
	size := s.Size()
	edges := s.Edges()

	path := filepath.Join(t.TempDir(), "graph.json")
	raw := `{"nodes":[{"id":"x"}],"edges":[{"from":"x","to":"ghost","relation":"links"}]}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	require.Error(t, s.LoadFile(path))

	// A failed load leaves the previous graph in place.
	assert.Equal(t, size, s.Size())
	assert.Equal(t, edges, s.Edges())
	_, ok := s.Node("x")
	assert.False(t, ok)
}
