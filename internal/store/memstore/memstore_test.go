package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/quadfuse/quadfuse/internal/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(Record{
		ID:        "m1",
		Namespace: "default",
		Content:   "deployed the staging cluster",
		Salience:  0.9,
	}))

	rec, err := s.Get("default", "m1")
	require.NoError(t, err)
	assert.Equal(t, "deployed the staging cluster", rec.Content)
	assert.Equal(t, 0.9, rec.Salience)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.False(t, rec.AccessedAt.IsZero())
}

func TestPutValidation(t *testing.T) {
	s := openTestStore(t)
	require.Error(t, s.Put(Record{Namespace: "default", Content: "no id"}))
	require.Error(t, s.Put(Record{ID: "x", Content: "no namespace"}))
}

func TestPutDefaultsSalience(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(Record{ID: "m1", Namespace: "ns", Content: "text"}))
	rec, err := s.Get("ns", "m1")
	require.NoError(t, err)
	assert.Equal(t, DefaultSalience, rec.Salience)

	require.NoError(t, s.Put(Record{ID: "m2", Namespace: "ns", Content: "text", Salience: 3}))
	rec, err = s.Get("ns", "m2")
	require.NoError(t, err)
	assert.Equal(t, 1.0, rec.Salience)
}

func TestGetUnknownID(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get("default", "ghost")
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeUnknownID, qerrors.GetCode(err))
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(Record{ID: "m1", Namespace: "ns", Content: "bye"}))
	require.NoError(t, s.Delete("ns", "m1"))

	_, err := s.Get("ns", "m1")
	require.Error(t, err)

	// Deleting again is a no-op.
	require.NoError(t, s.Delete("ns", "m1"))
}

func TestSearchScoresByOverlapAndSalience(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(Record{ID: "full", Namespace: "ns", Content: "database migration finished", Salience: 1.0}))
	require.NoError(t, s.Put(Record{ID: "partial", Namespace: "ns", Content: "migration started", Salience: 1.0}))
	require.NoError(t, s.Put(Record{ID: "faint", Namespace: "ns", Content: "database migration finished", Salience: 0.2}))
	require.NoError(t, s.Put(Record{ID: "unrelated", Namespace: "ns", Content: "lunch order", Salience: 1.0}))

	hits, err := s.Search(context.Background(), "ns", "database migration", 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "full", hits[0].Record.ID)
	assert.Equal(t, 1.0, hits[0].Score)
	assert.Equal(t, "partial", hits[1].Record.ID)
	assert.Equal(t, 0.5, hits[1].Score)
	assert.Equal(t, "faint", hits[2].Record.ID)
	assert.InDelta(t, 0.2, hits[2].Score, 1e-12)
}

func TestSearchScopedToNamespace(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(Record{ID: "a", Namespace: "ns1", Content: "shared term"}))
	require.NoError(t, s.Put(Record{ID: "b", Namespace: "ns2", Content: "shared term"}))

	hits, err := s.Search(context.Background(), "ns1", "shared", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].Record.ID)
}

func TestSearchEmptyQuery(t *testing.T) {
	s := openTestStore(t)
	hits, err := s.Search(context.Background(), "ns", "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchLimit(t *testing.T) {
	s := openTestStore(t)
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.Put(Record{ID: id, Namespace: "ns", Content: "common content", Salience: 0.5}))
	}
	hits, err := s.Search(context.Background(), "ns", "common", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	// Equal scores tie-break by ID.
	assert.Equal(t, "a", hits[0].Record.ID)
	assert.Equal(t, "b", hits[1].Record.ID)
}

func TestCount(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(Record{ID: "a", Namespace: "ns", Content: "x"}))
	require.NoError(t, s.Put(Record{ID: "b", Namespace: "ns", Content: "y"}))
	require.NoError(t, s.Put(Record{ID: "c", Namespace: "other", Content: "z"}))

	n, err := s.Count("ns")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
