// Package memstore is the episodic-memory backend: namespaced records with
// salience weighting, persisted in Badger. The memory retrieval source scans
// one namespace and scores records by query-term overlap weighted by
// salience.
package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	qerrors "github.com/quadfuse/quadfuse/internal/errors"
)

// DefaultSalience is assigned to records stored without an explicit
// salience.
const DefaultSalience = 0.5

const keyPrefix = "mem/"

// Record is one episodic memory entry.
type Record struct {
	ID         string    `json:"id"`
	Namespace  string    `json:"namespace"`
	Content    string    `json:"content"`
	Salience   float64   `json:"salience"`
	CreatedAt  time.Time `json:"created_at"`
	AccessedAt time.Time `json:"accessed_at"`
}

// Scored is a search hit with its relevance score.
type Scored struct {
	Record Record
	Score  float64
}

// Store wraps a Badger database.
type Store struct {
	db *badger.DB
}

// Open opens or creates a store at path. An empty path opens an in-memory
// store, useful for tests and ephemeral deployments.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, qerrors.New(qerrors.ErrCodeSourceUnavailable, "failed to open memory store", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func recordKey(namespace, id string) []byte {
	return []byte(keyPrefix + namespace + "/" + id)
}

// Put stores a record. Empty salience defaults to DefaultSalience; salience
// is clamped to [0,1]. CreatedAt is set on first write.
func (s *Store) Put(rec Record) error {
	if rec.ID == "" || rec.Namespace == "" {
		return qerrors.New(qerrors.ErrCodeInvalidOptions, "record ID and namespace must not be empty", nil)
	}
	if rec.Salience <= 0 {
		rec.Salience = DefaultSalience
	} else if rec.Salience > 1 {
		rec.Salience = 1
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(&rec)
	if err != nil {
		return qerrors.New(qerrors.ErrCodeInternal, "failed to encode record", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.Namespace, rec.ID), data)
	})
	if err != nil {
		return qerrors.New(qerrors.ErrCodeSourceFailed, "failed to store record", err)
	}
	return nil
}

// Get fetches a record and stamps its access time.
func (s *Store) Get(namespace, id string) (Record, error) {
	var rec Record
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(namespace, id))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}
		rec.AccessedAt = time.Now().UTC()
		data, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		return txn.Set(recordKey(namespace, id), data)
	})
	if err == badger.ErrKeyNotFound {
		return Record{}, qerrors.New(qerrors.ErrCodeUnknownID, "memory record not found", err).
			WithDetail("id", id).
			WithDetail("namespace", namespace)
	}
	if err != nil {
		return Record{}, qerrors.New(qerrors.ErrCodeSourceFailed, "failed to read record", err)
	}
	return rec, nil
}

// Delete removes a record. Deleting an absent record is a no-op.
func (s *Store) Delete(namespace, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(namespace, id))
	})
	if err != nil {
		return qerrors.New(qerrors.ErrCodeSourceFailed, "failed to delete record", err)
	}
	return nil
}

// Count returns the number of records in a namespace.
func (s *Store) Count(namespace string) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix + namespace + "/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, qerrors.New(qerrors.ErrCodeSourceFailed, "failed to scan namespace", err)
	}
	return count, nil
}

// Search scans the namespace and scores each record by the fraction of
// query terms its content contains, weighted by salience. Results are
// ordered score descending, ties by ascending ID, truncated to limit.
func (s *Store) Search(ctx context.Context, namespace, query string, limit int) ([]Scored, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 || namespace == "" {
		return nil, nil
	}

	var hits []Scored
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix + namespace + "/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}

			content := strings.ToLower(rec.Content)
			matched := 0
			for _, t := range terms {
				if strings.Contains(content, t) {
					matched++
				}
			}
			if matched == 0 {
				continue
			}
			overlap := float64(matched) / float64(len(terms))
			hits = append(hits, Scored{Record: rec, Score: overlap * rec.Salience})
		}
		return nil
	})
	if err != nil {
		return nil, qerrors.New(qerrors.ErrCodeSourceFailed, "memory search failed", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Record.ID < hits[j].Record.ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
