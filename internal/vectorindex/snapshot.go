package vectorindex

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	qerrors "github.com/quadfuse/quadfuse/internal/errors"
	"github.com/quadfuse/quadfuse/internal/vectormath"
)

// SnapshotVersion is the current serialization format version. Loading
// rejects snapshots with a different major version.
const SnapshotVersion = "1.0"

// snapshotFile is the on-disk JSON layout. Neighbor references are external
// IDs so the format is independent of arena slot assignment; quantized codes
// are recomputed on load.
type snapshotFile struct {
	Version    string           `json:"version"`
	Dimension  int              `json:"dimension"`
	Config     snapshotConfig   `json:"config"`
	EntryPoint string           `json:"entry_point,omitempty"`
	MaxLevel   int              `json:"max_level"`
	Nodes      []snapshotNode   `json:"nodes"`
	Vectors    []snapshotVector `json:"vectors"`
}

type snapshotConfig struct {
	M                int               `json:"m"`
	EfConstruction   int               `json:"ef_construction"`
	EfSearch         int               `json:"ef_search"`
	Metric           vectormath.Metric `json:"metric"`
	Quantize         bool              `json:"quantize,omitempty"`
	RerankCandidates int               `json:"rerank_candidates,omitempty"`
}

type snapshotNode struct {
	ID     string              `json:"id"`
	Level  int                 `json:"level"`
	Layers []snapshotAdjacency `json:"layers"`
}

type snapshotVector struct {
	ID   string    `json:"id"`
	Data []float32 `json:"data"`
}

type snapshotAdjacency struct {
	Level     int      `json:"level"`
	Neighbors []string `json:"neighbors"`
}

// WriteSnapshot serializes the index as JSON to w.
func (ix *Index) WriteSnapshot(w io.Writer) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	snap := snapshotFile{
		Version:   SnapshotVersion,
		Dimension: ix.dim,
		Config: snapshotConfig{
			M:                ix.cfg.M,
			EfConstruction:   ix.cfg.EfConstruction,
			EfSearch:         ix.cfg.EfSearch,
			Metric:           ix.cfg.Metric,
			Quantize:         ix.cfg.Quantize,
			RerankCandidates: ix.cfg.RerankCandidates,
		},
		MaxLevel: ix.maxLevel,
		Nodes:    make([]snapshotNode, 0, ix.count),
		Vectors:  make([]snapshotVector, 0, ix.count),
	}
	if ix.entry >= 0 {
		snap.EntryPoint = ix.nodes[ix.entry].id
	}

	for _, n := range ix.nodes {
		if n == nil {
			continue
		}
		sn := snapshotNode{
			ID:     n.id,
			Level:  n.level,
			Layers: make([]snapshotAdjacency, n.level+1),
		}
		for l := 0; l <= n.level; l++ {
			ids := make([]string, len(n.neighbors[l]))
			for i, s := range n.neighbors[l] {
				ids[i] = ix.nodes[s].id
			}
			sort.Strings(ids)
			sn.Layers[l] = snapshotAdjacency{Level: l, Neighbors: ids}
		}
		snap.Nodes = append(snap.Nodes, sn)
		snap.Vectors = append(snap.Vectors, snapshotVector{ID: n.id, Data: n.vector})
	}
	sort.Slice(snap.Nodes, func(i, j int) bool { return snap.Nodes[i].ID < snap.Nodes[j].ID })
	sort.Slice(snap.Vectors, func(i, j int) bool { return snap.Vectors[i].ID < snap.Vectors[j].ID })

	enc := json.NewEncoder(w)
	if err := enc.Encode(&snap); err != nil {
		return qerrors.New(qerrors.ErrCodeInternal, "failed to encode snapshot", err)
	}
	return nil
}

// ReadSnapshot reconstructs an index from a snapshot produced by
// WriteSnapshot. The restored graph is structurally identical: every node
// keeps its level and per-layer adjacency, and the entry point is preserved.
func ReadSnapshot(r io.Reader) (*Index, error) {
	var snap snapshotFile
	dec := json.NewDecoder(r)
	if err := dec.Decode(&snap); err != nil {
		return nil, qerrors.New(qerrors.ErrCodeCorruptSnapshot, "failed to decode snapshot", err)
	}
	if major(snap.Version) != major(SnapshotVersion) {
		return nil, qerrors.Newf(qerrors.ErrCodeSnapshotVersion,
			"unsupported snapshot version %q", snap.Version).
			WithDetail("supported", SnapshotVersion)
	}

	ix, err := New(snap.Dimension, Config{
		M:                snap.Config.M,
		EfConstruction:   snap.Config.EfConstruction,
		EfSearch:         snap.Config.EfSearch,
		Metric:           snap.Config.Metric,
		Quantize:         snap.Config.Quantize,
		RerankCandidates: snap.Config.RerankCandidates,
	})
	if err != nil {
		return nil, err
	}

	vectors := make(map[string][]float32, len(snap.Vectors))
	for _, sv := range snap.Vectors {
		if len(sv.Data) != snap.Dimension {
			return nil, qerrors.New(qerrors.ErrCodeCorruptSnapshot, "snapshot vector dimension mismatch", nil).
				WithDetail("id", sv.ID)
		}
		vectors[sv.ID] = sv.Data
	}

	// First pass assigns slots so the second pass can resolve neighbor IDs.
	for _, sn := range snap.Nodes {
		vec, ok := vectors[sn.ID]
		if !ok {
			return nil, qerrors.New(qerrors.ErrCodeCorruptSnapshot, "snapshot node has no vector", nil).
				WithDetail("id", sn.ID)
		}
		if _, dup := ix.slots[sn.ID]; dup {
			return nil, qerrors.New(qerrors.ErrCodeCorruptSnapshot, "snapshot contains duplicate ID", nil).
				WithDetail("id", sn.ID)
		}
		n := newNode(sn.ID, sn.Level, vec)
		if ix.cfg.Quantize {
			n.codes, n.scale = quantizeVector(vec)
		}
		ix.slots[sn.ID] = ix.alloc(n)
		ix.count++
	}

	for _, sn := range snap.Nodes {
		n := ix.nodes[ix.slots[sn.ID]]
		for _, layer := range sn.Layers {
			if layer.Level < 0 || layer.Level > n.level {
				return nil, qerrors.New(qerrors.ErrCodeCorruptSnapshot, "snapshot layer exceeds node level", nil).
					WithDetail("id", sn.ID).
					WithDetail("layer", strconv.Itoa(layer.Level))
			}
			links := make([]uint32, 0, len(layer.Neighbors))
			for _, nbID := range layer.Neighbors {
				slot, ok := ix.slots[nbID]
				if !ok {
					return nil, qerrors.New(qerrors.ErrCodeCorruptSnapshot, "snapshot references unknown neighbor", nil).
						WithDetail("id", sn.ID).
						WithDetail("neighbor", nbID)
				}
				links = append(links, slot)
			}
			n.neighbors[layer.Level] = links
		}
	}

	if snap.EntryPoint != "" {
		slot, ok := ix.slots[snap.EntryPoint]
		if !ok {
			return nil, qerrors.New(qerrors.ErrCodeCorruptSnapshot, "snapshot entry point not among nodes", nil).
				WithDetail("entry_point", snap.EntryPoint)
		}
		ix.entry = int64(slot)
		ix.maxLevel = ix.nodes[slot].level
	} else if ix.count > 0 {
		return nil, qerrors.New(qerrors.ErrCodeCorruptSnapshot, "snapshot has nodes but no entry point", nil)
	}
	return ix, nil
}

// SaveFile writes a snapshot to path atomically: the JSON lands in a temp
// file in the same directory, then renames over the target. A sibling .lock
// file serializes writers across processes.
func (ix *Index) SaveFile(path string) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return qerrors.New(qerrors.ErrCodeInternal, "failed to acquire snapshot lock", err)
	}
	defer lock.Unlock()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return qerrors.New(qerrors.ErrCodeInternal, "failed to create snapshot temp file", err)
	}
	defer os.Remove(tmp.Name())

	if err := ix.WriteSnapshot(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return qerrors.New(qerrors.ErrCodeInternal, "failed to flush snapshot", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return qerrors.New(qerrors.ErrCodeInternal, "failed to replace snapshot", err)
	}
	return nil
}

// LoadFile reads a snapshot from path under a shared lock.
func LoadFile(path string) (*Index, error) {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, qerrors.New(qerrors.ErrCodeInternal, "failed to acquire snapshot lock", err)
	}
	defer lock.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, qerrors.New(qerrors.ErrCodeCorruptSnapshot, "failed to open snapshot", err)
	}
	defer f.Close()
	return ReadSnapshot(f)
}

func major(version string) string {
	if i := strings.IndexByte(version, '.'); i >= 0 {
		return version[:i]
	}
	return version
}
