// Package vectorindex implements an HNSW (hierarchical navigable small world)
// approximate nearest-neighbor index over dense float32 vectors.
//
// Nodes live in a dense arena of slots with a free list, so neighbor links
// are integer slot references rather than string IDs. Optional int8 scalar
// quantization trades a compressed layer-0 beam search for a full-precision
// rerank of the best survivors.
package vectorindex

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"
	"sync"

	qerrors "github.com/quadfuse/quadfuse/internal/errors"
	"github.com/quadfuse/quadfuse/internal/vectormath"
)

// Result is a single search hit: the external ID and its distance from the
// query under the configured metric.
type Result struct {
	ID       string
	Distance float64
}

// Index is a thread-safe HNSW index with a fixed dimension.
type Index struct {
	mu sync.RWMutex

	dim    int
	cfg    Config
	m      int
	m0     int
	mL     float64
	distFn vectormath.DistanceFunc

	// Arena. nodes[slot] is nil for freed slots; free holds reusable slots.
	nodes []*node
	free  []uint32
	slots map[string]uint32

	entry    int64 // arena slot of the entry point, -1 when empty
	maxLevel int   // level of the entry point, -1 when empty
	count    int

	rng *rand.Rand
}

// New creates an empty index for vectors of the given dimension.
func New(dim int, cfg Config) (*Index, error) {
	if dim <= 0 {
		return nil, qerrors.Newf(qerrors.ErrCodeInvalidOptions, "vector dimension must be positive, got %d", dim)
	}
	cfg = cfg.withDefaults()
	distFn, err := vectormath.ForMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}
	return &Index{
		dim:      dim,
		cfg:      cfg,
		m:        cfg.M,
		m0:       cfg.m0(),
		mL:       cfg.levelFactor(),
		distFn:   distFn,
		slots:    make(map[string]uint32),
		entry:    -1,
		maxLevel: -1,
		rng:      rand.New(rand.NewSource(rand.Int63())),
	}, nil
}

// Dimension returns the fixed vector dimension.
func (ix *Index) Dimension() int { return ix.dim }

// Config returns the effective configuration after defaults.
func (ix *Index) Config() Config { return ix.cfg }

// Size returns the number of live vectors.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.count
}

// Contains reports whether the ID is present.
func (ix *Index) Contains(id string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.slots[id]
	return ok
}

// Vector returns a copy of the stored vector for id. Cosine indexes return
// the L2-normalized form.
func (ix *Index) Vector(id string) ([]float32, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	slot, ok := ix.slots[id]
	if !ok {
		return nil, false
	}
	v := ix.nodes[slot].vector
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// IDs returns all live external IDs in unspecified order.
func (ix *Index) IDs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, 0, ix.count)
	for id := range ix.slots {
		out = append(out, id)
	}
	return out
}

// EntryPoint returns the current entry point ID, or false when empty.
func (ix *Index) EntryPoint() (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.entry < 0 {
		return "", false
	}
	return ix.nodes[ix.entry].id, true
}

// MaxLevel returns the level of the entry point, -1 when empty.
func (ix *Index) MaxLevel() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.maxLevel
}

// randomLevel draws a level from the exponential distribution
// floor(-ln(U) * mL) with U uniform on (0,1].
func (ix *Index) randomLevel() int {
	u := ix.rng.Float64()
	if u == 0 {
		u = math.SmallestNonzeroFloat64
	}
	return int(math.Floor(-math.Log(u) * ix.mL))
}

// Insert adds a vector under the given ID. The index is left unchanged on
// any error, including dimension mismatches and duplicate IDs.
func (ix *Index) Insert(id string, vector []float32) error {
	if id == "" {
		return qerrors.New(qerrors.ErrCodeInvalidOptions, "vector ID must not be empty", nil)
	}
	if len(vector) != ix.dim {
		return qerrors.Newf(qerrors.ErrCodeDimensionMismatch,
			"vector dimension %d does not match index dimension %d", len(vector), ix.dim)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, exists := ix.slots[id]; exists {
		return qerrors.New(qerrors.ErrCodeDuplicateID, "vector ID already present", nil).
			WithDetail("id", id)
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)
	if ix.cfg.Metric == vectormath.MetricCosine {
		vectormath.NormalizeL2(vec)
	}

	level := ix.randomLevel()
	n := newNode(id, level, vec)
	if ix.cfg.Quantize {
		n.codes, n.scale = quantizeVector(vec)
	}
	slot := ix.alloc(n)
	ix.slots[id] = slot
	ix.count++

	if ix.entry < 0 {
		ix.entry = int64(slot)
		ix.maxLevel = level
		return nil
	}

	cur := uint32(ix.entry)

	// Descend through layers above the new node's level with greedy
	// single-best moves.
	for l := ix.maxLevel; l > level; l-- {
		cur = ix.greedyStep(vec, cur, l)
	}

	// From min(level, maxLevel) down to 0, run the construction beam and
	// link bidirectionally.
	top := level
	if ix.maxLevel < top {
		top = ix.maxLevel
	}
	for l := top; l >= 0; l-- {
		cands := ix.searchLayer(cur, l, ix.cfg.EfConstruction, ix.fullDistTo(vec))
		maxConn := ix.m
		if l == 0 {
			maxConn = ix.m0
		}
		selected := ix.selectNeighbors(cands, maxConn)

		links := make([]uint32, len(selected))
		for i, c := range selected {
			links[i] = c.slot
		}
		n.neighbors[l] = links

		for _, c := range selected {
			nb := ix.nodes[c.slot]
			nb.neighbors[l] = append(nb.neighbors[l], slot)
			if len(nb.neighbors[l]) > maxConn {
				ix.pruneWorst(nb, l)
			}
		}
		if len(cands) > 0 {
			cur = cands[0].slot
		}
	}

	if level > ix.maxLevel {
		ix.maxLevel = level
		ix.entry = int64(slot)
	}
	return nil
}

// Delete removes the ID and every edge referencing it. Returns false when
// the ID is absent. Deleting the entry point re-elects the highest-level
// survivor, ties broken by ascending ID.
func (ix *Index) Delete(id string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	slot, ok := ix.slots[id]
	if !ok {
		return false
	}

	// Pruning can leave one-directional in-edges, so a full arena sweep is
	// required before the slot can be reused.
	for _, other := range ix.nodes {
		if other == nil || other == ix.nodes[slot] {
			continue
		}
		for l := 0; l <= other.level; l++ {
			other.removeNeighbor(l, slot)
		}
	}

	delete(ix.slots, id)
	ix.nodes[slot] = nil
	ix.free = append(ix.free, slot)
	ix.count--

	if ix.entry == int64(slot) {
		ix.reelectEntry()
	}
	return true
}

// reelectEntry picks the highest-level live node as the new entry point,
// breaking level ties by ascending ID. Caller holds the write lock.
func (ix *Index) reelectEntry() {
	ix.entry = -1
	ix.maxLevel = -1
	var bestID string
	for slot, n := range ix.nodes {
		if n == nil {
			continue
		}
		if n.level > ix.maxLevel || (n.level == ix.maxLevel && n.id < bestID) {
			ix.entry = int64(slot)
			ix.maxLevel = n.level
			bestID = n.id
		}
	}
}

// Search returns the k nearest IDs to the query, closest first, ties broken
// by ascending ID. ef overrides the configured beam width when positive and
// is clamped to at least k.
func (ix *Index) Search(query []float32, k, ef int) ([]Result, error) {
	if len(query) != ix.dim {
		return nil, qerrors.Newf(qerrors.ErrCodeDimensionMismatch,
			"query dimension %d does not match index dimension %d", len(query), ix.dim)
	}
	if k <= 0 {
		return nil, qerrors.Newf(qerrors.ErrCodeInvalidOptions, "k must be positive, got %d", k)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.entry < 0 {
		return nil, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if ix.cfg.Metric == vectormath.MetricCosine {
		vectormath.NormalizeL2(q)
	}

	if ef <= 0 {
		ef = ix.cfg.EfSearch
	}
	if ef < k {
		ef = k
	}

	cur := uint32(ix.entry)
	for l := ix.maxLevel; l > 0; l-- {
		cur = ix.greedyStep(q, cur, l)
	}

	var cands []candidate
	if ix.cfg.Quantize {
		cands = ix.searchQuantized(q, cur, k, ef)
	} else {
		cands = ix.searchLayer(cur, 0, ef, ix.fullDistTo(q))
	}

	ix.sortCandidates(cands)
	if len(cands) > k {
		cands = cands[:k]
	}
	out := make([]Result, len(cands))
	for i, c := range cands {
		out[i] = Result{ID: ix.nodes[c.slot].id, Distance: c.dist}
	}
	return out, nil
}

// searchQuantized runs the layer-0 beam in code space, then re-scores the
// best survivors against full-precision vectors.
func (ix *Index) searchQuantized(q []float32, start uint32, k, ef int) []candidate {
	codes, scale := quantizeVector(q)
	qq := quantizedQuery{codes: codes, scale: scale}
	metric := ix.cfg.Metric

	rerank := ix.cfg.RerankCandidates
	if rerank <= 0 {
		rerank = 2 * k
	}
	// Never re-rank fewer candidates than the caller asked for.
	if rerank < k {
		rerank = k
	}
	beam := ef
	if beam < rerank {
		beam = rerank
	}

	approx := ix.searchLayer(start, 0, beam, func(n *node) float64 {
		return quantizedDistance(metric, qq, n)
	})
	ix.sortCandidates(approx)
	if len(approx) > rerank {
		approx = approx[:rerank]
	}
	for i := range approx {
		d, _ := ix.distFn(q, ix.nodes[approx[i].slot].vector)
		approx[i].dist = d
	}
	return approx
}

// greedyStep descends a single layer: repeatedly move to the closest
// neighbor until no neighbor improves on the current node.
func (ix *Index) greedyStep(q []float32, start uint32, level int) uint32 {
	cur := start
	curDist, _ := ix.distFn(q, ix.nodes[cur].vector)
	for {
		improved := false
		n := ix.nodes[cur]
		if level <= n.level {
			for _, nb := range n.neighbors[level] {
				d, _ := ix.distFn(q, ix.nodes[nb].vector)
				if d < curDist {
					cur, curDist = nb, d
					improved = true
				}
			}
		}
		if !improved {
			return cur
		}
	}
}

// searchLayer is the beam search at a single layer. It expands the closest
// unexpanded candidate until the frontier cannot improve on the worst of ef
// results, and returns the results sorted closest first.
func (ix *Index) searchLayer(start uint32, level, ef int, distTo func(*node) float64) []candidate {
	visited := newBitset(len(ix.nodes))
	visited.set(start)

	startDist := distTo(ix.nodes[start])
	frontier := newMinHeap(ef)
	results := newMaxHeap(ef)
	heap.Push(frontier, candidate{slot: start, dist: startDist})
	heap.Push(results, candidate{slot: start, dist: startDist})

	for frontier.Len() > 0 {
		c := heap.Pop(frontier).(candidate)
		if results.Len() >= ef && c.dist > (*results)[0].dist {
			break
		}
		n := ix.nodes[c.slot]
		if level > n.level {
			continue
		}
		for _, nb := range n.neighbors[level] {
			if visited.has(nb) {
				continue
			}
			visited.set(nb)
			d := distTo(ix.nodes[nb])
			if results.Len() < ef || d < (*results)[0].dist {
				heap.Push(frontier, candidate{slot: nb, dist: d})
				heap.Push(results, candidate{slot: nb, dist: d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]candidate, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(candidate)
	}
	return out
}

// selectNeighbors applies the diversity heuristic: a candidate is kept only
// if it is closer to the new node than to every already-selected neighbor.
// If fewer than m survive, the discarded candidates refill the set in
// distance order.
func (ix *Index) selectNeighbors(cands []candidate, m int) []candidate {
	if len(cands) <= m {
		return cands
	}
	selected := make([]candidate, 0, m)
	discarded := make([]candidate, 0, len(cands))

	for _, c := range cands {
		if len(selected) >= m {
			break
		}
		keep := true
		for _, s := range selected {
			d, _ := ix.distFn(ix.nodes[c.slot].vector, ix.nodes[s.slot].vector)
			if d < c.dist {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c)
		} else {
			discarded = append(discarded, c)
		}
	}

	for _, c := range discarded {
		if len(selected) >= m {
			break
		}
		selected = append(selected, c)
	}
	return selected
}

// pruneWorst drops the farthest neighbor of n at the given layer.
func (ix *Index) pruneWorst(n *node, level int) {
	list := n.neighbors[level]
	worst := 0
	worstDist := -1.0
	for i, s := range list {
		d, _ := ix.distFn(n.vector, ix.nodes[s].vector)
		if d > worstDist {
			worst, worstDist = i, d
		}
	}
	list[worst] = list[len(list)-1]
	n.neighbors[level] = list[:len(list)-1]
}

// Rebuild reconstructs the graph from the live vectors. Levels are redrawn,
// so a rebuilt index answers equivalently but is not structurally identical.
func (ix *Index) Rebuild() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	type pair struct {
		id  string
		vec []float32
	}
	live := make([]pair, 0, ix.count)
	for _, n := range ix.nodes {
		if n != nil {
			live = append(live, pair{id: n.id, vec: n.vector})
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].id < live[j].id })

	fresh, err := New(ix.dim, ix.cfg)
	if err != nil {
		return err
	}
	for _, p := range live {
		// Vectors are already normalized for cosine; re-normalizing is
		// idempotent.
		if err := fresh.Insert(p.id, p.vec); err != nil {
			return qerrors.New(qerrors.ErrCodeInternal, "rebuild failed", err)
		}
	}

	ix.nodes = fresh.nodes
	ix.free = fresh.free
	ix.slots = fresh.slots
	ix.entry = fresh.entry
	ix.maxLevel = fresh.maxLevel
	ix.count = fresh.count
	return nil
}

func (ix *Index) alloc(n *node) uint32 {
	if len(ix.free) > 0 {
		slot := ix.free[len(ix.free)-1]
		ix.free = ix.free[:len(ix.free)-1]
		ix.nodes[slot] = n
		return slot
	}
	ix.nodes = append(ix.nodes, n)
	return uint32(len(ix.nodes) - 1)
}

func (ix *Index) fullDistTo(q []float32) func(*node) float64 {
	return func(n *node) float64 {
		d, _ := ix.distFn(q, n.vector)
		return d
	}
}

// sortCandidates orders by distance ascending, ties by ascending external ID
// for deterministic results.
func (ix *Index) sortCandidates(cands []candidate) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return ix.nodes[cands[i].slot].id < ix.nodes[cands[j].slot].id
	})
}
