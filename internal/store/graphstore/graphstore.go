// Package graphstore is an in-memory property graph with typed directed
// edges and bounded breadth-first traversal. It backs the graph retrieval
// source: query terms select seed nodes, BFS expands to a hop limit, and
// relevance decays with hop distance.
package graphstore

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"

	qerrors "github.com/quadfuse/quadfuse/internal/errors"
)

// Node is a graph vertex with free-form string properties.
type Node struct {
	ID    string            `json:"id"`
	Props map[string]string `json:"props,omitempty"`
}

// Edge is a typed directed edge.
type Edge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Relation string `json:"relation"`
}

// Visit is one node reached during traversal. Hops is the BFS distance from
// the nearest seed.
type Visit struct {
	ID   string
	Hops int
	Node Node
}

// Store is a thread-safe in-memory graph.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]Node
	// out[from][to] holds the relations of edges from -> to.
	out map[string]map[string][]string
}

// New creates an empty graph store.
func New() *Store {
	return &Store{
		nodes: make(map[string]Node),
		out:   make(map[string]map[string][]string),
	}
}

// AddNode inserts or replaces a node.
func (s *Store) AddNode(id string, props map[string]string) error {
	if id == "" {
		return qerrors.New(qerrors.ErrCodeInvalidOptions, "graph node ID must not be empty", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[id] = Node{ID: id, Props: props}
	return nil
}

// AddEdge inserts a directed typed edge. Both endpoints must exist.
func (s *Store) AddEdge(from, to, relation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[from]; !ok {
		return qerrors.New(qerrors.ErrCodeUnknownID, "edge source node not found", nil).
			WithDetail("id", from)
	}
	if _, ok := s.nodes[to]; !ok {
		return qerrors.New(qerrors.ErrCodeUnknownID, "edge target node not found", nil).
			WithDetail("id", to)
	}
	m, ok := s.out[from]
	if !ok {
		m = make(map[string][]string)
		s.out[from] = m
	}
	for _, r := range m[to] {
		if r == relation {
			return nil
		}
	}
	m[to] = append(m[to], relation)
	return nil
}

// Node returns the node with the given ID.
func (s *Store) Node(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	return n, ok
}

// Size returns the number of nodes.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// FindSeeds returns IDs of nodes whose ID or property values contain any of
// the query terms, case-insensitively. Results are sorted for determinism.
func (s *Store) FindSeeds(query string) []string {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var seeds []string
	for id, n := range s.nodes {
		if nodeMatches(n, terms) {
			seeds = append(seeds, id)
		}
	}
	sort.Strings(seeds)
	return seeds
}

func nodeMatches(n Node, terms []string) bool {
	lowerID := strings.ToLower(n.ID)
	for _, t := range terms {
		if strings.Contains(lowerID, t) {
			return true
		}
		for _, v := range n.Props {
			if strings.Contains(strings.ToLower(v), t) {
				return true
			}
		}
	}
	return false
}

// Traverse runs BFS from the seed nodes up to maxDepth hops, following
// edges in both directions. Seeds are at hop 0. Unknown seeds are skipped.
// The context is checked once per BFS level.
func (s *Store) Traverse(ctx context.Context, seeds []string, maxDepth int) ([]Visit, error) {
	if maxDepth < 0 {
		maxDepth = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	visited := make(map[string]int)
	frontier := make([]string, 0, len(seeds))
	for _, id := range seeds {
		if _, ok := s.nodes[id]; !ok {
			continue
		}
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = 0
		frontier = append(frontier, id)
	}

	incoming := s.reverseIndex()

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, qerrors.New(qerrors.ErrCodeSourceTimeout, "graph traversal cancelled", err)
		}
		var next []string
		for _, id := range frontier {
			for to := range s.out[id] {
				if _, seen := visited[to]; !seen {
					visited[to] = depth
					next = append(next, to)
				}
			}
			for from := range incoming[id] {
				if _, seen := visited[from]; !seen {
					visited[from] = depth
					next = append(next, from)
				}
			}
		}
		frontier = next
	}

	visits := make([]Visit, 0, len(visited))
	for id, hops := range visited {
		visits = append(visits, Visit{ID: id, Hops: hops, Node: s.nodes[id]})
	}
	sort.Slice(visits, func(i, j int) bool {
		if visits[i].Hops != visits[j].Hops {
			return visits[i].Hops < visits[j].Hops
		}
		return visits[i].ID < visits[j].ID
	})
	return visits, nil
}

// reverseIndex builds the incoming-edge map. Caller holds at least a read
// lock.
func (s *Store) reverseIndex() map[string]map[string]bool {
	in := make(map[string]map[string]bool)
	for from, targets := range s.out {
		for to := range targets {
			m, ok := in[to]
			if !ok {
				m = make(map[string]bool)
				in[to] = m
			}
			m[from] = true
		}
	}
	return in
}

// graphFile is the on-disk JSON shape.
type graphFile struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Edges returns every edge, sorted by (from, to, relation).
func (s *Store) Edges() []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var edges []Edge
	for from, targets := range s.out {
		for to, relations := range targets {
			for _, r := range relations {
				edges = append(edges, Edge{From: from, To: to, Relation: r})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		if edges[i].To != edges[j].To {
			return edges[i].To < edges[j].To
		}
		return edges[i].Relation < edges[j].Relation
	})
	return edges
}

// SaveFile writes the graph as JSON, nodes and edges sorted for a stable
// serialization.
func (s *Store) SaveFile(path string) error {
	s.mu.RLock()
	nodes := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	s.mu.RUnlock()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	data, err := json.MarshalIndent(graphFile{Nodes: nodes, Edges: s.Edges()}, "", "  ")
	if err != nil {
		return qerrors.New(qerrors.ErrCodeInternal, "failed to encode graph", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return qerrors.New(qerrors.ErrCodeInternal, "failed to write graph file", err)
	}
	return nil
}

// LoadFile replaces the store contents with the graph in the given JSON
// file. The graph is staged in full before the swap, so a malformed file
// leaves the existing contents untouched. Nodes load before edges so
// endpoint checks hold.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return qerrors.New(qerrors.ErrCodeSourceUnavailable, "failed to read graph file", err)
	}
	var f graphFile
	if err := json.Unmarshal(data, &f); err != nil {
		return qerrors.New(qerrors.ErrCodeSourceFailed, "failed to decode graph file", err)
	}

	staged := New()
	for _, n := range f.Nodes {
		if err := staged.AddNode(n.ID, n.Props); err != nil {
			return err
		}
	}
	for _, e := range f.Edges {
		if err := staged.AddEdge(e.From, e.To, e.Relation); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.nodes = staged.nodes
	s.out = staged.out
	s.mu.Unlock()
	return nil
}
