// Package source defines the uniform adapter contract the orchestrator fans
// out over, plus the four concrete adapters: vector, graph, memory, and
// pattern. Adapters are stateless wrappers around their backing stores; they
// return ordinary errors and leave failure isolation to the orchestrator.
package source

import (
	"context"
)

// Source names, also used as weight keys.
const (
	Vector  = "vector"
	Graph   = "graph"
	Memory  = "memory"
	Pattern = "pattern"
)

// Names lists all four sources in canonical order.
var Names = []string{Vector, Graph, Memory, Pattern}

// Params carries everything an adapter may need for one query. Each adapter
// reads only the fields it understands.
type Params struct {
	// Query is the raw query text.
	Query string

	// Embedding is the pre-computed query embedding, if the caller supplied
	// one. The vector adapter embeds Query itself when this is nil.
	Embedding []float32

	// TopK bounds the number of hits an adapter returns.
	TopK int

	// GraphDepth is the hop limit for graph traversal.
	GraphDepth int

	// MemoryNamespace scopes the memory lookup.
	MemoryNamespace string

	// MinPatternConfidence filters low-confidence patterns.
	MinPatternConfidence float64
}

// Hit is one raw result from an adapter. RawScore is in the adapter's
// native scale; the orchestrator normalizes before fusion.
type Hit struct {
	ID       string
	RawScore float64
	Metadata map[string]string
}

// Adapter is the uniform retrieval contract.
type Adapter interface {
	// Name returns the source name (one of the constants above).
	Name() string

	// Query returns scored hits for the params. A nil slice with nil error
	// means the source had nothing relevant.
	Query(ctx context.Context, p Params) ([]Hit, error)
}
