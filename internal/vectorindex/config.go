package vectorindex

import (
	"math"

	"github.com/quadfuse/quadfuse/internal/vectormath"
)

// Default HNSW parameters.
const (
	DefaultM              = 16
	DefaultEfConstruction = 200
	DefaultEfSearch       = 50
)

// Config holds the tunable HNSW parameters. M0 (layer-0 connection cap) and
// mL (level probability factor) are derived from M and never configured or
// persisted directly.
type Config struct {
	// M is the maximum number of connections per node per layer above 0.
	M int

	// EfConstruction is the beam width used while inserting a node.
	EfConstruction int

	// EfSearch is the default beam width for queries. Search calls may
	// override it per query.
	EfSearch int

	// Metric selects the distance metric (cosine, euclidean, dot).
	Metric vectormath.Metric

	// Quantize enables int8 scalar quantization. The layer-0 beam search
	// then runs against the int8 codes and the best survivors are
	// re-scored against full-precision vectors.
	Quantize bool

	// RerankCandidates is the number of quantized survivors re-scored at
	// full precision. 0 means 2*k, decided at query time.
	RerankCandidates int
}

// withDefaults fills zero fields with defaults.
func (c Config) withDefaults() Config {
	if c.M <= 0 {
		c.M = DefaultM
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = DefaultEfConstruction
	}
	if c.EfSearch <= 0 {
		c.EfSearch = DefaultEfSearch
	}
	if c.Metric == "" {
		c.Metric = vectormath.MetricCosine
	}
	return c
}

// m0 returns the layer-0 connection cap (2*M by the usual heuristic).
func (c Config) m0() int {
	return c.M * 2
}

// levelFactor returns mL = 1/ln(M), the normalization factor for the level
// probability distribution.
func (c Config) levelFactor() float64 {
	return 1.0 / math.Log(float64(c.M))
}
