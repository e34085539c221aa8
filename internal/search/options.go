package search

import (
	"math"
	"time"

	qerrors "github.com/quadfuse/quadfuse/internal/errors"
	"github.com/quadfuse/quadfuse/internal/source"
)

// Hard caps exposed as part of the contract. Validation rejects options
// beyond these before any source is queried.
const (
	MaxTopK          = 100
	MaxGraphDepth    = 5
	MaxSourceTimeout = 30 * time.Second
)

// Defaults applied by DefaultOptions.
const (
	DefaultTopK                 = 10
	DefaultGraphDepth           = 2
	DefaultSourceTimeout        = 5 * time.Second
	DefaultMemoryNamespace      = "default"
	DefaultMinPatternConfidence = 0.3
)

// DefaultWeights returns the default per-source weight vector. The vector
// source carries the most signal; the remaining sources split the rest.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		source.Vector:  0.4,
		source.Graph:   0.2,
		source.Memory:  0.2,
		source.Pattern: 0.2,
	}
}

// Options is the full option set for one query. Weights need not sum to 1
// as stored; they are renormalized before use.
type Options struct {
	Weights              map[string]float64
	TopK                 int
	SourceTimeout        time.Duration
	GraphDepth           int
	MemoryNamespace      string
	MinPatternConfidence float64
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		Weights:              DefaultWeights(),
		TopK:                 DefaultTopK,
		SourceTimeout:        DefaultSourceTimeout,
		GraphDepth:           DefaultGraphDepth,
		MemoryNamespace:      DefaultMemoryNamespace,
		MinPatternConfidence: DefaultMinPatternConfidence,
	}
}

// Validate rejects option sets that exceed the hard caps or carry a
// degenerate weight vector.
func (o Options) Validate() error {
	if o.TopK <= 0 || o.TopK > MaxTopK {
		return qerrors.Newf(qerrors.ErrCodeInvalidOptions,
			"topK must be in 1..%d, got %d", MaxTopK, o.TopK)
	}
	if o.SourceTimeout <= 0 || o.SourceTimeout > MaxSourceTimeout {
		return qerrors.Newf(qerrors.ErrCodeInvalidOptions,
			"sourceTimeout must be in (0, %s], got %s", MaxSourceTimeout, o.SourceTimeout)
	}
	if o.GraphDepth < 0 || o.GraphDepth > MaxGraphDepth {
		return qerrors.Newf(qerrors.ErrCodeInvalidOptions,
			"graphDepth must be in 0..%d, got %d", MaxGraphDepth, o.GraphDepth)
	}
	if o.MinPatternConfidence < 0 || o.MinPatternConfidence > 1 {
		return qerrors.Newf(qerrors.ErrCodeInvalidOptions,
			"minPatternConfidence must be in [0,1], got %g", o.MinPatternConfidence)
	}
	return validateWeights(o.Weights)
}

func validateWeights(weights map[string]float64) error {
	if len(weights) == 0 {
		return qerrors.New(qerrors.ErrCodeInvalidWeights, "weights must not be empty", nil)
	}
	sum := 0.0
	for name, w := range weights {
		if !knownSource(name) {
			return qerrors.Newf(qerrors.ErrCodeInvalidWeights, "unknown source %q in weights", name)
		}
		if w < 0 || w > 1 || math.IsNaN(w) {
			return qerrors.Newf(qerrors.ErrCodeInvalidWeights,
				"weight for %q must be in [0,1], got %g", name, w)
		}
		sum += w
	}
	if sum == 0 {
		return qerrors.New(qerrors.ErrCodeInvalidWeights, "weights must not all be zero", nil)
	}
	return nil
}

func knownSource(name string) bool {
	for _, s := range source.Names {
		if s == name {
			return true
		}
	}
	return false
}

// NormalizeWeights rescales a valid weight vector to sum to exactly 1.
// Sources absent from the input get weight 0.
func NormalizeWeights(weights map[string]float64) (map[string]float64, error) {
	if err := validateWeights(weights); err != nil {
		return nil, err
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	out := make(map[string]float64, len(source.Names))
	for _, name := range source.Names {
		out[name] = weights[name] / sum
	}
	return out, nil
}

// Option overrides a single field of the per-query options.
type Option func(*Options)

// WithTopK sets the maximum number of fused results.
func WithTopK(k int) Option {
	return func(o *Options) { o.TopK = k }
}

// WithWeights replaces the weights for the named sources, leaving other
// sources at their current values.
func WithWeights(weights map[string]float64) Option {
	return func(o *Options) {
		merged := make(map[string]float64, len(o.Weights))
		for k, v := range o.Weights {
			merged[k] = v
		}
		for k, v := range weights {
			merged[k] = v
		}
		o.Weights = merged
	}
}

// WithSourceTimeout sets the per-source timeout.
func WithSourceTimeout(d time.Duration) Option {
	return func(o *Options) { o.SourceTimeout = d }
}

// WithGraphDepth sets the graph traversal hop limit.
func WithGraphDepth(depth int) Option {
	return func(o *Options) { o.GraphDepth = depth }
}

// WithMemoryNamespace scopes the memory source.
func WithMemoryNamespace(ns string) Option {
	return func(o *Options) { o.MemoryNamespace = ns }
}

// WithMinPatternConfidence filters low-confidence patterns.
func WithMinPatternConfidence(c float64) Option {
	return func(o *Options) { o.MinPatternConfidence = c }
}

// mergeOptions applies per-query overrides on top of base, leaving base
// untouched.
func mergeOptions(base Options, opts []Option) Options {
	merged := base
	weights := make(map[string]float64, len(base.Weights))
	for k, v := range base.Weights {
		weights[k] = v
	}
	merged.Weights = weights
	for _, opt := range opts {
		opt(&merged)
	}
	return merged
}
