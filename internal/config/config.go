// Package config loads and validates QuadFuse configuration.
//
// Precedence, lowest to highest: built-in defaults, the YAML config file,
// then QUADFUSE_* environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quadfuse/quadfuse/internal/search"
	"github.com/quadfuse/quadfuse/internal/source"
	"github.com/quadfuse/quadfuse/internal/vectorindex"
	"github.com/quadfuse/quadfuse/internal/vectormath"
)

// ConfigFileName is the per-project configuration file.
const ConfigFileName = ".quadfuse.yaml"

// Config is the complete QuadFuse configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Index    IndexConfig    `yaml:"index" json:"index"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Graph    GraphConfig    `yaml:"graph" json:"graph"`
	Memory   MemoryConfig   `yaml:"memory" json:"memory"`
	Patterns PatternsConfig `yaml:"patterns" json:"patterns"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// IndexConfig configures the HNSW vector index.
type IndexConfig struct {
	// Dimension is the embedding dimensionality. All inserted vectors
	// must match it.
	Dimension int `yaml:"dimension" json:"dimension"`

	// M is the maximum neighbor count per node on layers above 0.
	// Layer 0 allows 2*M.
	M int `yaml:"m" json:"m"`

	EfConstruction int `yaml:"ef_construction" json:"ef_construction"`
	EfSearch       int `yaml:"ef_search" json:"ef_search"`

	// Metric is one of "cosine", "euclidean", or "dot".
	Metric string `yaml:"metric" json:"metric"`

	// Quantize enables int8 scalar quantization with full-precision rerank.
	Quantize         bool `yaml:"quantize" json:"quantize"`
	RerankCandidates int  `yaml:"rerank_candidates" json:"rerank_candidates"`

	// SnapshotPath is where `quadfuse snapshot save` writes the index.
	SnapshotPath string `yaml:"snapshot_path" json:"snapshot_path"`
}

// SearchConfig configures federated query defaults. Each field maps to a
// per-query option and can be overridden on individual searches.
type SearchConfig struct {
	TopK            int `yaml:"top_k" json:"top_k"`
	SourceTimeoutMs int `yaml:"source_timeout_ms" json:"source_timeout_ms"`
	GraphDepth      int `yaml:"graph_depth" json:"graph_depth"`

	MemoryNamespace      string  `yaml:"memory_namespace" json:"memory_namespace"`
	MinPatternConfidence float64 `yaml:"min_pattern_confidence" json:"min_pattern_confidence"`

	// Weights are per-source fusion weights, normalized to sum to 1 at
	// query time. Omitted sources default to 0.
	Weights map[string]float64 `yaml:"weights" json:"weights"`

	// Circuit breaker thresholds for the source adapters. A source that
	// fails BreakerMaxFailures times in a row is skipped until
	// BreakerResetMs elapses.
	BreakerMaxFailures int `yaml:"breaker_max_failures" json:"breaker_max_failures"`
	BreakerResetMs     int `yaml:"breaker_reset_ms" json:"breaker_reset_ms"`
}

// GraphConfig configures the knowledge graph source.
type GraphConfig struct {
	// Path is a JSON file of nodes and edges loaded at startup.
	// Empty means the graph source starts empty.
	Path string `yaml:"path" json:"path"`
}

// MemoryConfig configures the Badger-backed memory store.
type MemoryConfig struct {
	// Path is the Badger directory. Empty means in-memory.
	Path string `yaml:"path" json:"path"`
}

// PatternsConfig configures pattern persistence.
type PatternsConfig struct {
	Path string `yaml:"path" json:"path"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			Dimension:      256,
			M:              16,
			EfConstruction: 200,
			EfSearch:       50,
			Metric:         string(vectormath.MetricCosine),
			Quantize:       false,
		},
		Search: SearchConfig{
			TopK:                 search.DefaultTopK,
			SourceTimeoutMs:      int(search.DefaultSourceTimeout.Milliseconds()),
			GraphDepth:           search.DefaultGraphDepth,
			MemoryNamespace:      search.DefaultMemoryNamespace,
			MinPatternConfidence: search.DefaultMinPatternConfidence,
			Weights:              search.DefaultWeights(),
			BreakerMaxFailures:   5,
			BreakerResetMs:       30000,
		},
		Graph:    GraphConfig{},
		Memory:   MemoryConfig{},
		Patterns: PatternsConfig{},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file from dir (if present), applies environment
// overrides, and validates the result. A missing file is not an error.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("QUADFUSE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("QUADFUSE_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("QUADFUSE_SNAPSHOT_PATH"); v != "" {
		c.Index.SnapshotPath = v
	}
	if v := os.Getenv("QUADFUSE_GRAPH_PATH"); v != "" {
		c.Graph.Path = v
	}
	if v := os.Getenv("QUADFUSE_MEMORY_PATH"); v != "" {
		c.Memory.Path = v
	}
	if v := os.Getenv("QUADFUSE_PATTERNS_PATH"); v != "" {
		c.Patterns.Path = v
	}
	if v := os.Getenv("QUADFUSE_NAMESPACE"); v != "" {
		c.Search.MemoryNamespace = v
	}
	if v := os.Getenv("QUADFUSE_METRIC"); v != "" {
		c.Index.Metric = v
	}
	if v := os.Getenv("QUADFUSE_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.TopK = k
		}
	}
	if v := os.Getenv("QUADFUSE_SOURCE_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			c.Search.SourceTimeoutMs = ms
		}
	}
	if v := os.Getenv("QUADFUSE_QUANTIZE"); v != "" {
		c.Index.Quantize = strings.ToLower(v) == "true" || v == "1"
	}

	// Per-source weight overrides, e.g. QUADFUSE_WEIGHT_VECTOR=0.6.
	for _, name := range source.Names {
		env := "QUADFUSE_WEIGHT_" + strings.ToUpper(name)
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			if c.Search.Weights == nil {
				c.Search.Weights = make(map[string]float64)
			}
			c.Search.Weights[name] = w
		}
	}
}

func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Index.Dimension <= 0 {
		return fmt.Errorf("index.dimension must be positive, got %d", c.Index.Dimension)
	}
	if c.Index.M < 2 {
		return fmt.Errorf("index.m must be at least 2, got %d", c.Index.M)
	}
	if c.Index.EfConstruction < c.Index.M {
		return fmt.Errorf("index.ef_construction must be at least m, got %d", c.Index.EfConstruction)
	}
	if c.Index.EfSearch < 1 {
		return fmt.Errorf("index.ef_search must be positive, got %d", c.Index.EfSearch)
	}
	if _, err := vectormath.ForMetric(vectormath.Metric(c.Index.Metric)); err != nil {
		return fmt.Errorf("index.metric must be 'cosine', 'euclidean', or 'dot', got %s", c.Index.Metric)
	}
	if c.Index.RerankCandidates < 0 {
		return fmt.Errorf("index.rerank_candidates must be non-negative, got %d", c.Index.RerankCandidates)
	}

	if c.Search.TopK < 1 || c.Search.TopK > search.MaxTopK {
		return fmt.Errorf("search.top_k must be between 1 and %d, got %d", search.MaxTopK, c.Search.TopK)
	}
	if c.Search.SourceTimeoutMs < 1 || c.Search.SourceTimeoutMs > int(search.MaxSourceTimeout.Milliseconds()) {
		return fmt.Errorf("search.source_timeout_ms must be between 1 and %d, got %d",
			search.MaxSourceTimeout.Milliseconds(), c.Search.SourceTimeoutMs)
	}
	if c.Search.GraphDepth < 1 || c.Search.GraphDepth > search.MaxGraphDepth {
		return fmt.Errorf("search.graph_depth must be between 1 and %d, got %d", search.MaxGraphDepth, c.Search.GraphDepth)
	}
	if c.Search.MinPatternConfidence < 0 || c.Search.MinPatternConfidence > 1 {
		return fmt.Errorf("search.min_pattern_confidence must be between 0 and 1, got %f", c.Search.MinPatternConfidence)
	}
	if c.Search.BreakerMaxFailures < 1 {
		return fmt.Errorf("search.breaker_max_failures must be positive, got %d", c.Search.BreakerMaxFailures)
	}
	if c.Search.BreakerResetMs < 1 {
		return fmt.Errorf("search.breaker_reset_ms must be positive, got %d", c.Search.BreakerResetMs)
	}

	known := make(map[string]bool, len(source.Names))
	for _, name := range source.Names {
		known[name] = true
	}
	sum := 0.0
	for name, w := range c.Search.Weights {
		if !known[name] {
			return fmt.Errorf("search.weights references unknown source %q", name)
		}
		if math.IsNaN(w) || w < 0 || w > 1 {
			return fmt.Errorf("search.weights[%s] must be between 0 and 1, got %f", name, w)
		}
		sum += w
	}
	if len(c.Search.Weights) > 0 && sum <= 0 {
		return fmt.Errorf("search.weights must have a positive sum, got %f", sum)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SearchOptions converts the search section into engine options.
func (c *Config) SearchOptions() search.Options {
	weights := make(map[string]float64, len(c.Search.Weights))
	for k, v := range c.Search.Weights {
		weights[k] = v
	}
	return search.Options{
		TopK:                 c.Search.TopK,
		SourceTimeout:        time.Duration(c.Search.SourceTimeoutMs) * time.Millisecond,
		GraphDepth:           c.Search.GraphDepth,
		MemoryNamespace:      c.Search.MemoryNamespace,
		MinPatternConfidence: c.Search.MinPatternConfidence,
		Weights:              weights,
	}
}

// IndexOptions converts the index section into a vector index config.
func (c *Config) IndexOptions() vectorindex.Config {
	return vectorindex.Config{
		M:                c.Index.M,
		EfConstruction:   c.Index.EfConstruction,
		EfSearch:         c.Index.EfSearch,
		Metric:           vectormath.Metric(c.Index.Metric),
		Quantize:         c.Index.Quantize,
		RerankCandidates: c.Index.RerankCandidates,
	}
}
