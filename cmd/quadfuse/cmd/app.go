package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/quadfuse/quadfuse/internal/config"
	"github.com/quadfuse/quadfuse/internal/embed"
	"github.com/quadfuse/quadfuse/internal/output"
	"github.com/quadfuse/quadfuse/internal/search"
	"github.com/quadfuse/quadfuse/internal/source"
	"github.com/quadfuse/quadfuse/internal/store/graphstore"
	"github.com/quadfuse/quadfuse/internal/store/memstore"
	"github.com/quadfuse/quadfuse/internal/store/patternstore"
	"github.com/quadfuse/quadfuse/internal/telemetry"
	"github.com/quadfuse/quadfuse/internal/vectorindex"
)

// Default file names inside the data directory.
const (
	defaultSnapshotFile = "index.json"
	defaultPatternsFile = "patterns.json"
	defaultMemoryDir    = "memory"
)

// app holds everything a command needs: config, the four stores, the
// embedder, and the fusion engine.
type app struct {
	cfg      *config.Config
	dir      string
	out      *output.Writer
	logger   *slog.Logger
	embedder embed.Embedder
	index    *vectorindex.Index
	graph    *graphstore.Store
	memory   *memstore.Store
	patterns *patternstore.Store
	engine   *search.Engine
}

// openApp loads the configuration and wires the stores and engine. Pass
// needEngine=false for commands that only touch a single store.
func openApp(cmd *cobra.Command, needEngine bool) (*app, error) {
	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		dir:    dataDir,
		out:    output.New(cmd.OutOrStdout()),
		logger: slog.Default(),
	}

	a.embedder = embed.NewCachedEmbedder(embed.NewStaticEmbedder(), embed.DefaultCacheSize)
	if cfg.Index.Dimension != a.embedder.Dimensions() {
		return nil, fmt.Errorf("index.dimension %d does not match embedder dimensions %d",
			cfg.Index.Dimension, a.embedder.Dimensions())
	}

	if a.index, err = a.openIndex(); err != nil {
		return nil, err
	}
	if a.graph, err = a.openGraph(); err != nil {
		return nil, err
	}
	if a.memory, err = memstore.Open(a.memoryPath()); err != nil {
		return nil, err
	}
	if a.patterns, err = a.openPatterns(); err != nil {
		return nil, err
	}

	if needEngine {
		adapters := []source.Adapter{
			source.NewVectorAdapter(a.index, a.embedder),
			source.NewGraphAdapter(a.graph),
			source.NewMemoryAdapter(a.memory),
			source.NewPatternAdapter(a.patterns),
		}
		metrics := telemetry.New(prometheus.NewRegistry())
		a.engine, err = search.NewEngine(adapters, cfg.SearchOptions(),
			search.WithLogger(a.logger),
			search.WithMetrics(metrics),
			search.WithCircuitBreakers(cfg.Search.BreakerMaxFailures,
				time.Duration(cfg.Search.BreakerResetMs)*time.Millisecond))
		if err != nil {
			return nil, err
		}
	}

	return a, nil
}

func (a *app) snapshotPath() string {
	if a.cfg.Index.SnapshotPath != "" {
		return a.cfg.Index.SnapshotPath
	}
	return filepath.Join(a.dir, defaultSnapshotFile)
}

func (a *app) patternsPath() string {
	if a.cfg.Patterns.Path != "" {
		return a.cfg.Patterns.Path
	}
	return filepath.Join(a.dir, defaultPatternsFile)
}

func (a *app) memoryPath() string {
	if a.cfg.Memory.Path != "" {
		return a.cfg.Memory.Path
	}
	return filepath.Join(a.dir, defaultMemoryDir)
}

func (a *app) openIndex() (*vectorindex.Index, error) {
	path := a.snapshotPath()
	if _, err := os.Stat(path); err == nil {
		idx, err := vectorindex.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load index snapshot %s: %w", path, err)
		}
		if idx.Dimension() != a.cfg.Index.Dimension {
			return nil, fmt.Errorf("snapshot dimension %d does not match index.dimension %d",
				idx.Dimension(), a.cfg.Index.Dimension)
		}
		return idx, nil
	}
	return vectorindex.New(a.cfg.Index.Dimension, a.cfg.IndexOptions())
}

func (a *app) openGraph() (*graphstore.Store, error) {
	g := graphstore.New()
	if a.cfg.Graph.Path != "" {
		if err := g.LoadFile(a.cfg.Graph.Path); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (a *app) openPatterns() (*patternstore.Store, error) {
	p := patternstore.New()
	path := a.patternsPath()
	if _, err := os.Stat(path); err == nil {
		if err := p.LoadFile(path); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// saveIndex persists the index snapshot. Called by mutating index commands.
func (a *app) saveIndex() error {
	return a.index.SaveFile(a.snapshotPath())
}

// savePatterns persists the pattern store. Called by mutating pattern
// commands.
func (a *app) savePatterns() error {
	return a.patterns.SaveFile(a.patternsPath())
}

// Close releases the store handles. Safe to call once.
func (a *app) Close() error {
	var firstErr error
	if a.memory != nil {
		if err := a.memory.Close(); err != nil {
			firstErr = err
		}
	}
	if a.embedder != nil {
		if err := a.embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
