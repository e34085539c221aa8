package cmd

import (
	"github.com/spf13/cobra"
)

// statsOutput is the JSON output format for stats.
type statsOutput struct {
	IndexSize     int     `json:"index_size"`
	IndexMaxLevel int     `json:"index_max_level"`
	Dimension     int     `json:"dimension"`
	Metric        string  `json:"metric"`
	Quantized     bool    `json:"quantized"`
	GraphNodes    int     `json:"graph_nodes"`
	GraphEdges    int     `json:"graph_edges"`
	MemoryRecords int     `json:"memory_records"`
	Patterns      int     `json:"patterns"`
	TopK          int     `json:"top_k"`
	TimeoutMs     int     `json:"source_timeout_ms"`
	GraphDepth    int     `json:"graph_depth"`
	Namespace     string  `json:"memory_namespace"`
	MinConfidence float64 `json:"min_pattern_confidence"`
}

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store sizes and query defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStats(cmd *cobra.Command, jsonOutput bool) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	memCount, err := a.memory.Count(a.cfg.Search.MemoryNamespace)
	if err != nil {
		return err
	}

	stats := statsOutput{
		IndexSize:     a.index.Size(),
		IndexMaxLevel: a.index.MaxLevel(),
		Dimension:     a.index.Dimension(),
		Metric:        a.cfg.Index.Metric,
		Quantized:     a.cfg.Index.Quantize,
		GraphNodes:    a.graph.Size(),
		GraphEdges:    len(a.graph.Edges()),
		MemoryRecords: memCount,
		Patterns:      a.patterns.Len(),
		TopK:          a.cfg.Search.TopK,
		TimeoutMs:     a.cfg.Search.SourceTimeoutMs,
		GraphDepth:    a.cfg.Search.GraphDepth,
		Namespace:     a.cfg.Search.MemoryNamespace,
		MinConfidence: a.cfg.Search.MinPatternConfidence,
	}

	if jsonOutput {
		return a.out.JSON(stats)
	}

	a.out.Status("", "index")
	a.out.Field("vectors", stats.IndexSize)
	a.out.Field("max level", stats.IndexMaxLevel)
	a.out.Field("dimension", stats.Dimension)
	a.out.Field("metric", stats.Metric)
	a.out.Field("quantized", stats.Quantized)
	a.out.Newline()
	a.out.Status("", "sources")
	a.out.Field("graph nodes", stats.GraphNodes)
	a.out.Field("graph edges", stats.GraphEdges)
	a.out.Field("memory records", stats.MemoryRecords)
	a.out.Field("patterns", stats.Patterns)
	a.out.Newline()
	a.out.Status("", "query defaults")
	a.out.Field("top k", stats.TopK)
	a.out.Field("source timeout (ms)", stats.TimeoutMs)
	a.out.Field("graph depth", stats.GraphDepth)
	a.out.Field("memory namespace", stats.Namespace)
	a.out.Field("min pattern confidence", stats.MinConfidence)
	return nil
}
