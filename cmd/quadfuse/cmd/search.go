package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quadfuse/quadfuse/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit     int
	format    string // "text", "json"
	timeoutMs int
	depth     int
	namespace string
	weights   []string // "source=weight" pairs
	explain   bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a federated query across all four sources",
		Long: `Run a query against the vector, graph, memory, and pattern sources
in parallel and fuse the results into one weighted ranking.

Examples:
  quadfuse search "authentication middleware"
  quadfuse search "retry policy" --limit 5 --format json
  quadfuse search "deploy" --weight vector=0.7 --weight graph=0.3
  quadfuse search "timeout handling" --explain`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().IntVar(&opts.timeoutMs, "timeout", 0, "Per-source timeout in milliseconds")
	cmd.Flags().IntVar(&opts.depth, "depth", 0, "Graph traversal depth")
	cmd.Flags().StringVar(&opts.namespace, "namespace", "", "Memory namespace to query")
	cmd.Flags().StringSliceVarP(&opts.weights, "weight", "w", nil, "Per-source weight, e.g. vector=0.7 (repeatable)")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show per-source timing and hit counts")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	qopts, err := searchQueryOptions(opts)
	if err != nil {
		return err
	}

	res, err := a.engine.Search(cmd.Context(), query, nil, qopts...)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		return a.out.JSON(res)
	}

	a.out.Results(res)
	if opts.explain {
		a.out.Newline()
		a.out.SourceStats(res.SourceStats)
	}
	return nil
}

func searchQueryOptions(opts searchOptions) ([]search.Option, error) {
	var qopts []search.Option
	if opts.limit > 0 {
		qopts = append(qopts, search.WithTopK(opts.limit))
	}
	if opts.timeoutMs > 0 {
		qopts = append(qopts, search.WithSourceTimeout(time.Duration(opts.timeoutMs)*time.Millisecond))
	}
	if opts.depth > 0 {
		qopts = append(qopts, search.WithGraphDepth(opts.depth))
	}
	if opts.namespace != "" {
		qopts = append(qopts, search.WithMemoryNamespace(opts.namespace))
	}
	if len(opts.weights) > 0 {
		weights, err := parseWeights(opts.weights)
		if err != nil {
			return nil, err
		}
		qopts = append(qopts, search.WithWeights(weights))
	}
	return qopts, nil
}

// parseWeights converts "source=weight" pairs into a weight map.
func parseWeights(pairs []string) (map[string]float64, error) {
	weights := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid weight %q, expected source=value", pair)
		}
		w, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight value in %q: %w", pair, err)
		}
		weights[strings.TrimSpace(name)] = w
	}
	return weights, nil
}
