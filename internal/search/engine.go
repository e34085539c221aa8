// Package search implements the fan-out/fan-in orchestrator: it races the
// four retrieval sources against independent timeouts, tolerates partial
// failure, and fuses whatever responded into one deterministic ranking.
package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	qerrors "github.com/quadfuse/quadfuse/internal/errors"
	"github.com/quadfuse/quadfuse/internal/fusion"
	"github.com/quadfuse/quadfuse/internal/source"
	"github.com/quadfuse/quadfuse/internal/telemetry"
)

// ErrAllSourcesFailed is returned when zero sources produced usable
// results. Partial success never fails the query.
var ErrAllSourcesFailed = qerrors.New(qerrors.ErrCodeAllSourcesFailed, "all sources failed or timed out", nil)

// Engine coordinates the four source adapters. It is safe for concurrent
// use; weight updates apply to subsequent queries on this instance only.
type Engine struct {
	mu   sync.RWMutex
	opts Options

	adapters map[string]source.Adapter
	breakers map[string]*qerrors.CircuitBreaker
	logger   *slog.Logger
	metrics  *telemetry.Metrics

	statsMu        sync.Mutex
	queries        int64
	failures       int64
	sourceFailures map[string]int64
	sourceTimeouts map[string]int64
}

// EngineOption configures an Engine at construction.
type EngineOption func(*Engine)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics attaches Prometheus metrics. Nil metrics are a no-op.
func WithMetrics(m *telemetry.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithCircuitBreakers wraps each adapter in a circuit breaker so a source
// that fails repeatedly is skipped until its reset timeout elapses.
func WithCircuitBreakers(maxFailures int, resetTimeout time.Duration) EngineOption {
	return func(e *Engine) {
		e.breakers = make(map[string]*qerrors.CircuitBreaker, len(e.adapters))
		for name := range e.adapters {
			e.breakers[name] = qerrors.NewCircuitBreaker(name,
				qerrors.WithMaxFailures(maxFailures),
				qerrors.WithResetTimeout(resetTimeout),
			)
		}
	}
}

// NewEngine creates an engine over the given adapters with the given
// default options.
func NewEngine(adapters []source.Adapter, opts Options, engineOpts ...EngineOption) (*Engine, error) {
	if len(adapters) == 0 {
		return nil, qerrors.New(qerrors.ErrCodeConfigInvalid, "at least one source adapter is required", nil)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	byName := make(map[string]source.Adapter, len(adapters))
	for _, a := range adapters {
		if _, dup := byName[a.Name()]; dup {
			return nil, qerrors.Newf(qerrors.ErrCodeConfigInvalid, "duplicate adapter %q", a.Name())
		}
		byName[a.Name()] = a
	}

	e := &Engine{
		opts:           opts,
		adapters:       byName,
		logger:         slog.Default(),
		sourceFailures: make(map[string]int64),
		sourceTimeouts: make(map[string]int64),
	}
	for _, opt := range engineOpts {
		opt(e)
	}
	return e, nil
}

// outcome is one source's settled result inside the barrier.
type outcome struct {
	name     string
	hits     []source.Hit
	err      error
	timedOut bool
	duration time.Duration
}

// Search runs the fused query. All adapters are launched concurrently, each
// raced against the per-source timeout, and the barrier waits for every
// outcome before fusing. embedding may be nil, in which case the vector
// adapter embeds the query text itself.
func (e *Engine) Search(ctx context.Context, query string, embedding []float32, opts ...Option) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, qerrors.New(qerrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}

	e.mu.RLock()
	merged := mergeOptions(e.opts, opts)
	e.mu.RUnlock()

	if err := merged.Validate(); err != nil {
		return nil, err
	}
	weights, err := NormalizeWeights(merged.Weights)
	if err != nil {
		return nil, err
	}

	queryID := uuid.NewString()
	params := source.Params{
		Query:                query,
		Embedding:            embedding,
		TopK:                 merged.TopK,
		GraphDepth:           merged.GraphDepth,
		MemoryNamespace:      merged.MemoryNamespace,
		MinPatternConfidence: merged.MinPatternConfidence,
	}

	start := time.Now()
	outcomes := make([]outcome, 0, len(e.adapters))
	var outMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for name, adapter := range e.adapters {
		name, adapter := name, adapter
		g.Go(func() error {
			o := e.querySource(gctx, adapter, params, merged.SourceTimeout)
			o.name = name
			outMu.Lock()
			outcomes = append(outcomes, o)
			outMu.Unlock()
			// Source failures stay local; returning an error here would
			// cancel the sibling sources.
			return nil
		})
	}
	// Barrier: every source settles before fusion starts.
	_ = g.Wait()

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].name < outcomes[j].name })

	stats := make(map[string]SourceStat, len(outcomes))
	var perSource []fusion.SourceResult
	responded := 0
	for _, o := range outcomes {
		stat := SourceStat{
			Source:   o.name,
			Duration: o.duration,
			TimedOut: o.timedOut,
		}
		switch {
		case o.err != nil:
			stat.Error = o.err.Error()
			e.recordSourceFailure(o.name, o.timedOut)
		default:
			stat.Succeeded = true
			stat.Hits = len(o.hits)
			responded++
			perSource = append(perSource, fusion.SourceResult{
				Source: o.name,
				Hits:   toFusionHits(o.hits),
			})
		}
		stats[o.name] = stat
		e.metrics.ObserveSource(o.name, o.duration, stat.Hits, o.timedOut, o.err != nil)
	}

	total := time.Since(start)
	if responded == 0 {
		e.recordQuery(true)
		e.metrics.ObserveQuery(total, 0, true)
		e.logger.Error("all sources failed",
			"query_id", queryID,
			"sources", len(e.adapters),
			"duration", total)
		return nil, ErrAllSourcesFailed
	}

	fused := fusion.Fuse(perSource, weights, merged.TopK)
	e.recordQuery(false)
	e.metrics.ObserveQuery(total, len(fused), false)
	e.logger.Debug("query complete",
		"query_id", queryID,
		"responded", responded,
		"fused", len(fused),
		"duration", total)

	return &Result{
		Results: fused,
		Metadata: Metadata{
			QueryID:          queryID,
			Query:            query,
			TotalDuration:    total,
			SourcesQueried:   len(e.adapters),
			SourcesResponded: responded,
		},
		SourceStats: stats,
	}, nil
}

// querySource races one adapter against the per-source timeout. The adapter
// runs in its own goroutine; if the timer wins, the source is marked timed
// out and the goroutine is left to drain on its own (external stores may
// not support cancellation).
func (e *Engine) querySource(ctx context.Context, adapter source.Adapter, params source.Params, timeout time.Duration) outcome {
	start := time.Now()

	if br := e.breakers[adapter.Name()]; br != nil && !br.Allow() {
		return outcome{
			err:      qerrors.New(qerrors.ErrCodeSourceUnavailable, "source circuit open", qerrors.ErrCircuitOpen),
			duration: time.Since(start),
		}
	}

	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		hits []source.Hit
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		hits, err := adapter.Query(sctx, params)
		done <- reply{hits: hits, err: err}
	}()

	var o outcome
	select {
	case r := <-done:
		o = outcome{hits: r.hits, err: r.err, duration: time.Since(start)}
		// An adapter that observes the deadline itself still counts as a
		// timeout, not an ordinary failure.
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			o.timedOut = true
		}
	case <-sctx.Done():
		// Only a lost deadline race counts as a timeout; a cancelled parent
		// context is the caller's doing.
		if errors.Is(sctx.Err(), context.DeadlineExceeded) {
			o = outcome{
				err:      qerrors.New(qerrors.ErrCodeSourceTimeout, "source timed out", sctx.Err()),
				timedOut: true,
				duration: time.Since(start),
			}
		} else {
			o = outcome{
				err:      qerrors.New(qerrors.ErrCodeSourceFailed, "source query cancelled", sctx.Err()),
				duration: time.Since(start),
			}
		}
	}

	if br := e.breakers[adapter.Name()]; br != nil {
		if o.err != nil {
			br.RecordFailure()
		} else {
			br.RecordSuccess()
		}
	}
	return o
}

func toFusionHits(hits []source.Hit) []fusion.Hit {
	out := make([]fusion.Hit, len(hits))
	for i, h := range hits {
		out[i] = fusion.Hit{ID: h.ID, Raw: h.RawScore, Metadata: h.Metadata}
	}
	fusion.NormalizeScores(out)
	return out
}

// UpdateWeights merges the given weights over the current ones. The merged
// vector must remain valid. Updates persist only for the life of this
// engine instance.
func (e *Engine) UpdateWeights(weights map[string]float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	merged := make(map[string]float64, len(e.opts.Weights))
	for k, v := range e.opts.Weights {
		merged[k] = v
	}
	for k, v := range weights {
		merged[k] = v
	}
	if err := validateWeights(merged); err != nil {
		return err
	}
	e.opts.Weights = merged
	return nil
}

// GetOptions returns a copy of the current default options.
func (e *Engine) GetOptions() Options {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := e.opts
	weights := make(map[string]float64, len(e.opts.Weights))
	for k, v := range e.opts.Weights {
		weights[k] = v
	}
	out.Weights = weights
	return out
}

// Stats returns cumulative counters since engine creation.
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	failures := make(map[string]int64, len(e.sourceFailures))
	for k, v := range e.sourceFailures {
		failures[k] = v
	}
	timeouts := make(map[string]int64, len(e.sourceTimeouts))
	for k, v := range e.sourceTimeouts {
		timeouts[k] = v
	}
	return Stats{
		Queries:        e.queries,
		Failures:       e.failures,
		SourceFailures: failures,
		SourceTimeouts: timeouts,
		Options:        e.GetOptions(),
	}
}

func (e *Engine) recordQuery(failed bool) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	e.queries++
	if failed {
		e.failures++
	}
}

func (e *Engine) recordSourceFailure(name string, timedOut bool) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	e.sourceFailures[name]++
	if timedOut {
		e.sourceTimeouts[name]++
	}
}
