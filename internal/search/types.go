package search

import (
	"time"

	"github.com/quadfuse/quadfuse/internal/fusion"
)

// SourceStat records one source's outcome within a single query.
type SourceStat struct {
	Source    string        `json:"source"`
	Duration  time.Duration `json:"duration"`
	Hits      int           `json:"hits"`
	TimedOut  bool          `json:"timed_out"`
	Succeeded bool          `json:"succeeded"`
	Error     string        `json:"error,omitempty"`
}

// Metadata describes how a query was answered.
type Metadata struct {
	QueryID          string        `json:"query_id"`
	Query            string        `json:"query"`
	TotalDuration    time.Duration `json:"total_duration"`
	SourcesQueried   int           `json:"sources_queried"`
	SourcesResponded int           `json:"sources_responded"`
}

// Result is the complete answer to one fused query. Callers always receive
// either a fully-populated Result or an error, never a partial one.
type Result struct {
	Results     []fusion.Fused        `json:"results"`
	Metadata    Metadata              `json:"metadata"`
	SourceStats map[string]SourceStat `json:"source_stats"`
}

// Stats is the cumulative per-engine summary returned by Engine.Stats.
type Stats struct {
	Queries        int64            `json:"queries"`
	Failures       int64            `json:"failures"`
	SourceFailures map[string]int64 `json:"source_failures"`
	SourceTimeouts map[string]int64 `json:"source_timeouts"`
	Options        Options          `json:"options"`
}
