package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quadfuse/quadfuse/internal/fusion"
	"github.com/quadfuse/quadfuse/internal/search"
)

func TestStatusAndIcons(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Success("indexed")
	w.Warningf("%d sources timed out", 2)
	w.Error("boom")
	w.Status("", "plain")

	out := buf.String()
	assert.Contains(t, out, "✅ indexed")
	assert.Contains(t, out, "2 sources timed out")
	assert.Contains(t, out, "❌ boom")
	assert.Contains(t, out, "   plain")
}

func TestResultsRendering(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Results(&search.Result{
		Results: []fusion.Fused{
			{
				ID:    "doc-1",
				Score: 0.55,
				Sources: []fusion.SourceScore{
					{Source: "graph", Raw: 0.2, Normalized: 0.2},
					{Source: "vector", Raw: 0.9, Normalized: 0.9},
				},
			},
		},
		Metadata: search.Metadata{
			SourcesQueried:   4,
			SourcesResponded: 3,
			TotalDuration:    1500 * time.Microsecond,
		},
	})

	out := buf.String()
	assert.Contains(t, out, " 1. 0.5500  doc-1")
	assert.Contains(t, out, "graph=0.200  vector=0.900")
	assert.Contains(t, out, "1 result(s) from 3/4 sources")
}

func TestResultsEmpty(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Results(&search.Result{})
	assert.Contains(t, buf.String(), "no results")
}

func TestSourceStats(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).SourceStats(map[string]search.SourceStat{
		"vector": {Source: "vector", Duration: time.Millisecond, Hits: 3, Succeeded: true},
		"graph":  {Source: "graph", TimedOut: true},
		"memory": {Source: "memory"},
	})

	out := buf.String()
	assert.Contains(t, out, "vector")
	assert.Contains(t, out, "timeout")
	assert.Contains(t, out, "failed")
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf).JSON(map[string]int{"n": 1}))
	assert.JSONEq(t, `{"n":1}`, buf.String())
}

func TestProgressBarBounds(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Progress(0, 0, "ignored")
	assert.Zero(t, buf.Len())

	w.Progress(5, 10, "halfway")
	assert.Contains(t, buf.String(), "50%")
	assert.False(t, strings.HasSuffix(buf.String(), "\n"))

	w.Progress(10, 10, "done")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}
