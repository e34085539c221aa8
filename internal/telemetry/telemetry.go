// Package telemetry exposes Prometheus metrics for the retrieval engine.
// Registration is optional; an engine without metrics pays no cost.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	QueriesTotal   prometheus.Counter
	QueryDuration  prometheus.Histogram
	QueryFailures  prometheus.Counter
	SourceDuration *prometheus.HistogramVec
	SourceFailures *prometheus.CounterVec
	SourceTimeouts *prometheus.CounterVec
	SourceHits     *prometheus.CounterVec
	FusedResults   prometheus.Histogram
}

// New creates the metric set and registers it with reg. Pass
// prometheus.DefaultRegisterer for the process-global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quadfuse_queries_total",
			Help: "Total number of fused search queries.",
		}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quadfuse_query_duration_seconds",
			Help:    "End-to-end fused query latency.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		QueryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quadfuse_query_failures_total",
			Help: "Queries that failed with no usable source results.",
		}),
		SourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quadfuse_source_duration_seconds",
			Help:    "Per-source query latency.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"source"}),
		SourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quadfuse_source_failures_total",
			Help: "Per-source adapter errors.",
		}, []string{"source"}),
		SourceTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quadfuse_source_timeouts_total",
			Help: "Per-source timeout races lost.",
		}, []string{"source"}),
		SourceHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quadfuse_source_hits_total",
			Help: "Raw hits returned per source.",
		}, []string{"source"}),
		FusedResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quadfuse_fused_results",
			Help:    "Number of fused results returned per query.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.QueriesTotal, m.QueryDuration, m.QueryFailures,
			m.SourceDuration, m.SourceFailures, m.SourceTimeouts,
			m.SourceHits, m.FusedResults,
		)
	}
	return m
}

// ObserveQuery records one completed query.
func (m *Metrics) ObserveQuery(d time.Duration, fused int, failed bool) {
	if m == nil {
		return
	}
	m.QueriesTotal.Inc()
	m.QueryDuration.Observe(d.Seconds())
	m.FusedResults.Observe(float64(fused))
	if failed {
		m.QueryFailures.Inc()
	}
}

// ObserveSource records one source outcome within a query.
func (m *Metrics) ObserveSource(name string, d time.Duration, hits int, timedOut, failed bool) {
	if m == nil {
		return
	}
	m.SourceDuration.WithLabelValues(name).Observe(d.Seconds())
	m.SourceHits.WithLabelValues(name).Add(float64(hits))
	if timedOut {
		m.SourceTimeouts.WithLabelValues(name).Inc()
	}
	if failed {
		m.SourceFailures.WithLabelValues(name).Inc()
	}
}
