// Package metrics holds the prometheus collectors for the ingestion and
// query pipelines. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	queries          *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	documents        *prometheus.CounterVec
	queryLogFailures prometheus.Counter
	stageDuration    *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minirag",
			Name:      "queries_total",
			Help:      "Queries answered, by retrieval path.",
		}, []string{"retrieval"}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minirag",
			Name:      "fallbacks_total",
			Help:      "Degraded execution paths taken, by pipeline stage.",
		}, []string{"stage"}),
		documents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minirag",
			Name:      "documents_ingested_total",
			Help:      "Documents ingested, by storage mode.",
		}, []string{"storage"}),
		queryLogFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "minirag",
			Name:      "query_log_failures_total",
			Help:      "Query log writes that failed and were dropped.",
		}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "minirag",
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent per pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
}

func (m *Metrics) QueryAnswered(retrieval string) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(retrieval).Inc()
}

func (m *Metrics) Fallback(stage string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(stage).Inc()
}

func (m *Metrics) DocumentIngested(storage string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(storage).Inc()
}

func (m *Metrics) QueryLogFailed() {
	if m == nil {
		return
	}
	m.queryLogFailures.Inc()
}

// ObserveStage records the time elapsed since start for the named stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
