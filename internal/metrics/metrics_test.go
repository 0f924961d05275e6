package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.QueryAnswered("vector")
	m.QueryAnswered("vector")
	m.Fallback("embedding")
	m.DocumentIngested("text_fallback")
	m.QueryLogFailed()
	m.ObserveStage("generate", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.queries.WithLabelValues("vector")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacks.WithLabelValues("embedding")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documents.WithLabelValues("text_fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queryLogFailures))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.QueryAnswered("none")
		m.Fallback("rerank")
		m.DocumentIngested("indexed")
		m.QueryLogFailed()
		m.ObserveStage("retrieve", time.Now())
	})
}
