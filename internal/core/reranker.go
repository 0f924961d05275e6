package core

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Bhupendraa307/MiniRAG/internal/logging"
	"github.com/Bhupendraa307/MiniRAG/internal/metrics"
)

// RerankService reorders retrieval candidates with an external cross-encoder.
// Any failure falls back to the first topK items in their original order.
type RerankService struct {
	client  RerankClient
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewRerankService(client RerankClient, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *RerankService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	logger = logger.With(zap.String("component", "reranker"))
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "reranker",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &RerankService{
		client:  client,
		breaker: breaker,
		timeout: timeout,
		logger:  logger,
		metrics: m,
	}
}

func (s *RerankService) Rerank(ctx context.Context, query string, items []RetrievedItem, topK int) Result[[]RetrievedItem] {
	if len(items) == 0 {
		return Ok([]RetrievedItem{})
	}
	passThrough := items[:min(topK, len(items))]

	documents := make([]string, len(items))
	for i, it := range items {
		documents[i] = it.Text
	}

	out, err := s.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.client.Rerank(callCtx, query, documents, topK)
	})
	if err != nil {
		s.logger.Warn("Reranking failed, using original order", logging.Err(err))
		s.metrics.Fallback("rerank")
		return Degraded(passThrough, "rerank unavailable")
	}

	hits, _ := out.([]RerankHit)
	reranked := make([]RetrievedItem, 0, min(topK, len(hits)))
	for _, h := range hits {
		if h.Index < 0 || h.Index >= len(items) {
			continue
		}
		if len(reranked) == topK {
			break
		}
		item := items[h.Index]
		score := h.Score
		item.RerankScore = &score
		reranked = append(reranked, item)
	}
	return Ok(reranked)
}
