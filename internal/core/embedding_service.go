package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Bhupendraa307/MiniRAG/internal/logging"
	"github.com/Bhupendraa307/MiniRAG/internal/metrics"
	"github.com/Bhupendraa307/MiniRAG/internal/utils"
)

const (
	DefaultEmbeddingRetries = 3
	defaultCallTimeout      = 30 * time.Second
)

// EmbeddingService wraps an EmbeddingClient with the retry and degradation
// policy. It never returns an error: failures yield all-zero vectors.
type EmbeddingService struct {
	client     EmbeddingClient
	dimension  int
	maxRetries int
	timeout    time.Duration
	backoff    func(attempt int) time.Duration
	limiter    *rate.Limiter
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

type EmbeddingOption func(*EmbeddingService)

func WithMaxRetries(n int) EmbeddingOption {
	return func(s *EmbeddingService) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

func WithCallTimeout(d time.Duration) EmbeddingOption {
	return func(s *EmbeddingService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBackoff replaces the 2^attempt seconds schedule.
func WithBackoff(fn func(attempt int) time.Duration) EmbeddingOption {
	return func(s *EmbeddingService) {
		if fn != nil {
			s.backoff = fn
		}
	}
}

// WithRateLimit caps embedding requests per second. Zero or less disables it.
func WithRateLimit(perSecond float64) EmbeddingOption {
	return func(s *EmbeddingService) {
		if perSecond > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			s.limiter = nil
		}
	}
}

func WithEmbeddingMetrics(m *metrics.Metrics) EmbeddingOption {
	return func(s *EmbeddingService) { s.metrics = m }
}

func NewEmbeddingService(client EmbeddingClient, dimension int, logger *zap.Logger, opts ...EmbeddingOption) *EmbeddingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &EmbeddingService{
		client:     client,
		dimension:  dimension,
		maxRetries: DefaultEmbeddingRetries,
		timeout:    defaultCallTimeout,
		backoff:    exponentialBackoff,
		logger:     logger.With(zap.String("component", "embedding")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func (s *EmbeddingService) Dimension() int { return s.dimension }

// Embed returns one vector per text. On quota exhaustion or after the retry
// budget is spent the result is Degraded and holds all-zero vectors.
func (s *EmbeddingService) Embed(ctx context.Context, texts []string) Result[[][]float32] {
	if len(texts) == 0 {
		return Ok([][]float32{})
	}

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		vectors, err := s.attempt(ctx, texts)
		if err == nil {
			return Ok(vectors)
		}
		lastErr = err

		if IsQuotaError(err) {
			s.logger.Error("Embedding quota exceeded, using zero vectors", logging.Err(err))
			return s.degraded(len(texts), "embedding quota exhausted")
		}
		if attempt < s.maxRetries-1 {
			wait := s.backoff(attempt)
			s.logger.Warn("Embedding attempt failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Duration("wait", wait),
				logging.Err(err))
			if !sleepCtx(ctx, wait) {
				lastErr = ctx.Err()
				break
			}
		}
	}

	s.logger.Error("Embedding failed after retries, using zero vectors",
		zap.Int("attempts", s.maxRetries),
		logging.Err(lastErr))
	return s.degraded(len(texts), "embedding retries exhausted")
}

func (s *EmbeddingService) attempt(ctx context.Context, texts []string) ([][]float32, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vectors, err := s.client.EmbedTexts(callCtx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d inputs", len(vectors), len(texts))
	}
	return vectors, nil
}

func (s *EmbeddingService) degraded(n int, reason string) Result[[][]float32] {
	s.metrics.Fallback("embedding")
	return Degraded(utils.ZeroVectors(n, s.dimension), reason)
}

// sleepCtx waits for d or until ctx is done. It reports whether the full wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
