package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Bhupendraa307/MiniRAG/internal/logging"
	"github.com/Bhupendraa307/MiniRAG/internal/metrics"
)

const (
	answerSystemInstruction = "You are a helpful assistant that answers questions based on provided context. " +
		"Always include inline citations [1], [2], etc. when referencing sources."

	fallbackLeadIn       = "Based on available info:\n\n"
	fallbackEmptyContext = "Found some information but can't generate answer right now."
	fallbackMaxSources   = 3
	fallbackExcerptLen   = 300
	fallbackLatency      = 0.1
)

// AnswerGenerator turns retrieved context into a cited answer.
type AnswerGenerator struct {
	client  CompletionClient
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewAnswerGenerator(client CompletionClient, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *AnswerGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &AnswerGenerator{
		client:  client,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "generator")),
		metrics: m,
	}
}

// Generate answers query from items. Quota exhaustion yields a Degraded
// extractive answer; any other failure is Fatal.
func (g *AnswerGenerator) Generate(ctx context.Context, query string, items []RetrievedItem) Result[Answer] {
	prompt := BuildPrompt(query, items)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	completion, err := g.client.Complete(callCtx, answerSystemInstruction, prompt)
	latency := time.Since(start).Seconds()
	if err != nil {
		if IsQuotaError(err) {
			g.logger.Error("Generation quota exceeded, using extractive answer", logging.Err(err))
			g.metrics.Fallback("generate")
			return Degraded(Answer{
				Text:    ExtractiveAnswer(items),
				Latency: fallbackLatency,
			}, "generation quota exhausted")
		}
		g.logger.Error("Error generating answer", logging.Err(err))
		return Fatal[Answer](&HardServiceError{Op: "generate answer", Err: err})
	}

	return Ok(Answer{
		Text:    completion.Text,
		Usage:   completion.Usage,
		Latency: latency,
	})
}

// FormatContext renders items as "[i] text" blocks, 1-indexed, in order.
func FormatContext(items []RetrievedItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("[%d] %s", i+1, it.Text)
	}
	return strings.Join(parts, "\n\n")
}

func BuildPrompt(query string, items []RetrievedItem) string {
	return fmt.Sprintf(`Based on the following context, answer the user's question. Include inline citations using [1], [2], etc. format for each source used.

Context:
%s

Question: %s

Answer with citations:`, FormatContext(items), query)
}

// ExtractiveAnswer quotes up to three leading sources when no model is available.
func ExtractiveAnswer(items []RetrievedItem) string {
	if len(items) == 0 {
		return fallbackEmptyContext
	}
	n := min(len(items), fallbackMaxSources)
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("[%d] %s", i+1, truncateRunes(items[i].Text, fallbackExcerptLen))
	}
	return fallbackLeadIn + strings.Join(parts, "\n\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
