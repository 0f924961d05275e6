// Package rerank adapts the Cohere SDK to core.RerankClient.
package rerank

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	coherecore "github.com/cohere-ai/cohere-go/v2/core"
	"github.com/cohere-ai/cohere-go/v2/option"

	"github.com/Bhupendraa307/MiniRAG/internal/core"
)

const (
	DefaultBaseURL = "https://api.cohere.com"
	DefaultModel   = "rerank-english-v3.0"
)

// Client calls Cohere's v2 rerank endpoint. It implements core.RerankClient.
type Client struct {
	co    *cohereclient.Client
	model string
}

var _ core.RerankClient = (*Client)(nil)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing cohere api key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	co := cohereclient.NewClient(
		option.WithToken(cfg.APIKey),
		option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		option.WithHTTPClient(&http.Client{Timeout: t}),
		// Retries belong to the caller's circuit breaker.
		option.WithMaxAttempts(1),
	)
	return &Client{co: co, model: cfg.Model}, nil
}

// Rerank returns hits best first, as ranked by the service.
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topN int) ([]core.RerankHit, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	req := &cohere.V2RerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: documents,
	}
	if topN > 0 {
		req.TopN = &topN
	}

	resp, err := c.co.V2.Rerank(ctx, req)
	if err != nil {
		return nil, classifyError(err)
	}
	if resp == nil {
		return nil, errors.New("cohere rerank returned an empty response")
	}

	hits := make([]core.RerankHit, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r == nil {
			continue
		}
		hits = append(hits, core.RerankHit{Index: r.Index, Score: r.RelevanceScore})
	}
	return hits, nil
}

// classifyError marks rate limiting as quota exhaustion and keeps the HTTP
// status in the message.
func classifyError(err error) error {
	var tooMany *cohere.TooManyRequestsError
	if errors.As(err, &tooMany) {
		return fmt.Errorf("%w: cohere rerank failed: %w", core.ErrQuotaExhausted, err)
	}
	var apiErr *coherecore.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: cohere rerank failed: %w", core.ErrQuotaExhausted, err)
		}
		return fmt.Errorf("cohere rerank failed with status %d: %w", apiErr.StatusCode, err)
	}
	return fmt.Errorf("cohere rerank request failed: %w", err)
}
