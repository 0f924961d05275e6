package core

import "context"

// EmbeddingClient is the raw embedding provider. It returns one vector per input.
type EmbeddingClient interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Completion is a raw generation response.
type Completion struct {
	Text  string
	Usage TokenUsage
}

// CompletionClient is the raw generative model.
type CompletionClient interface {
	Complete(ctx context.Context, systemInstruction, prompt string) (Completion, error)
}

// VectorIndex stores chunk vectors and answers nearest-neighbour queries,
// best match first.
type VectorIndex interface {
	Upsert(ctx context.Context, records []VectorRecord) error
	Query(ctx context.Context, vector []float32, k int) ([]RetrievedItem, error)
	// Delete removes records by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error
}

// RerankHit is one reranked document: its position in the input and its relevance.
type RerankHit struct {
	Index int
	Score float64
}

// RerankClient is the raw cross-encoder service.
type RerankClient interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankHit, error)
}

// DocumentStore persists documents and the query audit log.
type DocumentStore interface {
	StoreIndexedDocument(ctx context.Context, doc Document) error
	StoreFallbackDocument(ctx context.Context, doc Document) error
	// FallbackChunks returns every chunk of every text_fallback document
	// in insertion order.
	FallbackChunks(ctx context.Context) ([]FallbackChunk, error)
	LogQuery(ctx context.Context, entry QueryLogEntry) error
}
