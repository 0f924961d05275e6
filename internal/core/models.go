package core

import "time"

// Storage modes of a persisted document.
const (
	StorageIndexed      = "indexed"
	StorageTextFallback = "text_fallback"
)

// Origin records which retrieval path produced a RetrievedItem.
type Origin string

const (
	OriginVector  Origin = "vector"
	OriginLexical Origin = "lexical"
)

// RetrievalMode is the retrieval path a query ended up on.
type RetrievalMode string

const (
	RetrievalVector  RetrievalMode = "vector"
	RetrievalLexical RetrievalMode = "lexical"
	RetrievalNone    RetrievalMode = "none"
)

type Metadata map[string]any

// MergeMetadata returns a new map holding base overlaid with override.
// Keys present in override win. Neither argument is modified.
func MergeMetadata(base, override Metadata) Metadata {
	out := make(Metadata, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

type Chunk struct {
	Text  string `json:"text"`
	Index int    `json:"index"`
}

// Document is either indexed (ChunkIDs set) or text_fallback (Chunks set), never both.
type Document struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	StorageType string    `json:"storage_type"`
	ChunkIDs    []string  `json:"chunk_ids,omitempty"`
	Chunks      []string  `json:"chunks,omitempty"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// VectorRecord is one chunk vector written to the vector index.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata Metadata
}

// FallbackChunk is a raw chunk from a text_fallback document.
type FallbackChunk struct {
	DocumentID string
	Filename   string
	Index      int
	Text       string
}

type RetrievedItem struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	Score       float64  `json:"score"`
	RerankScore *float64 `json:"rerank_score,omitempty"`
	Origin      Origin   `json:"origin"`
	Metadata    Metadata `json:"metadata"`
}

type Citation struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Answer is the generator output for one query.
type Answer struct {
	Text    string
	Usage   TokenUsage
	Latency float64 // seconds
}

type QueryResult struct {
	Answer     string
	Citations  []Citation
	TokenUsage TokenUsage
	Latency    float64
	Retrieval  RetrievalMode
	// Degraded is set when any stage fell back to a reduced-quality path.
	Degraded bool
}

type QueryLogEntry struct {
	ID             int64         `json:"id,omitempty"`
	Query          string        `json:"query"`
	Answer         string        `json:"answer"`
	Citations      []Citation    `json:"citations"`
	TokenUsage     TokenUsage    `json:"token_usage"`
	LatencySeconds float64       `json:"latency_seconds"`
	Retrieval      RetrievalMode `json:"retrieval"`
	Degraded       bool          `json:"degraded"`
	Timestamp      time.Time     `json:"timestamp"`
}
