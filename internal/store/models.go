package store

import "github.com/Bhupendraa307/MiniRAG/internal/core"

// DataChunk is one row of the SQLite vector index.
type DataChunk struct {
	ID            string        `json:"id"`
	DocumentID    string        `json:"document_id"`
	Content       string        `json:"content"`
	Metadata      core.Metadata `json:"metadata"`
	Embedding     []float32     `json:"-"` // internal
	EmbeddingJSON string        `json:"-"` // Store as JSON string for DB
}
