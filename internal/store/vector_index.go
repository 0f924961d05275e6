package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/Bhupendraa307/MiniRAG/internal/core"
	"github.com/Bhupendraa307/MiniRAG/internal/utils"
)

// VectorIndex keeps chunk embeddings in the data_chunks table and ranks them
// by cosine similarity in process. It suits small corpora only.
type VectorIndex struct {
	store *SQLiteStore
}

var _ core.VectorIndex = (*VectorIndex)(nil)

func NewVectorIndex(store *SQLiteStore) *VectorIndex {
	return &VectorIndex{store: store}
}

func (v *VectorIndex) Upsert(ctx context.Context, records []core.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin data_chunk upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO data_chunks (id, document_id, content, metadata_json, embedding_json) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare data_chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		chunk := DataChunk{
			ID:        rec.ID,
			Content:   rec.Text,
			Metadata:  rec.Metadata,
			Embedding: rec.Vector,
		}
		if docID, ok := rec.Metadata["document_id"].(string); ok {
			chunk.DocumentID = docID
		}
		embeddingBytes, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}
		chunk.EmbeddingJSON = string(embeddingBytes)
		metadataBytes, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", err)
		}

		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Content, string(metadataBytes), chunk.EmbeddingJSON); err != nil {
			return fmt.Errorf("failed to execute data_chunk insert: %w", err)
		}
	}
	return tx.Commit()
}

func (v *VectorIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin data_chunk delete: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM data_chunks WHERE id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare data_chunk delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("failed to delete data_chunk %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Query scores every stored chunk against vector and returns the k best.
func (v *VectorIndex) Query(ctx context.Context, vector []float32, k int) ([]core.RetrievedItem, error) {
	if k <= 0 {
		return nil, nil
	}
	chunks, err := v.allChunks(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]core.RetrievedItem, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			continue
		}
		sim, err := utils.CosineSimilarity(vector, chunk.Embedding)
		if err != nil {
			v.store.logger.Warn("Skipping chunk with incompatible embedding", zap.String("chunk_id", chunk.ID), zap.Error(err))
			continue
		}
		items = append(items, core.RetrievedItem{
			ID:       chunk.ID,
			Text:     chunk.Content,
			Score:    float64(sim),
			Origin:   core.OriginVector,
			Metadata: chunk.Metadata,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
	if len(items) > k {
		items = items[:k]
	}
	return items, nil
}

func (v *VectorIndex) allChunks(ctx context.Context) ([]DataChunk, error) {
	rows, err := v.store.db.QueryContext(ctx, "SELECT id, document_id, content, metadata_json, embedding_json FROM data_chunks ORDER BY rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query data_chunks: %w", err)
	}
	defer rows.Close()

	var chunks []DataChunk
	for rows.Next() {
		var chunk DataChunk
		var metadataJSON, embeddingJSON string
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &metadataJSON, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan data_chunk row: %w", err)
		}
		if metadataJSON != "" {
			if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
				v.store.logger.Warn("Failed to unmarshal chunk metadata", zap.String("chunk_id", chunk.ID), zap.Error(err))
			}
		}
		if embeddingJSON != "" {
			if err := json.Unmarshal([]byte(embeddingJSON), &chunk.Embedding); err != nil {
				v.store.logger.Warn("Failed to unmarshal embedding, chunk is skipped", zap.String("chunk_id", chunk.ID), zap.Error(err))
				chunk.Embedding = nil
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}
