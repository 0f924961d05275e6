package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"

	"github.com/Bhupendraa307/MiniRAG/internal/core"
)

const (
	DefaultRecentQueries = 20
	MaxRecentQueries     = 100
)

type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ core.DocumentStore = (*SQLiteStore)(nil)

func NewSQLiteStore(dataSourceName string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; the async query log shares this handle.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, logger: logger.With(zap.String("component", "sqlite"))}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS documents (
        id TEXT PRIMARY KEY, -- UUID
        filename TEXT NOT NULL,
        storage_type TEXT NOT NULL CHECK (storage_type IN ('indexed', 'text_fallback')),
        chunk_ids_json TEXT,
        chunks_json TEXT,
        metadata_json TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        CHECK (
            (storage_type = 'indexed' AND chunk_ids_json IS NOT NULL AND chunks_json IS NULL) OR
            (storage_type = 'text_fallback' AND chunks_json IS NOT NULL AND chunk_ids_json IS NULL)
        )
    );

    CREATE TABLE IF NOT EXISTS queries (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        query TEXT NOT NULL,
        answer TEXT NOT NULL,
        citations_json TEXT NOT NULL,
        token_usage_json TEXT NOT NULL,
        latency_seconds REAL NOT NULL,
        retrieval TEXT NOT NULL,
        degraded BOOLEAN DEFAULT FALSE,
        timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS data_chunks (
        id TEXT PRIMARY KEY,
        document_id TEXT,
        content TEXT NOT NULL,
        metadata_json TEXT,
        embedding_json TEXT -- Storing as JSON string of []float32
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// Document methods

func (s *SQLiteStore) StoreIndexedDocument(ctx context.Context, doc core.Document) error {
	if len(doc.ChunkIDs) == 0 {
		return errors.New("indexed document requires chunk ids")
	}
	chunkIDs, err := json.Marshal(doc.ChunkIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal chunk ids: %w", err)
	}
	return s.insertDocument(ctx, doc, core.StorageIndexed, string(chunkIDs), nil)
}

func (s *SQLiteStore) StoreFallbackDocument(ctx context.Context, doc core.Document) error {
	chunks, err := json.Marshal(doc.Chunks)
	if err != nil {
		return fmt.Errorf("failed to marshal chunks: %w", err)
	}
	return s.insertDocument(ctx, doc, core.StorageTextFallback, nil, string(chunks))
}

func (s *SQLiteStore) insertDocument(ctx context.Context, doc core.Document, storageType string, chunkIDs, chunks any) error {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal document metadata: %w", err)
	}
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO documents (id, filename, storage_type, chunk_ids_json, chunks_json, metadata_json, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		doc.ID, doc.Filename, storageType, chunkIDs, chunks, string(metadata), createdAt)
	if err != nil {
		return fmt.Errorf("failed to execute document insert: %w", err)
	}
	return nil
}

// GetDocument returns nil, nil when the document does not exist.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	var (
		doc                        core.Document
		chunkIDs, chunks, metadata sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, filename, storage_type, chunk_ids_json, chunks_json, metadata_json, created_at FROM documents WHERE id = ?", id).
		Scan(&doc.ID, &doc.Filename, &doc.StorageType, &chunkIDs, &chunks, &metadata, &doc.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if chunkIDs.Valid {
		if err := json.Unmarshal([]byte(chunkIDs.String), &doc.ChunkIDs); err != nil {
			return nil, fmt.Errorf("failed to decode chunk ids of %s: %w", id, err)
		}
	}
	if chunks.Valid {
		if err := json.Unmarshal([]byte(chunks.String), &doc.Chunks); err != nil {
			return nil, fmt.Errorf("failed to decode chunks of %s: %w", id, err)
		}
	}
	if metadata.Valid && metadata.String != "null" {
		if err := json.Unmarshal([]byte(metadata.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of %s: %w", id, err)
		}
	}
	return &doc, nil
}

// FallbackChunks returns the raw chunks of every text_fallback document in
// insertion order.
func (s *SQLiteStore) FallbackChunks(ctx context.Context) ([]core.FallbackChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, filename, chunks_json FROM documents WHERE storage_type = ? ORDER BY rowid ASC", core.StorageTextFallback)
	if err != nil {
		return nil, fmt.Errorf("failed to query fallback documents: %w", err)
	}
	defer rows.Close()

	var out []core.FallbackChunk
	for rows.Next() {
		var id, filename, chunksJSON string
		if err := rows.Scan(&id, &filename, &chunksJSON); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		var chunks []string
		if err := json.Unmarshal([]byte(chunksJSON), &chunks); err != nil {
			s.logger.Warn("Skipping document with unreadable chunks", zap.String("document_id", id), zap.Error(err))
			continue
		}
		for i, text := range chunks {
			out = append(out, core.FallbackChunk{DocumentID: id, Filename: filename, Index: i, Text: text})
		}
	}
	return out, rows.Err()
}

// Query log methods

func (s *SQLiteStore) LogQuery(ctx context.Context, entry core.QueryLogEntry) error {
	citations := entry.Citations
	if citations == nil {
		citations = []core.Citation{}
	}
	citationsJSON, err := json.Marshal(citations)
	if err != nil {
		return fmt.Errorf("failed to marshal citations: %w", err)
	}
	usageJSON, err := json.Marshal(entry.TokenUsage)
	if err != nil {
		return fmt.Errorf("failed to marshal token usage: %w", err)
	}
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO queries (query, answer, citations_json, token_usage_json, latency_seconds, retrieval, degraded, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		entry.Query, entry.Answer, string(citationsJSON), string(usageJSON), entry.LatencySeconds, string(entry.Retrieval), entry.Degraded, ts)
	if err != nil {
		return fmt.Errorf("failed to execute query log insert: %w", err)
	}
	return nil
}

// RecentQueries returns up to limit query log entries, newest first.
func (s *SQLiteStore) RecentQueries(ctx context.Context, limit int) ([]core.QueryLogEntry, error) {
	if limit <= 0 {
		limit = DefaultRecentQueries
	}
	limit = min(limit, MaxRecentQueries)

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, query, answer, citations_json, token_usage_json, latency_seconds, retrieval, degraded, timestamp
        FROM queries
        ORDER BY id DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query query log: %w", err)
	}
	defer rows.Close()

	entries := []core.QueryLogEntry{}
	for rows.Next() {
		var (
			e                        core.QueryLogEntry
			citationsJSON, usageJSON string
			retrieval                string
		)
		if err := rows.Scan(&e.ID, &e.Query, &e.Answer, &citationsJSON, &usageJSON, &e.LatencySeconds, &retrieval, &e.Degraded, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan query log row: %w", err)
		}
		e.Retrieval = core.RetrievalMode(retrieval)
		if err := json.Unmarshal([]byte(citationsJSON), &e.Citations); err != nil {
			s.logger.Warn("Query log entry has unreadable citations", zap.Int64("id", e.ID), zap.Error(err))
		}
		if err := json.Unmarshal([]byte(usageJSON), &e.TokenUsage); err != nil {
			s.logger.Warn("Query log entry has unreadable token usage", zap.Int64("id", e.ID), zap.Error(err))
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
