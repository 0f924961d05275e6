package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Bhupendraa307/MiniRAG/internal/logging"
	"github.com/Bhupendraa307/MiniRAG/internal/metrics"
	"github.com/Bhupendraa307/MiniRAG/internal/utils"
)

const (
	NoResultsAnswer = "I couldn't find relevant information to answer your question."

	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 150
	DefaultTopK         = 10
	DefaultRerankTopK   = 5

	queryLogTimeout = 10 * time.Second
)

// Deps are the ports the pipeline is assembled from.
type Deps struct {
	Embedder  *EmbeddingService
	Index     VectorIndex
	Reranker  *RerankService
	Generator *AnswerGenerator
	Store     DocumentStore
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

type Options struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	RerankTopK   int
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunkOverlap < 0 {
		o.ChunkOverlap = DefaultChunkOverlap
	}
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.RerankTopK <= 0 {
		o.RerankTopK = DefaultRerankTopK
	}
	return o
}

// RAGService runs document ingestion and question answering and owns every
// fallback decision between the ports.
type RAGService struct {
	embedder  *EmbeddingService
	index     VectorIndex
	reranker  *RerankService
	generator *AnswerGenerator
	store     DocumentStore
	logger    *zap.Logger
	metrics   *metrics.Metrics
	opts      Options

	logWG sync.WaitGroup
	now   func() time.Time
}

func NewRAGService(deps Deps, opts Options) (*RAGService, error) {
	if deps.Embedder == nil || deps.Index == nil || deps.Reranker == nil || deps.Generator == nil || deps.Store == nil {
		return nil, errors.New("rag service: all ports are required")
	}
	opts = opts.withDefaults()
	if opts.ChunkOverlap >= opts.ChunkSize {
		return nil, &ConfigError{Msg: fmt.Sprintf("chunk overlap %d must be smaller than chunk size %d", opts.ChunkOverlap, opts.ChunkSize)}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RAGService{
		embedder:  deps.Embedder,
		index:     deps.Index,
		reranker:  deps.Reranker,
		generator: deps.Generator,
		store:     deps.Store,
		logger:    logger.With(zap.String("component", "rag")),
		metrics:   deps.Metrics,
		opts:      opts,
		now:       time.Now,
	}, nil
}

// ProcessDocument chunks text and stores it, preferring the vector index and
// falling back to inline raw-text storage. The storage mode is not reported.
func (s *RAGService) ProcessDocument(ctx context.Context, text, filename string) (string, error) {
	chunks, err := ChunkText(text, s.opts.ChunkSize, s.opts.ChunkOverlap)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "", &ValidationError{Msg: "Document text is empty"}
	}

	doc := Document{
		ID:        uuid.NewString(),
		Filename:  filename,
		CreatedAt: s.now().UTC(),
	}

	start := time.Now()
	err = s.storeIndexed(ctx, &doc, chunks)
	s.metrics.ObserveStage("ingest_index", start)
	if err == nil {
		s.metrics.DocumentIngested(StorageIndexed)
		s.logger.Info("Processed document",
			zap.String("document_id", doc.ID),
			zap.String("filename", logging.Clean(filename)),
			zap.Int("chunks", len(chunks)))
		return doc.ID, nil
	}

	s.logger.Warn("Embedding storage failed, using text fallback", logging.Err(err))
	s.metrics.Fallback("ingest")

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	fallback := Document{
		ID:          doc.ID,
		Filename:    filename,
		StorageType: StorageTextFallback,
		Chunks:      texts,
		CreatedAt:   doc.CreatedAt,
	}
	if err := s.store.StoreFallbackDocument(ctx, fallback); err != nil {
		return "", &HardServiceError{Op: "store document", Err: err}
	}
	s.metrics.DocumentIngested(StorageTextFallback)
	s.logger.Info("Processed document in text mode",
		zap.String("document_id", doc.ID),
		zap.String("filename", logging.Clean(filename)),
		zap.Int("chunks", len(chunks)))
	return doc.ID, nil
}

func (s *RAGService) storeIndexed(ctx context.Context, doc *Document, chunks []Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	emb := s.embedder.Embed(ctx, texts)
	if emb.Status != StatusOK {
		return fmt.Errorf("embeddings unavailable: %s", emb.Reason)
	}

	base := Metadata{
		"filename":     doc.Filename,
		"total_chunks": len(chunks),
		"document_id":  doc.ID,
	}
	records := make([]VectorRecord, len(chunks))
	chunkIDs := make([]string, len(chunks))
	for i, c := range chunks {
		chunkIDs[i] = uuid.NewString()
		records[i] = VectorRecord{
			ID:     chunkIDs[i],
			Vector: emb.Value[i],
			Text:   c.Text,
			Metadata: MergeMetadata(base, Metadata{
				"text":        c.Text,
				"chunk_index": c.Index,
			}),
		}
	}
	if err := s.index.Upsert(ctx, records); err != nil {
		return fmt.Errorf("vector upsert: %w", err)
	}

	doc.StorageType = StorageIndexed
	doc.ChunkIDs = chunkIDs
	doc.Metadata = Metadata{"filename": doc.Filename, "total_chunks": len(chunks)}
	if err := s.store.StoreIndexedDocument(ctx, *doc); err != nil {
		// The document falls back to inline text, so its vectors must not
		// stay retrievable.
		if derr := s.index.Delete(ctx, chunkIDs); derr != nil {
			s.logger.Error("Failed to remove orphaned vectors",
				zap.String("document_id", doc.ID), logging.Err(derr))
		}
		return fmt.Errorf("store document metadata: %w", err)
	}
	return nil
}

// Query answers q from the stored corpus.
func (s *RAGService) Query(ctx context.Context, q string) (*QueryResult, error) {
	retrieveStart := time.Now()
	items, mode, degraded := s.retrieve(ctx, q)
	s.metrics.ObserveStage("retrieve", retrieveStart)

	if len(items) == 0 {
		s.metrics.QueryAnswered(string(RetrievalNone))
		return &QueryResult{
			Answer:    NoResultsAnswer,
			Citations: []Citation{},
			Retrieval: RetrievalNone,
			Degraded:  degraded,
		}, nil
	}

	// Lexical hits and already reranked lists skip the reranker.
	var selected []RetrievedItem
	switch {
	case mode == RetrievalLexical, items[0].Origin == OriginLexical, items[0].RerankScore != nil:
		selected = items[:min(s.opts.RerankTopK, len(items))]
	default:
		rerankStart := time.Now()
		rr := s.reranker.Rerank(ctx, q, items, s.opts.RerankTopK)
		s.metrics.ObserveStage("rerank", rerankStart)
		selected = rr.Value
		degraded = degraded || rr.Status == StatusDegraded
	}

	genStart := time.Now()
	gen := s.generator.Generate(ctx, q, selected)
	s.metrics.ObserveStage("generate", genStart)
	switch gen.Status {
	case StatusFatal:
		return nil, gen.Err
	case StatusDegraded:
		degraded = true
	}

	citations := make([]Citation, len(selected))
	for i, it := range selected {
		citations[i] = Citation{ID: it.ID, Text: it.Text, Metadata: it.Metadata}
	}

	result := &QueryResult{
		Answer:     gen.Value.Text,
		Citations:  citations,
		TokenUsage: gen.Value.Usage,
		Latency:    gen.Value.Latency,
		Retrieval:  mode,
		Degraded:   degraded,
	}
	s.metrics.QueryAnswered(string(mode))
	s.logQuery(q, result)
	return result, nil
}

// retrieve tries the vector index first and the lexical fallback second.
func (s *RAGService) retrieve(ctx context.Context, q string) ([]RetrievedItem, RetrievalMode, bool) {
	degraded := false

	emb := s.embedder.Embed(ctx, []string{q})
	switch {
	case emb.Status != StatusOK || len(emb.Value) == 0 || utils.IsZeroVector(emb.Value[0]):
		s.logger.Warn("Query embedding unavailable, skipping vector search", zap.String("reason", emb.Reason))
		degraded = true
	default:
		items, err := s.index.Query(ctx, emb.Value[0], s.opts.TopK)
		if err != nil {
			s.logger.Error("Error in similarity search", logging.Err(err))
			s.metrics.Fallback("vector_query")
			degraded = true
		} else if len(items) > 0 {
			return items, RetrievalVector, false
		}
	}

	s.logger.Info("No vector results, trying text search fallback")
	chunks, err := s.store.FallbackChunks(ctx)
	if err != nil {
		s.logger.Error("Text search error", logging.Err(err))
		s.metrics.Fallback("lexical")
		return nil, RetrievalNone, true
	}
	items := LexicalSearch(q, chunks, s.opts.TopK)
	s.logger.Info("Text search finished",
		zap.Int("results", len(items)),
		zap.String("query", logging.Clean(q)))
	if len(items) == 0 {
		return nil, RetrievalNone, degraded
	}
	return items, RetrievalLexical, degraded
}

// logQuery writes the audit record in the background. Failures are logged
// and counted, never returned.
func (s *RAGService) logQuery(q string, r *QueryResult) {
	entry := QueryLogEntry{
		Query:          q,
		Answer:         r.Answer,
		Citations:      r.Citations,
		TokenUsage:     r.TokenUsage,
		LatencySeconds: r.Latency,
		Retrieval:      r.Retrieval,
		Degraded:       r.Degraded,
		Timestamp:      s.now().UTC(),
	}
	s.logWG.Add(1)
	go func() {
		defer s.logWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), queryLogTimeout)
		defer cancel()
		if err := s.store.LogQuery(ctx, entry); err != nil {
			s.logger.Error("Error logging query", logging.Err(err))
			s.metrics.QueryLogFailed()
		}
	}()
}

// Wait blocks until background query logging has finished.
func (s *RAGService) Wait() {
	s.logWG.Wait()
}
