package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Bhupendraa307/MiniRAG/internal/cache"
	"github.com/Bhupendraa307/MiniRAG/internal/config"
	"github.com/Bhupendraa307/MiniRAG/internal/core"
	"github.com/Bhupendraa307/MiniRAG/internal/metrics"
	"github.com/Bhupendraa307/MiniRAG/internal/rerank"
	"github.com/Bhupendraa307/MiniRAG/internal/store"
	"github.com/Bhupendraa307/MiniRAG/internal/vectorindex"
)

// app holds every wired component. close releases them in reverse order.
type app struct {
	store    *store.SQLiteStore
	rag      *core.RAGService
	registry *prometheus.Registry
	closers  []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(a.registry)

	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.store = dbStore
	a.closers = append(a.closers, func() {
		if err := dbStore.Close(); err != nil {
			logger.Error("Error closing database", zap.Error(err))
		}
	})

	llmService, err := core.NewLLMService(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel, cfg.ChatModel, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, llmService.Close)

	var embedClient core.EmbeddingClient = llmService
	if cfg.RedisURL != "" {
		kv, err := cache.NewRedisKV(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Embedding cache disabled", zap.Error(err))
		} else {
			a.closers = append(a.closers, func() { kv.Close() })
			embedClient = cache.NewCachedEmbedder(llmService, kv, llmService.EmbeddingModel(), cfg.EmbedCacheTTL, logger)
		}
	}

	var index core.VectorIndex
	switch cfg.VectorBackend {
	case config.VectorBackendWeaviate:
		index, err = vectorindex.NewWeaviate(ctx, vectorindex.WeaviateConfig{
			Host:      cfg.WeaviateHost,
			Scheme:    cfg.WeaviateScheme,
			APIKey:    cfg.WeaviateAPIKey,
			ClassName: cfg.WeaviateClass,
			Timeout:   cfg.ServiceTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize weaviate index: %w", err)
		}
	default:
		index = store.NewVectorIndex(dbStore)
	}

	rerankClient, err := rerank.NewClient(rerank.Config{
		BaseURL: cfg.CohereBaseURL,
		APIKey:  cfg.CohereAPIKey,
		Model:   cfg.RerankModel,
		Timeout: cfg.ServiceTimeout,
	})
	if err != nil {
		return nil, err
	}

	ragService, err := core.NewRAGService(core.Deps{
		Embedder: core.NewEmbeddingService(embedClient, cfg.EmbeddingDimension, logger,
			core.WithMaxRetries(cfg.EmbedMaxRetries),
			core.WithCallTimeout(cfg.ServiceTimeout),
			core.WithRateLimit(cfg.EmbedRateLimit),
			core.WithEmbeddingMetrics(m),
		),
		Index:     index,
		Reranker:  core.NewRerankService(rerankClient, cfg.ServiceTimeout, logger, m),
		Generator: core.NewAnswerGenerator(llmService, cfg.ServiceTimeout, logger, m),
		Store:     dbStore,
		Logger:    logger,
		Metrics:   m,
	}, core.Options{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		TopK:         cfg.TopK,
		RerankTopK:   cfg.RerankTopK,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize RAG service: %w", err)
	}
	a.rag = ragService
	// Flush pending query log writes before the store closes.
	a.closers = append(a.closers, ragService.Wait)

	return a, nil
}
