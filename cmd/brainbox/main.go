// BrainBox is a multi-tenant retrieval-augmented question answering service
// over PDF corpora.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"dev.helix.brainbox/internal/catalog"
	"dev.helix.brainbox/internal/chunker"
	"dev.helix.brainbox/internal/config"
	"dev.helix.brainbox/internal/embedding"
	"dev.helix.brainbox/internal/handlers"
	"dev.helix.brainbox/internal/ingest"
	"dev.helix.brainbox/internal/llm"
	"dev.helix.brainbox/internal/observability"
	"dev.helix.brainbox/internal/rag"
	"dev.helix.brainbox/internal/router"
	"dev.helix.brainbox/internal/vectordb/qdrant"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	store, err := qdrant.NewClient(&qdrant.Config{
		Host:          cfg.Qdrant.Host,
		Port:          cfg.Qdrant.Port,
		APIKey:        cfg.Qdrant.APIKey,
		UseTLS:        cfg.Qdrant.UseTLS,
		Timeout:       cfg.Qdrant.Timeout,
		UpsertRetries: cfg.Qdrant.UpsertRetries,
		UpsertBackoff: cfg.Qdrant.UpsertBackoff,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Qdrant")
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.HealthCheck(ctx); err != nil {
		logger.WithError(err).Fatal("Qdrant health check failed")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := observability.NewMetrics(registry)

	var embedder embedding.Provider = embedding.NewHTTPProvider(embedding.Config{
		BaseURL:     cfg.Embedding.BaseURL,
		APIKey:      cfg.Embedding.APIKey,
		DenseModel:  cfg.Embedding.DenseModel,
		SparseModel: cfg.Embedding.SparseModel,
		DenseDim:    cfg.Embedding.DenseDim,
		Timeout:     cfg.Embedding.Timeout,
	}, logger)
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		embedder = embedding.NewCachedProvider(embedder, redisClient, cfg.Redis.TTL,
			cfg.Embedding.DenseModel, cfg.Embedding.SparseModel, logger)
		logger.WithField("addr", cfg.Redis.Addr).Info("Embedding cache enabled")
	}

	answerLLM := llm.NewRateLimited(llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.AnswerModel,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
	}, logger), cfg.LLM.RatePerSecond, cfg.LLM.RateBurst)

	rewardLLM := llm.NewClient(llm.Config{
		BaseURL:    cfg.LLM.RewardBaseURL,
		APIKey:     cfg.LLM.RewardAPIKey,
		Model:      cfg.LLM.RewardModel,
		Timeout:    cfg.LLM.Timeout,
		MaxRetries: cfg.LLM.MaxRetries,
	}, logger)

	instructLLM := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.RewardBaseURL,
		APIKey:      cfg.LLM.RewardAPIKey,
		Model:       cfg.LLM.InstructModel,
		Temperature: 0.4,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
	}, logger)

	var reranker rag.Reranker = rag.PassthroughReranker{}
	if cfg.Reranker.Endpoint != "" {
		reranker = rag.NewHTTPReranker(rag.RerankerConfig{
			BaseURL: cfg.Reranker.Endpoint,
			APIKey:  cfg.Reranker.APIKey,
			Model:   cfg.Reranker.Model,
			Timeout: cfg.Reranker.Timeout,
		}, logger)
	}

	cat := catalog.New(store, cfg.Qdrant.RegistryCollection, uint64(cfg.Embedding.DenseDim), logger)
	if err := cat.EnsureRegistry(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to ensure registry collection")
	}

	pipeline := ingest.New(store, cat, chunker.New(logger), embedder,
		cfg.Ingestion.EmbedConcurrency, cfg.Ingestion.UpsertBatchSize, metrics, logger)

	retriever := rag.NewRetriever(store, embedder, reranker, answerLLM, rag.RetrieverConfig{
		PrefetchLimit: uint64(cfg.Retrieval.PrefetchLimit),
		TopK:          cfg.Retrieval.TopK,
	}, metrics, logger)
	orchestrator := rag.NewOrchestrator(retriever, answerLLM, metrics, logger)
	evaluator := rag.NewEvaluator(rewardLLM, instructLLM, logger)
	batchEval := rag.NewBatchEvaluator(orchestrator, evaluator, logger)

	h := handlers.New(cat, pipeline, orchestrator, evaluator, batchEval, logger)
	engine := router.New(h, metrics, registry, logger, router.Options{
		Mode:                  cfg.Server.Mode,
		MaxBodyBytes:          cfg.Server.MaxUploadBytes,
		DisableRequestLogging: !cfg.Server.RequestLogging,
	})

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("addr", srv.Addr).Info("BrainBox listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}
