package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"dev.helix.brainbox/internal/apperrors"
	"dev.helix.brainbox/internal/embedding"
	"dev.helix.brainbox/internal/llm"
	"dev.helix.brainbox/internal/observability"
	"dev.helix.brainbox/internal/vectordb"
)

// RetrieverConfig bounds one retrieval pass.
type RetrieverConfig struct {
	// PrefetchLimit is how many candidates each vector space contributes
	// before reranking.
	PrefetchLimit uint64 `json:"prefetch_limit"`
	// TopK is how many documents survive reranking.
	TopK int `json:"top_k"`
}

// DefaultRetrieverConfig returns the standard retrieval bounds.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{PrefetchLimit: 20, TopK: 4}
}

// Retriever runs the four retrieval strategies against a brain collection.
type Retriever struct {
	store    vectordb.Store
	embedder embedding.Provider
	reranker Reranker
	hydeLLM  llm.Provider
	config   RetrieverConfig
	metrics  *observability.Metrics
	logger   *logrus.Logger
}

// NewRetriever builds a retriever. hydeLLM generates hypothetical documents
// for the HyDE strategy.
func NewRetriever(store vectordb.Store, embedder embedding.Provider, reranker Reranker, hydeLLM llm.Provider, config RetrieverConfig, metrics *observability.Metrics, logger *logrus.Logger) *Retriever {
	if config.PrefetchLimit == 0 {
		config.PrefetchLimit = 20
	}
	if config.TopK <= 0 {
		config.TopK = 4
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		reranker: reranker,
		hydeLLM:  hydeLLM,
		config:   config,
		metrics:  metrics,
		logger:   logger,
	}
}

// Retrieve runs one strategy and returns the reranked documents. pdfIDs
// narrows the search to those files; empty means the whole brain.
func (r *Retriever) Retrieve(ctx context.Context, brainID string, strategy Strategy, query string, pdfIDs []string) ([]Document, error) {
	start := time.Now()
	docs, err := r.retrieve(ctx, brainID, strategy, query, pdfIDs)
	if r.metrics != nil {
		r.metrics.RetrievalDuration.WithLabelValues(string(strategy)).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"brain_id": brainID,
		"strategy": strategy,
		"docs":     len(docs),
	}).Debug("Retrieval complete")
	return docs, nil
}

func (r *Retriever) retrieve(ctx context.Context, brainID string, strategy Strategy, query string, pdfIDs []string) ([]Document, error) {
	filter := vectordb.MatchPDFs(pdfIDs)

	switch strategy {
	case StrategyDense:
		vec, err := r.embedder.EmbedDense(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		return r.search(ctx, brainID, vectordb.DenseQuery{Vector: vec}, filter, query)

	case StrategySparse:
		vec, err := r.embedder.EmbedSparse(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		return r.search(ctx, brainID, vectordb.SparseQuery{Vector: vec}, filter, query)

	case StrategyHybrid:
		dense, err := r.embedder.EmbedDense(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		sparse, err := r.embedder.EmbedSparse(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		spec := vectordb.FusionQuery{Prefetch: []vectordb.Prefetch{
			{Dense: dense, Using: vectordb.UsingDense, Limit: r.config.PrefetchLimit},
			{Sparse: &sparse, Using: vectordb.UsingSparse, Limit: r.config.PrefetchLimit},
		}}
		return r.search(ctx, brainID, spec, filter, query)

	case StrategyHyDE:
		hypothetical, err := r.hydeLLM.Complete(ctx, llm.UserMessage(HyDEPrompt(query)))
		if err != nil {
			return nil, fmt.Errorf("failed to generate hypothetical document: %w", err)
		}
		vec, err := r.embedder.EmbedDense(ctx, hypothetical)
		if err != nil {
			return nil, fmt.Errorf("failed to embed hypothetical document: %w", err)
		}
		// Reranking uses the original question, not the hypothetical text.
		return r.search(ctx, brainID, vectordb.DenseQuery{Vector: vec}, filter, query)

	default:
		return nil, apperrors.E(apperrors.KindInvalid, fmt.Sprintf("unknown retrieval strategy %q", strategy))
	}
}

func (r *Retriever) search(ctx context.Context, brainID string, spec vectordb.QuerySpec, filter *vectordb.Filter, rerankQuery string) ([]Document, error) {
	hits, err := r.store.Query(ctx, brainID, spec, filter, r.config.PrefetchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	docs := make([]Document, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, Document{
			Content:  h.Payload.Content,
			Metadata: h.Payload.Metadata,
			Score:    h.Score,
		})
	}
	return r.reranker.Rerank(ctx, rerankQuery, docs, r.config.TopK)
}
