package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"dev.helix.brainbox/internal/apperrors"
)

// Reranker reorders retrieved documents with a cross-encoder and keeps the
// top k. The result length is min(k, len(docs)); scores are non-increasing
// and ties keep the original retrieval order.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []Document, k int) ([]Document, error)
}

// RerankerConfig configures the HTTP cross-encoder.
type RerankerConfig struct {
	BaseURL string        `json:"base_url"`
	APIKey  string        `json:"api_key"`
	Model   string        `json:"model"`
	Timeout time.Duration `json:"timeout"`
}

// HTTPReranker scores all documents against the query in a single batched
// call to a rerank endpoint.
type HTTPReranker struct {
	config     RerankerConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewHTTPReranker creates a reranker over the configured endpoint.
func NewHTTPReranker(config RerankerConfig, logger *logrus.Logger) *HTTPReranker {
	if logger == nil {
		logger = logrus.New()
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &HTTPReranker{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float32 `json:"relevance_score"`
	} `json:"results"`
}

func (r *HTTPReranker) Rerank(ctx context.Context, query string, docs []Document, k int) ([]Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 4
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	payload, err := json.Marshal(rerankRequest{
		Model:     r.config.Model,
		Query:     query,
		Documents: texts,
		TopN:      k,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to marshal rerank request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.BaseURL+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to create rerank request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.config.APIKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTransient, "rerank request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTransient, "failed to read rerank response", err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperrors.E(apperrors.KindTransient,
			fmt.Sprintf("rerank backend returned status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, apperrors.E(apperrors.KindInternal,
			fmt.Sprintf("rerank backend returned status %d: %s", resp.StatusCode, string(body)))
	}

	var parsed rerankResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to decode rerank response", err)
	}

	type scored struct {
		idx   int
		score float32
	}
	hits := make([]scored, 0, len(parsed.Results))
	for _, res := range parsed.Results {
		if res.Index < 0 || res.Index >= len(docs) {
			return nil, apperrors.E(apperrors.KindInternal,
				fmt.Sprintf("rerank result index %d out of range", res.Index))
		}
		hits = append(hits, scored{idx: res.Index, score: res.RelevanceScore})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].idx < hits[j].idx
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]Document, 0, len(hits))
	for _, h := range hits {
		d := docs[h.idx]
		d.Score = h.score
		out = append(out, d)
	}
	return out, nil
}

// PassthroughReranker keeps the retrieval order and truncates to k. Used
// when no cross-encoder endpoint is configured.
type PassthroughReranker struct{}

func (PassthroughReranker) Rerank(_ context.Context, _ string, docs []Document, k int) ([]Document, error) {
	if k <= 0 {
		k = 4
	}
	if len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}
