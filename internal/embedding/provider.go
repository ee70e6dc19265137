// Package embedding provides dense and sparse text embedding over an HTTP
// model server, with an optional Redis cache in front.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"dev.helix.brainbox/internal/apperrors"
	"dev.helix.brainbox/internal/vectordb"
)

// Provider encodes text into the two vector spaces every brain collection
// carries. Both calls are deterministic for a given model and text.
type Provider interface {
	// EmbedDense returns a fixed-length embedding.
	EmbedDense(ctx context.Context, text string) ([]float32, error)
	// EmbedSparse returns term-id/weight pairs with ascending, unique
	// indices and matching lengths.
	EmbedSparse(ctx context.Context, text string) (vectordb.SparseVector, error)
	// Dimension returns the dense dimensionality.
	Dimension() int
}

// Config configures the HTTP provider.
type Config struct {
	BaseURL     string        `json:"base_url"`
	APIKey      string        `json:"api_key"`
	DenseModel  string        `json:"dense_model"`
	SparseModel string        `json:"sparse_model"`
	DenseDim    int           `json:"dense_dim"`
	Timeout     time.Duration `json:"timeout"`
}

// HTTPProvider talks to an OpenAI-style embeddings endpoint for dense
// vectors and a sibling sparse endpoint for term weights.
type HTTPProvider struct {
	config     Config
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewHTTPProvider creates a provider over the configured model server.
func NewHTTPProvider(config Config, logger *logrus.Logger) *HTTPProvider {
	if logger == nil {
		logger = logrus.New()
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &HTTPProvider{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

func (p *HTTPProvider) Dimension() int { return p.config.DenseDim }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type denseResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type sparseResponse struct {
	Data []struct {
		Indices []uint32  `json:"indices"`
		Values  []float32 `json:"values"`
	} `json:"data"`
}

// EmbedDense encodes text into the dense vector space.
func (p *HTTPProvider) EmbedDense(ctx context.Context, text string) ([]float32, error) {
	body, err := p.post(ctx, "/embeddings", embedRequest{Model: p.config.DenseModel, Input: []string{text}})
	if err != nil {
		return nil, err
	}

	var resp denseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to decode dense embedding response", err)
	}
	if len(resp.Data) == 0 {
		return nil, apperrors.E(apperrors.KindInternal, "dense embedding response contained no data")
	}
	vec := resp.Data[0].Embedding
	if p.config.DenseDim > 0 && len(vec) != p.config.DenseDim {
		return nil, apperrors.E(apperrors.KindInternal,
			fmt.Sprintf("dense embedding has dimension %d, expected %d", len(vec), p.config.DenseDim))
	}
	return vec, nil
}

// EmbedSparse encodes text into the sparse vector space.
func (p *HTTPProvider) EmbedSparse(ctx context.Context, text string) (vectordb.SparseVector, error) {
	body, err := p.post(ctx, "/embeddings/sparse", embedRequest{Model: p.config.SparseModel, Input: []string{text}})
	if err != nil {
		return vectordb.SparseVector{}, err
	}

	var resp sparseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return vectordb.SparseVector{}, apperrors.Wrap(apperrors.KindInternal, "failed to decode sparse embedding response", err)
	}
	if len(resp.Data) == 0 {
		return vectordb.SparseVector{}, apperrors.E(apperrors.KindInternal, "sparse embedding response contained no data")
	}

	vec := vectordb.SparseVector{
		Indices: resp.Data[0].Indices,
		Values:  resp.Data[0].Values,
	}
	if err := validateSparse(vec); err != nil {
		return vectordb.SparseVector{}, err
	}
	return vec, nil
}

func (p *HTTPProvider) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to marshal embedding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to create embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTransient, "embedding request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTransient, "failed to read embedding response", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperrors.E(apperrors.KindTransient,
			fmt.Sprintf("embedding backend returned status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, apperrors.E(apperrors.KindInternal,
			fmt.Sprintf("embedding backend returned status %d: %s", resp.StatusCode, string(body)))
	}
	return body, nil
}

func validateSparse(v vectordb.SparseVector) error {
	if len(v.Indices) != len(v.Values) {
		return apperrors.E(apperrors.KindInternal,
			fmt.Sprintf("sparse embedding has %d indices but %d values", len(v.Indices), len(v.Values)))
	}
	for i := 1; i < len(v.Indices); i++ {
		if v.Indices[i] <= v.Indices[i-1] {
			return apperrors.E(apperrors.KindInternal, "sparse embedding indices are not strictly ascending")
		}
	}
	return nil
}
