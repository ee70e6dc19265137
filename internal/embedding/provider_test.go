package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.brainbox/internal/apperrors"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedDense(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "dense-model", req.Model)
		require.Len(t, req.Input, 1)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{0.1, 0.2, 0.3}}},
		})
	})

	p := NewHTTPProvider(Config{
		BaseURL:    srv.URL,
		APIKey:     "secret",
		DenseModel: "dense-model",
		DenseDim:   3,
	}, nil)

	vec, err := p.EmbedDense(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbedDenseDimensionMismatch(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{0.1}}},
		})
	})

	p := NewHTTPProvider(Config{BaseURL: srv.URL, DenseDim: 3}, nil)

	_, err := p.EmbedDense(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
}

func TestEmbedSparse(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings/sparse", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{
				"indices": []uint32{2, 7, 11},
				"values":  []float32{0.5, 0.2, 0.9},
			}},
		})
	})

	p := NewHTTPProvider(Config{BaseURL: srv.URL, SparseModel: "sparse-model"}, nil)

	vec, err := p.EmbedSparse(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 7, 11}, vec.Indices)
	assert.Equal(t, []float32{0.5, 0.2, 0.9}, vec.Values)
}

func TestEmbedSparseRejectsUnsortedIndices(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{
				"indices": []uint32{7, 2},
				"values":  []float32{0.5, 0.2},
			}},
		})
	})

	p := NewHTTPProvider(Config{BaseURL: srv.URL}, nil)

	_, err := p.EmbedSparse(context.Background(), "hello")
	assert.Error(t, err)
}

func TestEmbedStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   apperrors.Kind
	}{
		{"rate limited is transient", http.StatusTooManyRequests, apperrors.KindTransient},
		{"server error is transient", http.StatusBadGateway, apperrors.KindTransient},
		{"client error is internal", http.StatusBadRequest, apperrors.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			p := NewHTTPProvider(Config{BaseURL: srv.URL}, nil)

			_, err := p.EmbedDense(context.Background(), "hello")
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
		})
	}
}

func TestFakeDeterminism(t *testing.T) {
	f := NewFake(8)
	ctx := context.Background()

	a1, err := f.EmbedDense(ctx, "the capital of atlantis")
	require.NoError(t, err)
	a2, err := f.EmbedDense(ctx, "the capital of atlantis")
	require.NoError(t, err)
	assert.Equal(t, a1, a2)

	s1, err := f.EmbedSparse(ctx, "the capital of atlantis")
	require.NoError(t, err)
	s2, err := f.EmbedSparse(ctx, "the capital of atlantis")
	require.NoError(t, err)
	assert.Equal(t, s1, s2)

	require.Equal(t, len(s1.Indices), len(s1.Values))
	for i := 1; i < len(s1.Indices); i++ {
		assert.Less(t, s1.Indices[i-1], s1.Indices[i])
	}
}
