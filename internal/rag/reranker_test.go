package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docsFixture() []Document {
	return []Document{
		{Content: "first"},
		{Content: "second"},
		{Content: "third"},
		{Content: "fourth"},
	}
}

func rerankServer(t *testing.T, handler http.HandlerFunc) *HTTPReranker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPReranker(RerankerConfig{BaseURL: srv.URL, Model: "cross-encoder"}, nil)
}

func TestRerankOrdersByScore(t *testing.T) {
	r := rerankServer(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/rerank", req.URL.Path)
		var body rerankRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "cross-encoder", body.Model)
		assert.Len(t, body.Documents, 4)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 2, "relevance_score": 0.9},
				{"index": 0, "relevance_score": 0.7},
				{"index": 3, "relevance_score": 0.4},
				{"index": 1, "relevance_score": 0.1},
			},
		})
	})

	out, err := r.Rerank(context.Background(), "q", docsFixture(), 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "third", out[0].Content)
	assert.Equal(t, "first", out[1].Content)
	assert.Equal(t, "fourth", out[2].Content)

	// Scores are non-increasing.
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].Score, out[i].Score)
	}
}

func TestRerankTiesKeepRetrievalOrder(t *testing.T) {
	r := rerankServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 3, "relevance_score": 0.5},
				{"index": 1, "relevance_score": 0.5},
				{"index": 0, "relevance_score": 0.5},
			},
		})
	})

	out, err := r.Rerank(context.Background(), "q", docsFixture(), 4)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "first", out[0].Content)
	assert.Equal(t, "second", out[1].Content)
	assert.Equal(t, "fourth", out[2].Content)
}

func TestRerankEmptyInput(t *testing.T) {
	r := rerankServer(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("backend must not be called for empty input")
	})

	out, err := r.Rerank(context.Background(), "q", nil, 4)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRerankRejectsOutOfRangeIndex(t *testing.T) {
	r := rerankServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"index": 42, "relevance_score": 0.5}},
		})
	})

	_, err := r.Rerank(context.Background(), "q", docsFixture(), 4)
	require.Error(t, err)
}

func TestPassthroughRerankerTruncates(t *testing.T) {
	out, err := PassthroughReranker{}.Rerank(context.Background(), "q", docsFixture(), 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Content)
	assert.Equal(t, "second", out[1].Content)
}
