package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.brainbox/internal/apperrors"
)

func chatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestCompleteSuccess(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, 0.3, req.Temperature)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "the answer"}},
			},
		})
	})

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key", Model: "test-model", Temperature: 0.3}, nil)

	content, err := c.Complete(context.Background(), UserMessage("question"))
	require.NoError(t, err)
	assert.Equal(t, "the answer", content)
}

func TestCompleteEmptyRequest(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused"}, nil)

	_, err := c.Complete(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalid, apperrors.KindOf(err))
}

func TestCompleteRetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "recovered"}},
			},
		})
	})

	c := NewClient(Config{BaseURL: srv.URL, Model: "m", MaxRetries: 2}, nil)

	content, err := c.Complete(context.Background(), UserMessage("q"))
	require.NoError(t, err)
	assert.Equal(t, "recovered", content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCompleteDoesNotRetryPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	c := NewClient(Config{BaseURL: srv.URL, Model: "m", MaxRetries: 3}, nil)

	_, err := c.Complete(context.Background(), UserMessage("q"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCompleteRateLimitIsTransient(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	c := NewClient(Config{BaseURL: srv.URL, Model: "m"}, nil)

	_, err := c.Complete(context.Background(), UserMessage("q"))
	require.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
}

type stubProvider struct {
	content string
	calls   atomic.Int32
}

func (s *stubProvider) Complete(_ context.Context, _ Request) (string, error) {
	s.calls.Add(1)
	return s.content, nil
}

func TestRateLimitedAllowsBurst(t *testing.T) {
	stub := &stubProvider{content: "ok"}
	limited := NewRateLimited(stub, 100, 1)

	content, err := limited.Complete(context.Background(), UserMessage("q"))
	require.NoError(t, err)
	assert.Equal(t, "ok", content)
}

func TestRateLimitedHonorsDeadline(t *testing.T) {
	stub := &stubProvider{content: "ok"}
	// One token per hour and the burst already spent.
	limited := NewRateLimited(stub, 1.0/3600, 1)

	_, err := limited.Complete(context.Background(), UserMessage("first"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = limited.Complete(ctx, UserMessage("second"))
	require.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
	assert.Equal(t, int32(1), stub.calls.Load())
}
