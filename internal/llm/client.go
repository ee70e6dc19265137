package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"dev.helix.brainbox/internal/apperrors"
)

// Config configures an HTTP chat-completion client. Temperature and max
// tokens are fixed per configured model.
type Config struct {
	BaseURL     string        `json:"base_url"`
	APIKey      string        `json:"api_key"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Timeout     time.Duration `json:"timeout"`
	MaxRetries  int           `json:"max_retries"`
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logrus.Logger
}

var _ Provider = (*Client)(nil)

// NewClient creates a chat-completion client.
func NewClient(config Config, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete returns the completion for a prompt, retrying transient failures
// with exponential backoff and jitter.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if len(req.Messages) == 0 {
		return "", apperrors.E(apperrors.KindInvalid, "completion request has no messages")
	}

	delay := time.Second
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			jitter := time.Duration(rand.Int63n(int64(delay) / 4))
			select {
			case <-time.After(delay + jitter):
			case <-ctx.Done():
				return "", apperrors.Wrap(apperrors.KindTransient, "completion cancelled", ctx.Err())
			}
			delay = time.Duration(math.Min(float64(delay)*2, float64(30*time.Second)))
		}

		content, err := c.completeOnce(ctx, req)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !apperrors.IsTransient(err) || errors.Is(err, context.Canceled) {
			return "", err
		}
		c.logger.WithFields(logrus.Fields{
			"model":   c.config.Model,
			"attempt": attempt + 1,
		}).WithError(err).Warn("Completion failed, retrying")
	}
	return "", lastErr
}

func (c *Client) completeOnce(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.config.Model,
		Messages:    req.Messages,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, "failed to marshal completion request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, "failed to create completion request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", apperrors.Wrap(apperrors.KindTransient, "completion timed out", err)
		}
		return "", apperrors.Wrap(apperrors.KindTransient, "completion request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindTransient, "failed to read completion response", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", apperrors.E(apperrors.KindTransient,
			fmt.Sprintf("llm backend returned status %d", resp.StatusCode))
	default:
		// 4xx other than rate limits (content filter, bad request) is permanent.
		return "", apperrors.E(apperrors.KindInternal,
			fmt.Sprintf("llm backend rejected request with status %d: %s", resp.StatusCode, string(body)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, "failed to decode completion response", err)
	}
	if len(parsed.Choices) == 0 {
		return "", apperrors.E(apperrors.KindInternal, "completion response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
