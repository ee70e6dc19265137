// Package llm provides chat-completion providers for the answering,
// instruct, and reward models.
package llm

import "context"

// Role values for chat messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a fully-formed prompt. The orchestrator renders templates;
// providers never see structured retrieval data.
type Request struct {
	Messages []Message `json:"messages"`
}

// UserMessage builds a single-turn request.
func UserMessage(content string) Request {
	return Request{Messages: []Message{{Role: RoleUser, Content: content}}}
}

// Provider returns a text completion for a prompt. Timeouts and rate limits
// surface as transient errors; content-filter rejections are permanent.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}
