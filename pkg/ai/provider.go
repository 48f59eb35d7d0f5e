// Package ai adapts LLM backends to the streaming shape the development
// chat endpoint serves.
package ai

import "context"

// Chat roles understood by every provider.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message represents a single chat message for LLM requests.
type Message struct {
	Role    string
	Content string
}

// ChatRequest defines the input to a streamed reply.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   *int
}

// LastUserMessage returns the content of the final user message.
func (r ChatRequest) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// ChatStream yields reply deltas in order.
type ChatStream interface {
	Next() bool
	Content() string
	Err() error
	Close() error
}

// Provider produces streamed replies.
type Provider interface {
	CreateChatCompletionStream(ctx context.Context, req ChatRequest) (ChatStream, error)
}
