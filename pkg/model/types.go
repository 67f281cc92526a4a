package model

import "context"

// Role identifies the author of a conversation message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message sent to or received from a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config carries per-request generation parameters.
type Config struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Chunk is one streamed fragment of a model response. Done marks the
// final chunk; its Content may be empty.
type Chunk struct {
	Content string
	Done    bool
}

// ChunkHandler receives streamed fragments in arrival order. Returning
// an error aborts the stream.
type ChunkHandler func(Chunk) error

// Provider generates completions for a message history. Implementations
// invoke onChunk sequentially and finish with a Done chunk unless they
// return an error first.
type Provider interface {
	ID() string
	GenerateStreaming(ctx context.Context, messages []Message, cfg Config, onChunk ChunkHandler) error
}
