package llm

import (
	"context"
	"errors"
)

var (
	ErrGenerationTimeout = errors.New("LLM_TIMEOUT")
	ErrGenerationFailed  = errors.New("LLM_GENERATION_FAILED")
)

// Message is one turn of a chat-completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces completions for prompts. Implementations must honor the
// context deadline and return ErrGenerationTimeout when it expires.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)

	// GenerateStream returns a channel of content chunks. The channel is
	// closed when generation completes or the context is cancelled.
	GenerateStream(ctx context.Context, messages []Message) (<-chan string, error)
}
