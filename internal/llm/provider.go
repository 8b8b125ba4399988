package llm

import (
	"context"
	"io"
)

// Provider is the core abstraction for LLM interaction.
// Consumers call Generate for a complete reply or Stream for incremental
// text deltas.
type Provider interface {
	// Generate sends a prompt to the LLM and returns the full text reply.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Stream sends a prompt to the LLM and returns a pull-based stream of
	// text deltas. The caller must Close the stream.
	Stream(ctx context.Context, req Request) (Stream, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Stream yields text deltas in the order the provider produced them.
type Stream interface {
	// Recv returns the next non-empty delta, or io.EOF once the provider
	// finished the reply.
	Recv() (string, error)

	// Usage reports token consumption. Only meaningful after Recv returned
	// io.EOF; providers that do not report usage on streams return zero.
	Usage() Usage

	// Close releases the underlying connection.
	Close() error
}

// Request describes what to send to the LLM.
type Request struct {
	// System is the system prompt. Sets the LLM's role and constraints.
	System string

	// Messages is the conversation history. The chat endpoints send one
	// user message carrying the fully composed prompt.
	Messages []Message

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int

	// Temperature controls randomness. Range: 0.0 - 1.0.
	// Default: 0.0 (deterministic) when not set.
	Temperature float64
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserRequest builds a single-turn request.
func UserRequest(system, content string) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: content}},
	}
}

// Response holds the LLM's output.
type Response struct {
	// Content is the generated text.
	Content string

	// Usage reports token consumption for this request.
	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason indicates why generation stopped.
	// Normalized to: "end", "max_tokens", "error"
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Collect drains s and returns the concatenated text. The stream is closed.
func Collect(s Stream) (string, error) {
	defer s.Close()

	var out []byte
	for {
		delta, err := s.Recv()
		if err == io.EOF {
			return string(out), nil
		}
		if err != nil {
			return string(out), err
		}
		out = append(out, delta...)
	}
}
