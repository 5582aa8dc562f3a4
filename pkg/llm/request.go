package llm

import "context"

// ChatRequest is a provider-agnostic chat completion request.
type ChatRequest struct {
	// Model name (e.g., "gpt-4o", "claude-haiku-4-5", "llama3.2")
	Model string `json:"model"`

	// System prompt, sent separately by providers that support it
	System string `json:"system,omitempty"`

	// Conversation messages
	Messages []Message `json:"messages"`

	// Number of independent completions wanted. Zero means one.
	N int `json:"n,omitempty"`

	// Generation parameters (unified across providers)
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// Choices returns the number of completions requested, at least one.
func (r *ChatRequest) Choices() int {
	if r.N < 1 {
		return 1
	}
	return r.N
}

// Completer runs chat completions against a backend.
type Completer interface {
	Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

func (f CompleterFunc) Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return f(ctx, req)
}
