package llm

// ChatResponse is a provider-agnostic chat completion response.
type ChatResponse struct {
	// Model that generated the response
	Model string `json:"model"`

	// One assistant message per requested completion
	Choices []Message `json:"choices"`

	// Stop reason of the first choice (e.g., "stop", "length", "end_turn")
	StopReason string `json:"stop_reason,omitempty"`

	// Token usage summed over every call made for the request
	Usage *Usage `json:"usage,omitempty"`
}

// Usage contains token counts.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Texts returns the text of every choice.
func (r *ChatResponse) Texts() []string {
	out := make([]string, len(r.Choices))
	for i := range r.Choices {
		out[i] = r.Choices[i].GetText()
	}
	return out
}

// ErrorResponse is the JSON body returned by the API on failure.
type ErrorResponse struct {
	Error string `json:"error"`
}
