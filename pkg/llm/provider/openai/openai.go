// Package openai talks to OpenAI-compatible chat completion endpoints
// through go-openai.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/Goer17/InnoTree/pkg/llm"
)

const defaultModel = "gpt-4o-mini"

// Config configures the client. BaseURL may point at any server speaking
// the OpenAI chat completions API.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Client implements llm.Completer.
type Client struct {
	client *goopenai.Client
	model  string
}

// New creates a Client.
func New(cfg Config) *Client {
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{client: goopenai.NewClientWithConfig(oc), model: model}
}

// Complete issues one chat completion request asking for req.Choices()
// completions.
func (c *Client) Complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	msgs := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.GetText()})
	}

	creq := goopenai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
		Stop:     req.Stop,
	}
	if n := req.Choices(); n > 1 {
		creq.N = n
	}
	if req.Temperature != nil {
		creq.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		creq.MaxTokens = *req.MaxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	out := &llm.ChatResponse{
		Model:      resp.Model,
		StopReason: string(resp.Choices[0].FinishReason),
		Usage: &llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, choice := range resp.Choices {
		out.Choices = append(out.Choices, llm.NewTextMessage(llm.RoleAssistant, choice.Message.Content))
	}
	return out, nil
}
