// Package anthropic calls the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Goer17/InnoTree/pkg/llm"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-haiku-4-5-20251001"
	defaultMaxTokens = 2048
	apiVersion       = "2023-06-01"

	// openingTurn starts conversations that would otherwise begin with an
	// assistant turn, which the Messages API rejects.
	openingTurn = "Continue."
)

// Config configures the client.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Client implements llm.Completer.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// New creates a Client.
func New(cfg Config) *Client {
	c := &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		http:    cfg.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	return c
}

// Complete sends one Messages request per requested choice, since the API
// has no equivalent of n.
func (c *Client) Complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	body := messagesRequest{
		Model:       req.Model,
		System:      req.System,
		Messages:    toMessages(req.Messages),
		MaxTokens:   defaultMaxTokens,
		Temperature: req.Temperature,
		Stop:        req.Stop,
	}
	if body.Model == "" {
		body.Model = c.model
	}
	if req.MaxTokens != nil {
		body.MaxTokens = *req.MaxTokens
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	out := &llm.ChatResponse{Model: body.Model, Usage: &llm.Usage{}}
	for range req.Choices() {
		resp, err := c.send(ctx, data)
		if err != nil {
			return nil, err
		}
		var text strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		out.Choices = append(out.Choices, llm.NewTextMessage(llm.RoleAssistant, text.String()))
		if out.StopReason == "" {
			out.StopReason = resp.StopReason
		}
		if resp.Usage != nil {
			out.Usage.Add(llm.Usage{
				PromptTokens:     resp.Usage.InputTokens,
				CompletionTokens: resp.Usage.OutputTokens,
				TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
			})
		}
	}
	return out, nil
}

func (c *Client) send(ctx context.Context, data []byte) (*messagesResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(raw))
	}

	var result messagesResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("anthropic error: %s", result.Error.Message)
	}
	if len(result.Content) == 0 {
		return nil, errors.New("anthropic returned no content")
	}
	return &result, nil
}

// toMessages merges consecutive turns of the same role and makes sure the
// conversation opens with a user turn.
func toMessages(msgs []llm.Message) []message {
	out := make([]message, 0, len(msgs)+1)
	for _, m := range msgs {
		text := m.GetText()
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content += "\n" + text
			continue
		}
		out = append(out, message{Role: m.Role, Content: text})
	}
	if len(out) == 0 || out[0].Role != llm.RoleUser {
		out = append([]message{{Role: llm.RoleUser, Content: openingTurn}}, out...)
	}
	return out
}
