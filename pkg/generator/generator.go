// Package generator implements mcts.Generator on top of a chat model.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Goer17/InnoTree/pkg/llm"
	"github.com/Goer17/InnoTree/pkg/logger"
	"github.com/Goer17/InnoTree/pkg/mcts"
	"github.com/Goer17/InnoTree/pkg/prompt"
)

// DefaultMaxAttempts bounds how often one generation call is retried.
const DefaultMaxAttempts = 3

// Config configures a Generator.
type Config struct {
	Completer llm.Completer
	Prompts   *prompt.Library
	Topic     string
	Model     string

	Temperature *float64

	// MaxAttempts bounds retries of a call whose output fails to parse.
	// Zero uses DefaultMaxAttempts.
	MaxAttempts int

	Logger *slog.Logger
}

// Generator asks the model for the next step of a chain.
type Generator struct {
	completer   llm.Completer
	prompts     *prompt.Library
	topic       string
	model       string
	temperature *float64
	maxAttempts int
	logger      *slog.Logger
}

// New creates a Generator.
func New(cfg Config) (*Generator, error) {
	if cfg.Completer == nil {
		return nil, errors.New("generator: completer is required")
	}
	if cfg.Topic == "" {
		return nil, mcts.ErrEmptyTopic
	}
	g := &Generator{
		completer:   cfg.Completer,
		prompts:     cfg.Prompts,
		topic:       cfg.Topic,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger.OrNop(cfg.Logger),
	}
	if g.prompts == nil {
		g.prompts = prompt.Default()
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = DefaultMaxAttempts
	}
	return g, nil
}

// Generate requests n continuations of chain. A call whose output fails to
// parse is retried with identical inputs up to the attempt bound, after
// which the error wraps ErrMalformed.
func (g *Generator) Generate(ctx context.Context, chain []*mcts.Context, n int) ([]*mcts.Context, error) {
	if n < 1 {
		n = 1
	}
	system, err := g.prompts.System(prompt.Generator, map[string]string{"topic": g.topic})
	if err != nil {
		return nil, err
	}
	req := &llm.ChatRequest{
		Model:       g.model,
		System:      system,
		Messages:    Messages(chain),
		N:           n,
		Temperature: g.temperature,
		Stop:        []string{mcts.EndMarker},
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		out, err := g.attempt(ctx, req, n)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		g.logger.Warn("generation failed",
			"attempt", attempt,
			"max_attempts", g.maxAttempts,
			"error", err,
		)
	}
	return nil, fmt.Errorf("after %d attempts: %w", g.maxAttempts, lastErr)
}

func (g *Generator) attempt(ctx context.Context, req *llm.ChatRequest, n int) ([]*mcts.Context, error) {
	resp, err := g.completer.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	texts := resp.Texts()
	if len(texts) > n {
		texts = texts[:n]
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrMalformed)
	}

	out := make([]*mcts.Context, 0, len(texts))
	for _, text := range texts {
		// the stop sequence swallows the end marker
		c, err := Parse(text + mcts.EndMarker)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
