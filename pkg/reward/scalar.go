package reward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Goer17/InnoTree/pkg/llm"
	"github.com/Goer17/InnoTree/pkg/logger"
	"github.com/Goer17/InnoTree/pkg/prompt"
)

// ScalarConfig configures a Scalar rewarder.
type ScalarConfig struct {
	Completer llm.Completer
	Prompts   *prompt.Library
	Model     string
	Logger    *slog.Logger
}

// Scalar scores an idea on its own with one judge call. The reward is the
// mean of the per-criterion scores.
type Scalar struct {
	completer llm.Completer
	prompts   *prompt.Library
	model     string
	logger    *slog.Logger
}

// NewScalar creates a Scalar rewarder.
func NewScalar(cfg ScalarConfig) *Scalar {
	s := &Scalar{
		completer: cfg.Completer,
		prompts:   cfg.Prompts,
		model:     cfg.Model,
		logger:    logger.OrNop(cfg.Logger),
	}
	if s.prompts == nil {
		s.prompts = prompt.Default()
	}
	return s
}

// Reward ignores the pool. Any failure yields a zero reward.
func (s *Scalar) Reward(ctx context.Context, topic, idea string, _ []string) (float64, []string) {
	score, err := s.score(ctx, topic, idea)
	if err != nil {
		s.logger.Error("scoring idea", "error", err)
		judgeCalls.WithLabelValues(kindScalar, resultError).Inc()
		return 0, nil
	}
	judgeCalls.WithLabelValues(kindScalar, resultOK).Inc()
	return score, nil
}

func (s *Scalar) score(ctx context.Context, topic, idea string) (float64, error) {
	system, err := s.prompts.System(prompt.Scorer, map[string]string{"topic": topic, "idea": idea})
	if err != nil {
		return 0, err
	}
	resp, err := s.completer.Complete(ctx, &llm.ChatRequest{Model: s.model, System: system})
	if err != nil {
		return 0, err
	}
	texts := resp.Texts()
	if len(texts) == 0 {
		return 0, errors.New("scorer returned no choices")
	}
	criteria, err := decodeBlock[criterionScore](texts[0])
	if err != nil {
		return 0, err
	}

	var sum float64
	for _, key := range sortedKeys(criteria) {
		c := criteria[key]
		if c.Score == nil {
			return 0, fmt.Errorf("criterion %q lacks a score", key)
		}
		sum += *c.Score
	}
	return sum / float64(len(criteria)), nil
}
