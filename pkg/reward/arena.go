// Package reward implements the two mcts.Rewarder strategies: a scalar
// scorer that judges an idea on its own, and an arena that judges it
// pairwise against every idea of the trial.
package reward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Goer17/InnoTree/pkg/llm"
	"github.com/Goer17/InnoTree/pkg/logger"
	"github.com/Goer17/InnoTree/pkg/prompt"
)

// DefaultConcurrency caps the number of judge calls in flight per reward.
const DefaultConcurrency = 8

// MaxReward is the reward of an idea that beats every pool member.
const MaxReward = 10.0

// ArenaConfig configures an Arena.
type ArenaConfig struct {
	Completer llm.Completer
	Prompts   *prompt.Library
	Model     string

	// Concurrency caps parallel judge calls. Zero uses DefaultConcurrency.
	Concurrency int

	// Limiter, when set, paces judge calls across all rewards.
	Limiter *rate.Limiter

	// Rand decides the A/B label of each pair. Seed it for reproducible
	// comparisons.
	Rand *rand.Rand

	Logger *slog.Logger
}

// Arena scores an idea by the fraction of pool members it beats in
// pairwise judge calls.
type Arena struct {
	completer   llm.Completer
	prompts     *prompt.Library
	model       string
	concurrency int
	limiter     *rate.Limiter
	logger      *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewArena creates an Arena.
func NewArena(cfg ArenaConfig) *Arena {
	a := &Arena{
		completer:   cfg.Completer,
		prompts:     cfg.Prompts,
		model:       cfg.Model,
		concurrency: cfg.Concurrency,
		limiter:     cfg.Limiter,
		logger:      logger.OrNop(cfg.Logger),
		rng:         cfg.Rand,
	}
	if a.prompts == nil {
		a.prompts = prompt.Default()
	}
	if a.concurrency <= 0 {
		a.concurrency = DefaultConcurrency
	}
	if a.rng == nil {
		seed := uint64(time.Now().UnixNano())
		a.rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return a
}

// SeedsPool asks the runner to fill the idea pool before tree search.
func (a *Arena) SeedsPool() bool { return true }

// Reward compares idea against every member of pool, including itself. A
// self comparison is a win without a judge call. A failed comparison is a
// loss. The reward is MaxReward times the fraction of wins, zero for an
// empty pool. Transcripts are returned in pool order for every comparison
// the judge resolved.
func (a *Arena) Reward(ctx context.Context, topic, idea string, pool []string) (float64, []string) {
	if len(pool) == 0 {
		return 0, nil
	}

	// labels are drawn up front so a seed fixes them regardless of
	// goroutine scheduling
	swaps := a.drawSwaps(idea, pool)
	wins := make([]bool, len(pool))
	transcripts := make([]string, len(pool))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, other := range pool {
		if other == idea {
			wins[i] = true
			judgeCalls.WithLabelValues(kindArena, resultSelf).Inc()
			continue
		}
		g.Go(func() error {
			win, transcript, err := a.compare(ctx, topic, idea, other, swaps[i])
			if err != nil {
				a.logger.Error("comparing ideas", "pool_index", i, "error", err)
				judgeCalls.WithLabelValues(kindArena, resultError).Inc()
				return nil
			}
			judgeCalls.WithLabelValues(kindArena, resultOK).Inc()
			wins[i], transcripts[i] = win, transcript
			return nil
		})
	}
	_ = g.Wait()

	count := 0
	for _, w := range wins {
		if w {
			count++
		}
	}
	resolved := make([]string, 0, len(transcripts))
	for _, t := range transcripts {
		if t != "" {
			resolved = append(resolved, t)
		}
	}
	return MaxReward * float64(count) / float64(len(pool)), resolved
}

func (a *Arena) drawSwaps(idea string, pool []string) []bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	swaps := make([]bool, len(pool))
	for i, other := range pool {
		if other != idea {
			swaps[i] = a.rng.Float64() < 0.5
		}
	}
	return swaps
}

// compare runs one judge call. The new idea is labelled A unless swapped.
func (a *Arena) compare(ctx context.Context, topic, idea, other string, swapped bool) (bool, string, error) {
	mine, theirs := "A", "B"
	if swapped {
		mine, theirs = theirs, mine
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return false, "", err
		}
	}

	system, err := a.prompts.System(prompt.Arena, map[string]string{
		"topic":          topic,
		"idea_" + mine:   idea,
		"idea_" + theirs: other,
	})
	if err != nil {
		return false, "", err
	}
	resp, err := a.completer.Complete(ctx, &llm.ChatRequest{Model: a.model, System: system})
	if err != nil {
		return false, "", err
	}
	texts := resp.Texts()
	if len(texts) == 0 {
		return false, "", errors.New("judge returned no choices")
	}
	verdict, err := decodeBlock[criterionComparison](texts[0])
	if err != nil {
		return false, "", err
	}

	var myScore, theirScore float64
	var result strings.Builder
	for _, key := range sortedKeys(verdict) {
		c := verdict[key]
		if err := c.check(); err != nil {
			return false, "", fmt.Errorf("criterion %q: %w", key, err)
		}
		sa, sb := c.Scores["A"], c.Scores["B"]
		myScore += c.Scores[mine]
		theirScore += c.Scores[theirs]
		if *c.Better == mine {
			myScore++
		} else {
			theirScore++
		}
		fmt.Fprintf(&result, "%s:\n%s\nscore: A: %g vs. B: %g\n", key, c.Comparison, sa, sb)
	}

	ideas := map[string]string{mine: idea, theirs: other}
	transcript := fmt.Sprintf("Idea A:\n%s\nIdea B:\n%s\nResult:\n%s", ideas["A"], ideas["B"], result.String())
	return myScore > theirScore, transcript, nil
}
