package reward

import (
	"fmt"
	"log/slog"
	"math/rand/v2"

	"golang.org/x/time/rate"

	"github.com/Goer17/InnoTree/pkg/llm"
	"github.com/Goer17/InnoTree/pkg/mcts"
	"github.com/Goer17/InnoTree/pkg/prompt"
)

// Rewarder kinds accepted by New.
const (
	KindScalar = "scalar"
	KindArena  = "arena"
)

// Kinds lists the supported rewarder kinds.
var Kinds = []string{KindScalar, KindArena}

// Config selects and configures a rewarder.
type Config struct {
	Kind        string
	Completer   llm.Completer
	Prompts     *prompt.Library
	Model       string
	Concurrency int
	Limiter     *rate.Limiter
	Rand        *rand.Rand
	Logger      *slog.Logger
}

// New creates the rewarder named by cfg.Kind. An empty kind selects the
// arena.
func New(cfg Config) (mcts.Rewarder, error) {
	if cfg.Completer == nil {
		return nil, fmt.Errorf("rewarder %q needs a completer", cfg.Kind)
	}
	switch cfg.Kind {
	case KindArena, "":
		return NewArena(ArenaConfig{
			Completer:   cfg.Completer,
			Prompts:     cfg.Prompts,
			Model:       cfg.Model,
			Concurrency: cfg.Concurrency,
			Limiter:     cfg.Limiter,
			Rand:        cfg.Rand,
			Logger:      cfg.Logger,
		}), nil
	case KindScalar:
		return NewScalar(ScalarConfig{
			Completer: cfg.Completer,
			Prompts:   cfg.Prompts,
			Model:     cfg.Model,
			Logger:    cfg.Logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown rewarder kind: %s", cfg.Kind)
	}
}
