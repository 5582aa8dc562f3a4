package search

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/Goer17/InnoTree/pkg/config"
	"github.com/Goer17/InnoTree/pkg/generator"
	"github.com/Goer17/InnoTree/pkg/llm"
	"github.com/Goer17/InnoTree/pkg/llm/provider"
	"github.com/Goer17/InnoTree/pkg/logger"
	"github.com/Goer17/InnoTree/pkg/mcts"
	"github.com/Goer17/InnoTree/pkg/prompt"
	"github.com/Goer17/InnoTree/pkg/reward"
	"github.com/Goer17/InnoTree/pkg/storage"
)

// Builder creates the runner for one task.
type Builder interface {
	Build(task *storage.Task, req Request, opts ...mcts.Option) (*mcts.Runner, error)
}

// FactoryConfig configures a Factory.
type FactoryConfig struct {
	Search config.SearchConfig
	LLM    config.LLMConfig

	// Prompts defaults to the embedded library.
	Prompts *prompt.Library

	// Feedbacker is shared by every task. Nil disables retrieval.
	Feedbacker mcts.Feedbacker

	// NewCompleter defaults to provider.New.
	NewCompleter func(provider.Config) (llm.Completer, error)

	// Seed, when non-zero, makes each task's random sources deterministic.
	Seed uint64

	TracerProvider trace.TracerProvider
	Logger         *slog.Logger
}

// Factory builds the generator, rewarder and runner of each task from the
// configured defaults and the request's overrides. Nothing is cached across
// tasks except the shared feedbacker.
type Factory struct {
	cfg     FactoryConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewFactory creates a Factory.
func NewFactory(cfg FactoryConfig) *Factory {
	if cfg.Prompts == nil {
		cfg.Prompts = prompt.Default()
	}
	if cfg.Feedbacker == nil {
		cfg.Feedbacker = mcts.NoFeedback{}
	}
	if cfg.NewCompleter == nil {
		cfg.NewCompleter = provider.New
	}
	f := &Factory{cfg: cfg, logger: logger.OrNop(cfg.Logger)}
	if cfg.Search.JudgeRPS > 0 {
		burst := max(int(cfg.Search.ArenaConcurrency), 1)
		f.limiter = rate.NewLimiter(rate.Limit(cfg.Search.JudgeRPS), burst)
	}
	return f
}

// Defaults returns the parameters a request with no overrides runs with.
func (f *Factory) Defaults() (config.SearchConfig, config.LLMConfig) {
	return f.cfg.Search, f.cfg.LLM
}

// Build wires the collaborators for task and returns a runner ready to be
// driven. The request supplies per-task LLM credentials.
func (f *Factory) Build(task *storage.Task, req Request, opts ...mcts.Option) (*mcts.Runner, error) {
	log := f.logger.With("task_id", task.ID)
	params := task.Params

	policy, err := mcts.ParsePolicy(params.Policy)
	if err != nil {
		return nil, err
	}

	llmCfg := provider.Config{
		Provider: f.cfg.LLM.Provider,
		Model:    params.Model,
		APIKey:   f.cfg.LLM.APIKey,
		BaseURL:  f.cfg.LLM.BaseURL,
	}
	if req.APIKey != "" {
		llmCfg.APIKey = req.APIKey
	}
	if req.BaseURL != "" {
		llmCfg.BaseURL = req.BaseURL
	}
	completer, err := f.cfg.NewCompleter(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("creating completer: %w", err)
	}

	gen, err := generator.New(generator.Config{
		Completer:   completer,
		Prompts:     f.cfg.Prompts,
		Topic:       task.Topic,
		Model:       params.Model,
		MaxAttempts: int(f.cfg.Search.MaxAttempts),
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	rw, err := reward.New(reward.Config{
		Kind:        params.Reward,
		Completer:   completer,
		Prompts:     f.cfg.Prompts,
		Model:       params.Model,
		Concurrency: int(f.cfg.Search.ArenaConcurrency),
		Limiter:     f.limiter,
		Rand:        f.rand(task.ID, 1),
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating rewarder: %w", err)
	}

	cfg := mcts.DefaultConfig(task.Topic)
	cfg.Policy = policy
	cfg.ExplorationWeight = params.ExplorationWeight
	cfg.Trials = params.Trials
	cfg.Rollouts = params.Rollouts
	cfg.Expand = params.Expand
	cfg.Epsilon = f.cfg.Search.Epsilon
	cfg.SeedRollouts = int(f.cfg.Search.SeedRollouts)

	base := []mcts.Option{
		mcts.WithLogger(log),
		mcts.WithRand(f.rand(task.ID, 2)),
	}
	if f.cfg.TracerProvider != nil {
		base = append(base, mcts.WithTracerProvider(f.cfg.TracerProvider))
	}
	return mcts.NewRunner(cfg, gen, f.cfg.Feedbacker, rw, append(base, opts...)...)
}

// rand returns a source for one of the task's random streams.
func (f *Factory) rand(taskID string, stream uint64) *rand.Rand {
	seed := f.cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	var h uint64
	for _, b := range []byte(taskID) {
		h = h*31 + uint64(b)
	}
	return rand.New(rand.NewPCG(seed^h, stream))
}
