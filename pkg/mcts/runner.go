// Package mcts implements the Monte-Carlo tree search that drives idea
// generation: selection, expansion, rollout, reward and backpropagation
// across trials, committing the best child of the root after each trial.
package mcts

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Goer17/InnoTree/pkg/logger"
	"github.com/Goer17/InnoTree/pkg/utils"
)

var (
	// ErrEmptyTopic is returned when a runner is built without a topic.
	ErrEmptyTopic = errors.New("topic is empty")

	// ErrAlreadyRun is returned when a runner is driven a second time.
	ErrAlreadyRun = errors.New("runner already started")
)

// StopReason explains why a search ended.
type StopReason string

const (
	// StopCompleted means every configured trial ran.
	StopCompleted StopReason = "completed"
	// StopPolicyExit means the best policy reached a terminal leaf and the
	// root had nothing left to commit.
	StopPolicyExit StopReason = "policy-exit"
	// StopExhausted means the root had no children to commit.
	StopExhausted StopReason = "exhausted"
	// StopCanceled means the context was canceled or the consumer stopped
	// reading snapshots.
	StopCanceled StopReason = "canceled"
	// StopFailed means a collaborator failed in a way the search cannot
	// absorb, such as a generator that keeps producing malformed output.
	StopFailed StopReason = "failed"
)

// Config is the search configuration consumed at construction time.
type Config struct {
	Topic             string
	Policy            Policy
	ExplorationWeight float64
	Epsilon           float64
	Rollouts          int
	Trials            int
	Expand            int
	// SeedRollouts is the number of rollouts that fill the idea pool at the
	// start of each trial when the rewarder compares ideas to each other.
	SeedRollouts int
	Terminal     TerminalFunc
}

// DefaultConfig returns the configuration used by the CLI and the API when
// a request leaves a field unset.
func DefaultConfig(topic string) Config {
	return Config{
		Topic:             topic,
		Policy:            PolicyBest,
		ExplorationWeight: 1.0,
		Epsilon:           DefaultEpsilon,
		Rollouts:          10,
		Trials:            10,
		Expand:            4,
		SeedRollouts:      4,
		Terminal:          EndsWithIdea,
	}
}

func (c Config) validate() error {
	if c.Topic == "" {
		return ErrEmptyTopic
	}
	if !c.Policy.Valid() {
		return fmt.Errorf("invalid sampling policy %q", c.Policy)
	}
	switch {
	case c.Trials < 0, c.Rollouts < 0, c.SeedRollouts < 0:
		return errors.New("trial, rollout and seed counts must not be negative")
	case c.Expand < 1:
		return fmt.Errorf("expand %d must be at least 1", c.Expand)
	case c.Epsilon < 0 || c.Epsilon > 1:
		return fmt.Errorf("epsilon %v out of range [0, 1]", c.Epsilon)
	}
	return nil
}

// Result summarizes a finished search.
type Result struct {
	// Prefix is the committed chain, one context per completed commit.
	Prefix []*Context
	// Frozen holds the records of every committed root, in commit order.
	Frozen []Profile
	// Ideas is every idea reached by a rollout, across all trials.
	Ideas  []string
	Trials int
	Stop   StopReason
	// Best is the final idea: the last committed idea, or the best scored
	// frozen idea, or the last idea reached.
	Best string
	// Tree is the last snapshot of frozen history plus live tree.
	Tree []Profile
}

// Option configures a Runner.
type Option func(*Runner)

// WithRand sets the random source used by the epsilon policies.
func WithRand(rng *rand.Rand) Option {
	return func(r *Runner) { r.rng = rng }
}

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger.OrNop(l) }
}

// WithTracerProvider sets the provider used for run, trial and rollout spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Runner) { r.tracer = newTracer(tp) }
}

// WithCommitHook registers fn to run after every commit that promoted a
// child. It receives the trial number and the record of the root that was
// frozen.
func WithCommitHook(fn func(trial int, frozen Profile)) Option {
	return func(r *Runner) { r.onCommit = fn }
}

// WithRoot starts the search from an existing root instead of a fresh one.
func WithRoot(root *Node) Option {
	return func(r *Runner) { r.root = root }
}

// Runner drives one search. It is single use: Run or Snapshots may be
// called once.
type Runner struct {
	cfg        Config
	generator  Generator
	feedbacker Feedbacker
	rewarder   Rewarder
	rng        *rand.Rand
	logger     *slog.Logger
	tracer     *tracer
	onCommit   func(int, Profile)

	root    *Node
	prefix  []*Context
	frozen  []Profile
	history []string
	pool    []string
	trials  int
	started bool
	// closed is set once the last root was frozen with nothing to promote.
	closed bool

	result *Result
	err    error
}

// NewRunner builds a runner around already constructed collaborators.
func NewRunner(cfg Config, gen Generator, fb Feedbacker, rw Rewarder, opts ...Option) (*Runner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if gen == nil || fb == nil || rw == nil {
		return nil, errors.New("generator, feedbacker and rewarder are required")
	}
	if cfg.Terminal == nil {
		cfg.Terminal = EndsWithIdea
	}

	r := &Runner{
		cfg:        cfg,
		generator:  gen,
		feedbacker: fb,
		rewarder:   rw,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rng == nil {
		seed := uint64(time.Now().UnixNano())
		r.rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if r.tracer == nil {
		r.tracer = newTracer(nil)
	}
	if r.root == nil {
		r.root = NewRootNode()
	}
	return r, nil
}

// Root returns the current live root.
func (r *Runner) Root() *Node { return r.root }

// errStopped signals that the snapshot consumer stopped pulling.
var errStopped = errors.New("snapshot consumer stopped")

// emitFunc delivers one snapshot. It returns false when the consumer is gone.
type emitFunc func([]Profile) bool

func (r *Runner) emit(yield emitFunc, snap []Profile) error {
	if !yield(snap) {
		return errStopped
	}
	return nil
}

// Run drives the search to the end, discarding intermediate snapshots.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	return r.drive(ctx, func([]Profile) bool { return true })
}

// Snapshots returns the forward-only sequence of snapshots produced while
// the search runs. Each element is a full picture of frozen history plus
// live tree. The search advances only as the sequence is pulled, and it
// cannot be restarted; Outcome reports the result once the sequence ends.
func (r *Runner) Snapshots(ctx context.Context) iter.Seq[[]Profile] {
	return func(yield func([]Profile) bool) {
		res, err := r.drive(ctx, yield)
		if errors.Is(err, ErrAlreadyRun) {
			return
		}
		r.result, r.err = res, err
	}
}

// Outcome returns the result of a search driven through Snapshots.
func (r *Runner) Outcome() (*Result, error) {
	if r.result == nil && r.err == nil {
		return nil, errors.New("search has not run")
	}
	return r.result, r.err
}

func (r *Runner) drive(ctx context.Context, yield emitFunc) (*Result, error) {
	if r.started {
		return nil, ErrAlreadyRun
	}
	r.started = true

	ctx, span := r.tracer.startRun(ctx, r.cfg)
	stop, err := r.loop(ctx, yield)
	if errors.Is(err, errStopped) {
		stop, err = StopCanceled, nil
	}
	endSpan(span, err)

	res := r.buildResult(stop)
	r.logger.Info("search finished",
		"stop", stop,
		"trials", res.Trials,
		"ideas", len(res.Ideas),
	)
	return res, err
}

func (r *Runner) loop(ctx context.Context, yield emitFunc) (StopReason, error) {
	for trial := 0; trial < r.cfg.Trials; trial++ {
		if err := ctx.Err(); err != nil {
			return StopCanceled, err
		}

		exited, err := r.runTrial(ctx, trial, yield)
		if err != nil {
			if ctx.Err() != nil {
				return StopCanceled, err
			}
			return StopFailed, fmt.Errorf("trial %d: %w", trial, err)
		}
		r.trials++
		trialsTotal.Inc()

		if !r.commit() {
			r.logger.Info("no children to commit, search is over", "trial", trial)
			if exited {
				return StopPolicyExit, nil
			}
			return StopExhausted, nil
		}
		if r.onCommit != nil {
			r.onCommit(trial, r.frozen[len(r.frozen)-1])
		}
		r.logger.Info("trial committed",
			"trial", trial,
			"kind", r.root.Context.Kind,
			"content", utils.Truncate(r.root.Context.Content, 80),
		)
	}
	return StopCompleted, nil
}

// runTrial runs one trial's rollout budget. It reports whether the best
// policy ended the trial early on a terminal leaf.
func (r *Runner) runTrial(ctx context.Context, trial int, yield emitFunc) (exited bool, err error) {
	ctx, span := r.tracer.startTrial(ctx, trial)
	defer func() { endSpan(span, err) }()

	r.logger.Info("trial started", "trial", trial)
	r.pool = nil

	if seedsPool(r.rewarder) && r.cfg.SeedRollouts > 0 {
		marker := transientProfile(r.root.ID, "initialize...",
			fmt.Sprintf("generated %d initial ideas...", r.cfg.SeedRollouts))
		if err := r.emit(yield, r.snapshot(marker)); err != nil {
			return false, err
		}
		for range r.cfg.SeedRollouts {
			if _, err := r.rollout(ctx, r.prefixCopy(), r.root.ID, yield); err != nil {
				return false, err
			}
			rolloutsTotal.WithLabelValues(outcomeSeed).Inc()
		}
	}
	if err := r.emit(yield, r.snapshot()); err != nil {
		return false, err
	}

	for i := 0; i < r.cfg.Rollouts; i++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		leaf, chain := r.descend()
		if r.cfg.Terminal(chain) {
			rolloutsTotal.WithLabelValues(outcomeSkipped).Inc()
			if r.cfg.Policy == PolicyBest {
				r.logger.Debug("terminal leaf reached, ending trial", "trial", trial, "rollout", i)
				return true, nil
			}
			continue
		}

		if leaf.Visits > 0 {
			leaf, chain, err = r.expand(ctx, leaf, chain, yield)
			if err != nil {
				return false, err
			}
		}

		if err := r.emit(yield, r.snapshot(transientProfile(leaf.ID, "rollout...", ""))); err != nil {
			return false, err
		}
		final, err := r.rollout(ctx, chain, leaf.ID, yield)
		if err != nil {
			return false, err
		}
		if len(final) == 0 || final[len(final)-1].Kind != KindIdea {
			rolloutsTotal.WithLabelValues(outcomeNoIdea).Inc()
			continue
		}
		rolloutsTotal.WithLabelValues(outcomeIdea).Inc()

		idea := final[len(final)-1].Content
		pool := append([]string(nil), r.pool...)
		reward, transcripts := r.rewarder.Reward(ctx, r.cfg.Topic, idea, pool)
		for _, t := range transcripts {
			r.logger.Debug("judge transcript", "transcript", t)
		}
		r.logger.Info("rollout scored", "trial", trial, "rollout", i, "reward", reward, "pool", len(pool))
		rewardHistogram.Observe(reward)

		backpropagate(leaf, reward)
		if err := r.emit(yield, r.snapshot()); err != nil {
			return false, err
		}
	}
	return false, nil
}

// descend walks from the live root to a leaf under the configured policy
// and returns the leaf with the committed prefix extended by the path.
func (r *Runner) descend() (*Node, []*Context) {
	chain := r.prefixCopy()
	node := r.root
	for !node.IsLeaf() {
		node = Select(r.cfg.Policy, r.rng, r.root, node, r.cfg.Epsilon, r.cfg.ExplorationWeight)
		chain = append(chain, node.Context)
	}
	return node, chain
}

// expand adds candidate children under leaf, attaches feedback to each of
// them and returns the first one. With no candidates the leaf is returned
// unchanged.
func (r *Runner) expand(ctx context.Context, leaf *Node, chain []*Context, yield emitFunc) (*Node, []*Context, error) {
	candidates, err := r.generator.Generate(ctx, chain, r.cfg.Expand)
	if err != nil {
		return nil, nil, fmt.Errorf("expand: %w", err)
	}
	r.logger.Debug("expanded leaf", "node", leaf.ID, "children", len(candidates))
	if len(candidates) == 0 {
		return leaf, chain, nil
	}

	for _, c := range candidates {
		leaf.AddChild(c)
	}
	if err := r.emit(yield, r.snapshot()); err != nil {
		return nil, nil, err
	}
	for _, child := range leaf.Children() {
		r.attachFeedback(ctx, child.Context)
	}
	if err := r.emit(yield, r.snapshot()); err != nil {
		return nil, nil, err
	}

	first := leaf.Children()[0]
	return first, append(chain, first.Context), nil
}

// rollout extends chain one generated context at a time until the terminal
// predicate holds. Each step is emitted as transient records under anchor.
// When the chain ends in an idea it is added to the pool and the history.
func (r *Runner) rollout(ctx context.Context, chain []*Context, anchor string, yield emitFunc) (out []*Context, err error) {
	ctx, span := r.tracer.startRollout(ctx, len(chain))
	defer func() { endSpan(span, err) }()

	var steps []Profile
	parent := anchor
	for !r.cfg.Terminal(chain) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := r.generator.Generate(ctx, chain, 1)
		if err != nil {
			return nil, fmt.Errorf("rollout: %w", err)
		}
		if len(next) == 0 {
			return nil, errors.New("rollout: generator returned no context")
		}
		c := next[0]
		r.attachFeedback(ctx, c)
		chain = append(chain, c)
		r.logger.Debug("rollout step", "kind", c.Kind, "content", utils.Truncate(c.Content, 80))

		obs, _ := c.Observation()
		step := transientProfile(parent, string(c.Kind), c.Content)
		step.Observation = obs
		steps = append(steps, step)
		parent = step.ID
		if err := r.emit(yield, r.snapshot(steps...)); err != nil {
			return nil, err
		}
	}

	if n := len(chain); n > 0 && chain[n-1].Kind == KindIdea {
		r.pool = append(r.pool, chain[n-1].Content)
		r.history = append(r.history, chain[n-1].Content)
	}
	return chain, nil
}

func (r *Runner) attachFeedback(ctx context.Context, c *Context) {
	obs, ok := r.feedbacker.Feedback(ctx, c)
	if !ok {
		return
	}
	if err := c.SetObservation(obs); err != nil {
		r.logger.Warn("dropping feedback", "kind", c.Kind, "error", err)
	}
}

// backpropagate records reward at leaf and every ancestor up to the live
// root.
func backpropagate(leaf *Node, reward float64) {
	for n := leaf; n != nil; n = n.parent {
		n.Update(reward)
	}
}

// commit freezes the live root and promotes its best child by average
// reward. It returns false when the root has no children.
func (r *Runner) commit() bool {
	r.freeze()
	next := r.root.BestChild(0)
	if next == nil {
		r.closed = true
		commitsTotal.WithLabelValues(commitExhausted).Inc()
		return false
	}
	r.prefix = append(r.prefix, next.Context)
	next.Clear()
	r.root = next
	commitsTotal.WithLabelValues(commitAdvanced).Inc()
	return true
}

func (r *Runner) prefixCopy() []*Context {
	return append(make([]*Context, 0, len(r.prefix)+8), r.prefix...)
}

func (r *Runner) buildResult(stop StopReason) *Result {
	return &Result{
		Prefix: append([]*Context(nil), r.prefix...),
		Frozen: append([]Profile(nil), r.frozen...),
		Ideas:  append([]string(nil), r.history...),
		Trials: r.trials,
		Stop:   stop,
		Best:   r.bestIdea(),
		Tree:   r.snapshot(),
	}
}

func (r *Runner) bestIdea() string {
	for i := len(r.prefix) - 1; i >= 0; i-- {
		if r.prefix[i].Kind == KindIdea {
			return r.prefix[i].Content
		}
	}
	best, bestAvg := "", -1.0
	for _, p := range r.frozen {
		if p.Kind != string(KindIdea) || p.Visits == 0 {
			continue
		}
		if avg := p.Value / float64(p.Visits); avg > bestAvg {
			best, bestAvg = p.Content, avg
		}
	}
	if best != "" {
		return best
	}
	if n := len(r.history); n > 0 {
		return r.history[n-1]
	}
	return ""
}
