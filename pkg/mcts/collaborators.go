package mcts

import "context"

// Generator proposes continuations of a chain. It returns up to n contexts.
type Generator interface {
	Generate(ctx context.Context, chain []*Context, n int) ([]*Context, error)
}

// Feedbacker produces an observation for a context. The boolean is false
// when the context gets no observation; failures are reported the same way.
type Feedbacker interface {
	Feedback(ctx context.Context, c *Context) (string, bool)
}

// Rewarder scores a finished idea against the trial's idea pool. It never
// fails: errors degrade to a zero reward. The second value holds judge
// transcripts, if the implementation produces any.
type Rewarder interface {
	Reward(ctx context.Context, topic, idea string, pool []string) (float64, []string)
}

// PoolSeeder is implemented by rewarders that compare ideas against each
// other and want the pool filled with seed rollouts before tree search.
type PoolSeeder interface {
	SeedsPool() bool
}

func seedsPool(r Rewarder) bool {
	s, ok := r.(PoolSeeder)
	return ok && s.SeedsPool()
}

// NoFeedback is a Feedbacker that never produces an observation. It serves
// searches run without a vector store.
type NoFeedback struct{}

func (NoFeedback) Feedback(context.Context, *Context) (string, bool) { return "", false }
