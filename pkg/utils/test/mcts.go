package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/Goer17/InnoTree/pkg/mcts"
)

// GenerateCall records one call to MockGenerator.Generate.
type GenerateCall struct {
	ChainLen int
	N        int
}

// MockGenerator returns scripted contexts. Responses are consumed in order;
// once they run out every single-context request yields a fresh idea and
// every wider request yields fresh reasoning candidates.
type MockGenerator struct {
	mu sync.Mutex

	Responses [][]*mcts.Context

	// Err, when set, is returned by every call.
	Err error

	Calls []GenerateCall
	ideas int
}

func NewMockGenerator(responses ...[]*mcts.Context) *MockGenerator {
	return &MockGenerator{Responses: responses}
}

func (m *MockGenerator) Generate(_ context.Context, chain []*mcts.Context, n int) ([]*mcts.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, GenerateCall{ChainLen: len(chain), N: n})
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) > 0 {
		next := m.Responses[0]
		m.Responses = m.Responses[1:]
		return next, nil
	}

	if n == 1 {
		m.ideas++
		return []*mcts.Context{mcts.NewContext(mcts.KindIdea, fmt.Sprintf("idea %d", m.ideas))}, nil
	}
	out := make([]*mcts.Context, n)
	for i := range out {
		out[i] = mcts.NewContext(mcts.KindReasoning, fmt.Sprintf("candidate %d at depth %d", i, len(chain)))
	}
	return out, nil
}

// CallCount returns how many times Generate was called.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockFeedbacker attaches "evidence: <content>" to search contexts.
type MockFeedbacker struct {
	mu    sync.Mutex
	Calls int
}

func (m *MockFeedbacker) Feedback(_ context.Context, c *mcts.Context) (string, bool) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()

	if c.Kind != mcts.KindSearch {
		return "", false
	}
	return "evidence: " + c.Content, true
}

// RewardCall records one call to MockRewarder.Reward.
type RewardCall struct {
	Idea string
	Pool []string
}

// MockRewarder returns Rewards in order, then Default.
type MockRewarder struct {
	mu sync.Mutex

	Rewards []float64
	Default float64
	// Seeds makes the rewarder ask for pool seeding rollouts.
	Seeds bool

	Calls []RewardCall
}

func (m *MockRewarder) Reward(_ context.Context, _ string, idea string, pool []string) (float64, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, RewardCall{Idea: idea, Pool: append([]string(nil), pool...)})
	if len(m.Rewards) > 0 {
		r := m.Rewards[0]
		m.Rewards = m.Rewards[1:]
		return r, nil
	}
	return m.Default, nil
}

func (m *MockRewarder) SeedsPool() bool { return m.Seeds }
