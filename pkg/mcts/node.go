package mcts

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// Node is an element of the search tree. Children are owned by their
// parent; the parent pointer is a plain back reference that Clear drops.
type Node struct {
	ID      string
	Context *Context
	Value   float64
	Visits  int
	Depth   int

	parent   *Node
	children []*Node
}

// NewRootNode returns a fresh tree root wrapping an empty root context.
func NewRootNode() *Node {
	return newNode(NewContext(KindRoot, ""), nil, 0)
}

func newNode(ctx *Context, parent *Node, depth int) *Node {
	return &Node{
		ID:      newNodeID(time.Now()),
		Context: ctx,
		Depth:   depth,
		parent:  parent,
	}
}

// newNodeID returns "[YYYY-MM-DD HH:MM:SS]-[#xxxxxxxx]". The timestamp
// prefix keeps ids sortable by creation time.
func newNodeID(now time.Time) string {
	return fmt.Sprintf("[%s]-[#%s]", now.Format(time.DateTime), shortID())
}

func shortID() string {
	return uuid.NewString()[:8]
}

// AddChild appends a child wrapping ctx and returns it.
func (n *Node) AddChild(ctx *Context) *Node {
	child := newNode(ctx, n, n.Depth+1)
	n.children = append(n.children, child)
	return child
}

// Parent returns the parent node, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the node's children in creation order.
func (n *Node) Children() []*Node { return n.children }

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return len(n.children) == 0 }

// UCT scores the node for selection. Unvisited nodes score +Inf so every
// child is tried once before exploitation ranks them.
func (n *Node) UCT(explorationWeight float64) float64 {
	if n.Visits == 0 {
		return math.Inf(1)
	}
	parentVisits := n.Visits
	if n.parent != nil {
		parentVisits = n.parent.Visits
	}
	exploit := n.Value / float64(n.Visits)
	explore := math.Sqrt(math.Log(float64(parentVisits)) / float64(n.Visits))
	return exploit + explorationWeight*explore
}

// BestChild returns the child with the highest UCT score. Ties go to the
// earliest child. It returns nil when there are no children.
func (n *Node) BestChild(explorationWeight float64) *Node {
	var best *Node
	bestScore := math.Inf(-1)
	for _, child := range n.children {
		score := child.UCT(explorationWeight)
		if best == nil || score > bestScore {
			best, bestScore = child, score
		}
	}
	return best
}

// EpsilonSample returns BestChild with probability 1-epsilon and a uniformly
// random child otherwise.
func (n *Node) EpsilonSample(rng *rand.Rand, epsilon, explorationWeight float64) *Node {
	if len(n.children) == 0 {
		return nil
	}
	if rng.Float64() < 1-epsilon {
		return n.BestChild(explorationWeight)
	}
	return n.children[rng.IntN(len(n.children))]
}

// Update records one backpropagated reward.
func (n *Node) Update(reward float64) {
	n.Visits++
	n.Value += reward
}

// Clear turns the node into a fresh root: it detaches from its parent,
// drops its children and resets its statistics. ID, Context and Depth are
// kept as they are.
func (n *Node) Clear() {
	n.parent = nil
	n.children = nil
	n.Visits = 0
	n.Value = 0
}

// walk visits n and its descendants in pre-order.
func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, child := range n.children {
		child.walk(fn)
	}
}
