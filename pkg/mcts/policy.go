package mcts

import (
	"fmt"
	"math/rand/v2"
)

// Policy names the child selection rule used while descending the tree.
type Policy string

const (
	// PolicyBest always follows the highest UCT child.
	PolicyBest Policy = "best"
	// PolicyEpsilon explores a random child with a fixed probability.
	PolicyEpsilon Policy = "epsilon"
	// PolicyVEpsilon divides epsilon by the root's visit count, so
	// exploration decays as the root accumulates visits.
	PolicyVEpsilon Policy = "v-epsilon"
)

// DefaultEpsilon is the exploration probability used by the epsilon policies.
const DefaultEpsilon = 0.05

// Policies lists the supported policies.
var Policies = []Policy{PolicyBest, PolicyEpsilon, PolicyVEpsilon}

// ParsePolicy converts a policy name into a Policy.
func ParsePolicy(name string) (Policy, error) {
	p := Policy(name)
	if !p.Valid() {
		return "", fmt.Errorf("unknown sampling policy %q (want one of %v)", name, Policies)
	}
	return p, nil
}

// Valid reports whether p is a supported policy.
func (p Policy) Valid() bool {
	switch p {
	case PolicyBest, PolicyEpsilon, PolicyVEpsilon:
		return true
	}
	return false
}

// Select picks the next child of node under policy p. root is the current
// live root; v-epsilon reads its visit count and falls back to the base
// epsilon while the root is unvisited.
func Select(p Policy, rng *rand.Rand, root, node *Node, epsilon, explorationWeight float64) *Node {
	switch p {
	case PolicyEpsilon:
		return node.EpsilonSample(rng, epsilon, explorationWeight)
	case PolicyVEpsilon:
		eps := epsilon
		if root.Visits > 0 {
			eps = epsilon / float64(root.Visits)
		}
		return node.EpsilonSample(rng, eps, explorationWeight)
	default:
		return node.BestChild(explorationWeight)
	}
}
