package mcts_test

import (
	"math"
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Goer17/InnoTree/pkg/mcts"
)

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

var _ = Describe("Node", func() {
	var root *mcts.Node

	BeforeEach(func() {
		root = mcts.NewRootNode()
	})

	Describe("NewRootNode", func() {
		It("wraps an empty root context at depth zero", func() {
			Expect(root.Context.Kind).To(Equal(mcts.KindRoot))
			Expect(root.Depth).To(Equal(0))
			Expect(root.Parent()).To(BeNil())
			Expect(root.IsLeaf()).To(BeTrue())
		})

		It("assigns a timestamped id", func() {
			Expect(root.ID).To(MatchRegexp(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\]-\[#[0-9a-f]{8}\]$`))
		})

		It("assigns distinct ids", func() {
			other := mcts.NewRootNode()
			Expect(other.ID).NotTo(Equal(root.ID))
		})
	})

	Describe("AddChild", func() {
		It("links the child and increments depth", func() {
			child := root.AddChild(mcts.NewContext(mcts.KindReasoning, "step"))
			grandchild := child.AddChild(mcts.NewContext(mcts.KindIdea, "idea"))

			Expect(root.Children()).To(ConsistOf(child))
			Expect(child.Parent()).To(BeIdenticalTo(root))
			Expect(child.Depth).To(Equal(1))
			Expect(grandchild.Depth).To(Equal(2))
		})
	})

	Describe("UCT", func() {
		It("is +Inf for an unvisited node regardless of its siblings", func() {
			a := root.AddChild(mcts.NewContext(mcts.KindReasoning, "a"))
			b := root.AddChild(mcts.NewContext(mcts.KindReasoning, "b"))
			root.Visits, root.Value = 50, 400
			a.Visits, a.Value = 49, 1e6

			Expect(math.IsInf(b.UCT(1.0), 1)).To(BeTrue())
			Expect(math.IsInf(b.UCT(0), 1)).To(BeTrue())
		})

		It("combines average reward and exploration bonus", func() {
			child := root.AddChild(mcts.NewContext(mcts.KindReasoning, "a"))
			root.Visits = 10
			child.Visits, child.Value = 4, 20

			want := 5.0 + 2.0*math.Sqrt(math.Log(10)/4)
			Expect(child.UCT(2.0)).To(BeNumerically("~", want, 1e-12))
		})

		It("is the average reward with zero exploration weight", func() {
			child := root.AddChild(mcts.NewContext(mcts.KindReasoning, "a"))
			root.Visits = 7
			child.Visits, child.Value = 3, 9

			Expect(child.UCT(0)).To(Equal(3.0))
		})

		It("uses the node's own visits when it has no parent", func() {
			root.Visits, root.Value = 1, 4
			Expect(root.UCT(1.0)).To(Equal(4.0))
		})
	})

	Describe("BestChild", func() {
		It("returns nil without children", func() {
			Expect(root.BestChild(1.0)).To(BeNil())
		})

		It("returns the child with the highest score", func() {
			a := root.AddChild(mcts.NewContext(mcts.KindReasoning, "a"))
			b := root.AddChild(mcts.NewContext(mcts.KindReasoning, "b"))
			c := root.AddChild(mcts.NewContext(mcts.KindReasoning, "c"))
			root.Visits = 6
			a.Visits, a.Value = 2, 2
			b.Visits, b.Value = 2, 16
			c.Visits, c.Value = 2, 8

			Expect(root.BestChild(0)).To(BeIdenticalTo(b))
			Expect(root.BestChild(1.0)).To(BeIdenticalTo(b))
		})

		It("breaks ties in favor of the first child", func() {
			a := root.AddChild(mcts.NewContext(mcts.KindReasoning, "a"))
			b := root.AddChild(mcts.NewContext(mcts.KindReasoning, "b"))
			root.Visits = 4
			a.Visits, a.Value = 2, 6
			b.Visits, b.Value = 2, 6

			Expect(root.BestChild(1.0)).To(BeIdenticalTo(a))
		})

		It("prefers the first unvisited child", func() {
			a := root.AddChild(mcts.NewContext(mcts.KindReasoning, "a"))
			b := root.AddChild(mcts.NewContext(mcts.KindReasoning, "b"))
			c := root.AddChild(mcts.NewContext(mcts.KindReasoning, "c"))
			root.Visits = 1
			a.Visits, a.Value = 1, 10

			Expect(root.BestChild(0)).To(BeIdenticalTo(b))
			Expect(c.Visits).To(Equal(0))
		})
	})

	Describe("EpsilonSample", func() {
		It("returns nil without children", func() {
			Expect(root.EpsilonSample(newRNG(1), 0.5, 1.0)).To(BeNil())
		})

		It("matches BestChild when epsilon is zero", func() {
			for i := range 4 {
				child := root.AddChild(mcts.NewContext(mcts.KindReasoning, "c"))
				child.Visits, child.Value = 1, float64(i%3)
			}
			root.Visits = 4
			best := root.BestChild(1.0)
			rng := newRNG(7)

			for range 200 {
				Expect(root.EpsilonSample(rng, 0, 1.0)).To(BeIdenticalTo(best))
			}
		})

		It("picks every child when epsilon is one", func() {
			for range 3 {
				root.AddChild(mcts.NewContext(mcts.KindReasoning, "c"))
			}
			seen := map[*mcts.Node]bool{}
			rng := newRNG(11)
			for range 300 {
				seen[root.EpsilonSample(rng, 1, 1.0)] = true
			}
			Expect(seen).To(HaveLen(3))
		})

		It("is reproducible for a given seed", func() {
			for range 5 {
				root.AddChild(mcts.NewContext(mcts.KindReasoning, "c"))
			}
			pick := func(seed uint64) []*mcts.Node {
				rng := newRNG(seed)
				out := make([]*mcts.Node, 20)
				for i := range out {
					out[i] = root.EpsilonSample(rng, 0.5, 1.0)
				}
				return out
			}
			Expect(pick(3)).To(Equal(pick(3)))
		})
	})

	Describe("Update", func() {
		It("adds one visit and the reward", func() {
			root.Update(2.5)
			root.Update(1.5)
			Expect(root.Visits).To(Equal(2))
			Expect(root.Value).To(Equal(4.0))
		})
	})

	Describe("Clear", func() {
		It("resets statistics and links but keeps identity and depth", func() {
			child := root.AddChild(mcts.NewContext(mcts.KindReasoning, "kept"))
			child.AddChild(mcts.NewContext(mcts.KindIdea, "dropped"))
			child.Visits, child.Value = 3, 12
			id := child.ID

			child.Clear()

			Expect(child.Parent()).To(BeNil())
			Expect(child.Children()).To(BeEmpty())
			Expect(child.Visits).To(Equal(0))
			Expect(child.Value).To(Equal(0.0))
			Expect(child.ID).To(Equal(id))
			Expect(child.Context.Content).To(Equal("kept"))
			Expect(child.Depth).To(Equal(1))
		})
	})

	Describe("Backpropagate", func() {
		It("updates the leaf and every ancestor and nothing else", func() {
			a := root.AddChild(mcts.NewContext(mcts.KindReasoning, "a"))
			sibling := root.AddChild(mcts.NewContext(mcts.KindReasoning, "sibling"))
			b := a.AddChild(mcts.NewContext(mcts.KindSearch, "b"))
			leaf := b.AddChild(mcts.NewContext(mcts.KindReasoning, "leaf"))
			cousin := a.AddChild(mcts.NewContext(mcts.KindReasoning, "cousin"))

			mcts.Backpropagate(leaf, 7.5)

			Expect(leaf.Depth).To(Equal(3))
			for _, n := range []*mcts.Node{leaf, b, a, root} {
				Expect(n.Visits).To(Equal(1))
				Expect(n.Value).To(Equal(7.5))
			}
			for _, n := range []*mcts.Node{sibling, cousin} {
				Expect(n.Visits).To(Equal(0))
				Expect(n.Value).To(Equal(0.0))
			}
		})
	})
})

var _ = Describe("Context", func() {
	It("renders the tagged block", func() {
		c := mcts.NewContext(mcts.KindSearch, "graph neural networks")
		Expect(c.String()).To(Equal("[search]\ngraph neural networks\n[END]"))
	})

	It("appends the observation block once attached", func() {
		c := mcts.NewContext(mcts.KindSearch, "q")
		Expect(c.SetObservation("doc")).To(Succeed())
		Expect(c.String()).To(Equal("[search]\nq\n[END][observation]\ndoc\n[END]"))

		obs, ok := c.Observation()
		Expect(ok).To(BeTrue())
		Expect(obs).To(Equal("doc"))
	})

	It("refuses a second observation", func() {
		c := mcts.NewContext(mcts.KindSearch, "q")
		Expect(c.SetObservation("first")).To(Succeed())
		Expect(c.SetObservation("second")).To(MatchError(mcts.ErrObservationSet))
	})

	It("validates kinds", func() {
		Expect(mcts.KindIdea.Valid()).To(BeTrue())
		Expect(mcts.Kind("gen_idea").Valid()).To(BeFalse())
	})

	It("treats a chain ending in an idea as terminal", func() {
		Expect(mcts.EndsWithIdea(nil)).To(BeFalse())
		Expect(mcts.EndsWithIdea([]*mcts.Context{mcts.NewContext(mcts.KindReasoning, "r")})).To(BeFalse())
		Expect(mcts.EndsWithIdea([]*mcts.Context{
			mcts.NewContext(mcts.KindReasoning, "r"),
			mcts.NewContext(mcts.KindIdea, "i"),
		})).To(BeTrue())
	})
})

var _ = Describe("Policy", func() {
	var root *mcts.Node

	BeforeEach(func() {
		root = mcts.NewRootNode()
		for i := range 3 {
			child := root.AddChild(mcts.NewContext(mcts.KindReasoning, "c"))
			child.Visits, child.Value = 1, float64(i)
		}
	})

	It("parses known names", func() {
		for _, name := range []string{"best", "epsilon", "v-epsilon"} {
			p, err := mcts.ParsePolicy(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(p)).To(Equal(name))
		}
	})

	It("rejects unknown names", func() {
		_, err := mcts.ParsePolicy("greedy")
		Expect(err).To(HaveOccurred())
	})

	It("follows the best child under best", func() {
		root.Visits = 3
		Expect(mcts.Select(mcts.PolicyBest, newRNG(1), root, root, 1, 0)).To(BeIdenticalTo(root.Children()[2]))
	})

	It("uses the base epsilon under v-epsilon while the root is unvisited", func() {
		rng := newRNG(5)
		for range 50 {
			Expect(mcts.Select(mcts.PolicyVEpsilon, rng, root, root, 0, 0)).To(BeIdenticalTo(root.BestChild(0)))
		}
	})

	It("decays epsilon with root visits under v-epsilon", func() {
		root.Visits = 1_000_000
		rng := newRNG(9)
		for range 100 {
			Expect(mcts.Select(mcts.PolicyVEpsilon, rng, root, root, 1, 0)).To(BeIdenticalTo(root.Children()[2]))
		}
	})
})
