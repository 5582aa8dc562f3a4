package reward_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Goer17/InnoTree/pkg/reward"
)

var _ = Describe("Scalar", func() {
	It("averages the criterion scores", func() {
		j := &judge{reply: func(string) (string, error) {
			return fenced(`{"novelty": {"score": 8, "reason": "x"}, "clarity": {"score": 6}}`), nil
		}}
		s := reward.NewScalar(reward.ScalarConfig{Completer: j})

		score, transcripts := s.Reward(context.Background(), "graph learning", "idea one", []string{"other"})
		Expect(score).To(Equal(7.0))
		Expect(transcripts).To(BeEmpty())
		Expect(j.callCount()).To(Equal(1))
	})

	It("renders the topic and idea into the prompt", func() {
		j := &judge{reply: func(string) (string, error) {
			return fenced(`{"novelty": {"score": 5}}`), nil
		}}
		s := reward.NewScalar(reward.ScalarConfig{Completer: j})
		s.Reward(context.Background(), "graph learning", "idea one", nil)

		Expect(j.calls[0]).To(ContainSubstring(`"graph learning"`))
		Expect(j.calls[0]).To(ContainSubstring("idea one"))
	})

	It("does not ask for a seeded pool", func() {
		_, ok := any(reward.NewScalar(reward.ScalarConfig{})).(interface{ SeedsPool() bool })
		Expect(ok).To(BeFalse())
	})

	DescribeTable("degrades to zero",
		func(reply string, err error) {
			j := &judge{reply: func(string) (string, error) { return reply, err }}
			s := reward.NewScalar(reward.ScalarConfig{Completer: j})
			score, _ := s.Reward(context.Background(), "t", "i", nil)
			Expect(score).To(BeZero())
		},
		Entry("on a transport error", "", errors.New("boom")),
		Entry("without a json block", "score: 9", nil),
		Entry("on invalid json", fenced(`{"novelty": `), nil),
		Entry("on an empty verdict", fenced(`{}`), nil),
		Entry("on a criterion without a score", fenced(`{"novelty": {"score": 8}, "feasibility": {"reason": "unclear"}}`), nil),
	)
})

var _ = Describe("New", func() {
	j := &judge{reply: preferA}

	It("defaults to the arena", func() {
		r, err := reward.New(reward.Config{Completer: j})
		Expect(err).NotTo(HaveOccurred())
		Expect(r).To(BeAssignableToTypeOf(&reward.Arena{}))
	})

	It("builds a scalar rewarder", func() {
		r, err := reward.New(reward.Config{Kind: reward.KindScalar, Completer: j})
		Expect(err).NotTo(HaveOccurred())
		Expect(r).To(BeAssignableToTypeOf(&reward.Scalar{}))
	})

	It("rejects unknown kinds", func() {
		_, err := reward.New(reward.Config{Kind: "elo", Completer: j})
		Expect(err).To(MatchError(ContainSubstring("unknown rewarder kind")))
	})

	It("requires a completer", func() {
		_, err := reward.New(reward.Config{Kind: reward.KindScalar})
		Expect(err).To(HaveOccurred())
	})
})
