package search_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Goer17/InnoTree/pkg/mcts"
	"github.com/Goer17/InnoTree/pkg/search"
)

var _ = Describe("Request", func() {
	It("accepts a topic with defaults", func() {
		req := search.Request{Topic: "  protein folding  "}
		Expect(req.Validate()).To(Succeed())
		Expect(req.Topic).To(Equal("protein folding"))
	})

	It("rejects an empty or blank topic", func() {
		for _, topic := range []string{"", "   \n"} {
			req := search.Request{Topic: topic}
			err := req.Validate()

			var verr *search.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(err).To(MatchError(mcts.ErrEmptyTopic))
		}
	})

	DescribeTable("rejects invalid fields",
		func(req search.Request, field string) {
			err := req.Validate()
			var verr *search.ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Fields).To(ContainElement(ContainSubstring(field)))
		},
		Entry("unknown policy", search.Request{Topic: "t", Policy: "greedy"}, "Policy"),
		Entry("unknown reward", search.Request{Topic: "t", Reward: "elo"}, "Reward"),
		Entry("bad base url", search.Request{Topic: "t", BaseURL: "not a url"}, "BaseURL"),
		Entry("negative trials", search.Request{Topic: "t", Trials: intPtr(-1)}, "Trials"),
		Entry("zero expand", search.Request{Topic: "t", Expand: intPtr(0)}, "Expand"),
	)

	It("accepts every supported policy and reward", func() {
		for _, p := range []string{"best", "epsilon", "v-epsilon"} {
			for _, r := range []string{"arena", "scalar"} {
				req := search.Request{Topic: "t", Policy: p, Reward: r}
				Expect(req.Validate()).To(Succeed())
			}
		}
	})
})
