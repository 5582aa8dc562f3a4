package feedback_test

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Goer17/InnoTree/pkg/feedback"
	"github.com/Goer17/InnoTree/pkg/mcts"
	testutils "github.com/Goer17/InnoTree/pkg/utils/test"
	"github.com/Goer17/InnoTree/pkg/vector"
)

var _ = Describe("Retriever", func() {
	var (
		ctx      context.Context
		embedder *testutils.MockEmbedder
		store    *testutils.MockVectorDriver
		r        *feedback.Retriever
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		store = testutils.NewMockVectorDriver()
		Expect(store.Add(ctx, []vector.Document{
			{ID: "1", Content: "abstract one", Metadata: map[string]any{"title": "One", "doi": "10.1/x"}},
			{ID: "2", Content: "abstract two", Metadata: map[string]any{"title": "Two"}},
			{ID: "3", Content: "abstract three"},
			{ID: "4", Content: "abstract four"},
		})).To(Succeed())

		var err error
		r, err = feedback.New(feedback.Config{Embedder: embedder, Store: store})
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires an embedder and a store", func() {
		_, err := feedback.New(feedback.Config{Store: store})
		Expect(err).To(HaveOccurred())
	})

	It("answers search contexts with the top documents", func() {
		obs, ok := r.Feedback(ctx, mcts.NewContext(mcts.KindSearch, "graph pretraining"))
		Expect(ok).To(BeTrue())
		Expect(embedder.Texts).To(Equal([]string{"graph pretraining"}))
		Expect(store.Queries).To(Equal([]int{feedback.DefaultTopK}))
		Expect(obs).To(HavePrefix("Document 1:\nID: 1\nMetadata:\n  doi: 10.1/x\n  title: One\nAbstract:\nabstract one\n"))
		Expect(obs).To(ContainSubstring("Document 3:\nID: 3\nMetadata:\nAbstract:\nabstract three\n"))
		Expect(obs).NotTo(ContainSubstring("Document 4"))
		Expect(strings.Count(obs, strings.Repeat("=", 100)+"\n")).To(Equal(3))
	})

	DescribeTable("ignores other kinds",
		func(kind mcts.Kind) {
			_, ok := r.Feedback(ctx, mcts.NewContext(kind, "anything"))
			Expect(ok).To(BeFalse())
			Expect(embedder.Texts).To(BeEmpty())
		},
		Entry("reasoning", mcts.KindReasoning),
		Entry("idea", mcts.KindIdea),
		Entry("refine", mcts.KindRefine),
		Entry("terminate", mcts.KindTerminate),
	)

	It("gives no observation when embedding fails", func() {
		embedder.FailOn = "q"
		_, ok := r.Feedback(ctx, mcts.NewContext(mcts.KindSearch, "q"))
		Expect(ok).To(BeFalse())
	})

	It("gives no observation when the store fails", func() {
		store.QueryErr = testutils.ErrMockQuery
		_, ok := r.Feedback(ctx, mcts.NewContext(mcts.KindSearch, "q"))
		Expect(ok).To(BeFalse())
	})

	It("gives no observation when nothing matches", func() {
		empty := testutils.NewMockVectorDriver()
		r, _ := feedback.New(feedback.Config{Embedder: embedder, Store: empty, TopK: 5})
		_, ok := r.Feedback(ctx, mcts.NewContext(mcts.KindSearch, "q"))
		Expect(ok).To(BeFalse())
		Expect(empty.Queries).To(Equal([]int{5}))
	})
})
