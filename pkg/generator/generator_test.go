package generator_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Goer17/InnoTree/pkg/generator"
	"github.com/Goer17/InnoTree/pkg/llm"
	"github.com/Goer17/InnoTree/pkg/mcts"
)

func reply(texts ...string) *llm.ChatResponse {
	resp := &llm.ChatResponse{}
	for _, t := range texts {
		resp.Choices = append(resp.Choices, llm.NewTextMessage(llm.RoleAssistant, t))
	}
	return resp
}

var _ = Describe("Parse", func() {
	It("reads the kind and trims the content", func() {
		c, err := generator.Parse("[search]\n  graph transformers \n[END]")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Kind).To(Equal(mcts.KindSearch))
		Expect(c.Content).To(Equal("graph transformers"))
	})

	It("keeps multi-line content", func() {
		c, err := generator.Parse("[idea]\nTitle: X\nMethod: Y\n[END]")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Content).To(Equal("Title: X\nMethod: Y"))
	})

	It("rejects a missing tag", func() {
		_, err := generator.Parse("just text [END")
		Expect(err).To(MatchError(generator.ErrMalformed))
	})

	It("rejects unknown kinds", func() {
		_, err := generator.Parse("[gen_idea]\nx\n[END]")
		Expect(err).To(MatchError(generator.ErrMalformed))
	})

	It("rejects a missing end marker", func() {
		_, err := generator.Parse("[idea]\nunfinished")
		Expect(err).To(MatchError(generator.ErrMalformed))
	})

	It("rejects the root kind", func() {
		_, err := generator.Parse("[root]\ngraph learning\n[END]")
		Expect(err).To(MatchError(generator.ErrMalformed))
		Expect(err.Error()).To(ContainSubstring("reserved for the tree root"))
	})

	It("abbreviates long output without splitting runes", func() {
		_, err := generator.Parse("x" + strings.Repeat("é", 80))
		Expect(err).To(MatchError(generator.ErrMalformed))
		Expect(err.Error()).To(ContainSubstring("x" + strings.Repeat("é", 59) + "..."))
		Expect(err.Error()).NotTo(ContainSubstring(`\x`))
	})
})

var _ = Describe("Messages", func() {
	It("turns contexts into assistant turns and observations into user turns", func() {
		q := mcts.NewContext(mcts.KindSearch, "q")
		Expect(q.SetObservation("Document 1")).To(Succeed())
		msgs := generator.Messages([]*mcts.Context{
			mcts.NewContext(mcts.KindReasoning, "think"),
			q,
		})

		Expect(msgs).To(HaveLen(3))
		Expect(msgs[0].Role).To(Equal(llm.RoleAssistant))
		Expect(msgs[0].GetText()).To(Equal("[reasoning]\nthink\n[END]"))
		Expect(msgs[1].GetText()).To(Equal("[search]\nq\n[END]"))
		Expect(msgs[2].Role).To(Equal(llm.RoleUser))
		Expect(msgs[2].GetText()).To(Equal("Document 1"))
	})
})

var _ = Describe("Generator", func() {
	var (
		requests []*llm.ChatRequest
		replies  []*llm.ChatResponse
		failures []error
		gen      *generator.Generator
	)

	BeforeEach(func() {
		requests, replies, failures = nil, nil, nil
		completer := llm.CompleterFunc(func(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
			requests = append(requests, req)
			if len(failures) > 0 {
				err := failures[0]
				failures = failures[1:]
				if err != nil {
					return nil, err
				}
			}
			next := replies[0]
			replies = replies[1:]
			return next, nil
		})

		var err error
		gen, err = generator.New(generator.Config{Completer: completer, Topic: "sparse attention"})
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a topic", func() {
		_, err := generator.New(generator.Config{Completer: llm.CompleterFunc(nil)})
		Expect(err).To(MatchError(mcts.ErrEmptyTopic))
	})

	It("asks for n choices with the end marker as stop sequence", func() {
		replies = []*llm.ChatResponse{reply("[reasoning]\na\n", "[search]\nb\n")}

		out, err := gen.Generate(context.Background(), []*mcts.Context{mcts.NewContext(mcts.KindReasoning, "start")}, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(2))
		Expect(out[0].Kind).To(Equal(mcts.KindReasoning))
		Expect(out[1].Content).To(Equal("b"))

		Expect(requests).To(HaveLen(1))
		Expect(requests[0].N).To(Equal(2))
		Expect(requests[0].Stop).To(Equal([]string{"[END]"}))
		Expect(requests[0].System).To(ContainSubstring("sparse attention"))
		Expect(requests[0].Messages).To(HaveLen(1))
	})

	It("retries a malformed reply with identical inputs", func() {
		replies = []*llm.ChatResponse{
			reply("no tag at all"),
			reply("[idea]\nfinal\n"),
		}

		out, err := gen.Generate(context.Background(), nil, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(out[0].Kind).To(Equal(mcts.KindIdea))
		Expect(requests).To(HaveLen(2))
		Expect(requests[1]).To(BeIdenticalTo(requests[0]))
	})

	It("gives up with ErrMalformed after the attempt bound", func() {
		replies = []*llm.ChatResponse{reply("bad"), reply("bad"), reply("bad"), reply("[idea]\nlate\n")}

		_, err := gen.Generate(context.Background(), nil, 1)
		Expect(err).To(MatchError(generator.ErrMalformed))
		Expect(requests).To(HaveLen(generator.DefaultMaxAttempts))
	})

	It("retries transport errors too but reports them as they are", func() {
		boom := errors.New("connection reset")
		failures = []error{boom, boom, boom}

		_, err := gen.Generate(context.Background(), nil, 1)
		Expect(err).To(MatchError(boom))
		Expect(err).NotTo(MatchError(generator.ErrMalformed))
		Expect(requests).To(HaveLen(3))
	})

	It("drops extra choices", func() {
		replies = []*llm.ChatResponse{reply("[idea]\na\n", "[idea]\nb\n")}
		out, err := gen.Generate(context.Background(), nil, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(1))
	})

	It("stops retrying once the context is canceled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		failures = []error{context.Canceled}

		_, err := gen.Generate(ctx, nil, 1)
		Expect(err).To(MatchError(context.Canceled))
		Expect(requests).To(HaveLen(1))
	})
})
