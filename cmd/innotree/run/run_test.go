package runcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Goer17/InnoTree/cmd/innotree/components"
	"github.com/Goer17/InnoTree/pkg/config"
	"github.com/Goer17/InnoTree/pkg/eventstream"
	"github.com/Goer17/InnoTree/pkg/logger"
	"github.com/Goer17/InnoTree/pkg/mcts"
	"github.com/Goer17/InnoTree/pkg/search"
	"github.com/Goer17/InnoTree/pkg/storage"
	testutils "github.com/Goer17/InnoTree/pkg/utils/test"
)

type mockBuilder struct {
	gen *testutils.MockGenerator
}

func (b mockBuilder) Build(task *storage.Task, _ search.Request, opts ...mcts.Option) (*mcts.Runner, error) {
	cfg := mcts.DefaultConfig(task.Topic)
	cfg.Trials = task.Params.Trials
	cfg.Rollouts = task.Params.Rollouts
	cfg.Expand = task.Params.Expand
	opts = append(opts, mcts.WithRand(rand.New(rand.NewPCG(1, 2))))
	return mcts.NewRunner(cfg, b.gen, &testutils.MockFeedbacker{}, &testutils.MockRewarder{Default: 3}, opts...)
}

var _ = Describe("run command", func() {
	var (
		cmder  *runCommander
		out    *bytes.Buffer
		errOut *bytes.Buffer
		gen    *testutils.MockGenerator
	)

	BeforeEach(func() {
		out = &bytes.Buffer{}
		errOut = &bytes.Buffer{}
		gen = testutils.NewMockGenerator()

		cfg := config.NewDefaultConfig()
		cfg.Storage.Driver = "memory"
		cfg.VectorStore.Provider = components.Disabled
		cfg.Search.Trials = 2
		cfg.Search.Rollouts = 2
		cfg.Search.Expand = 2

		cmder = &runCommander{
			topic:     "protein folding",
			cfg:       cfg,
			configDir: GinkgoT().TempDir(),
			out:       out,
			errOut:    errOut,
			logger:    logger.Nop(),
			newBuilder: func(*components.Components) search.Builder {
				return mockBuilder{gen: gen}
			},
		}
	})

	It("runs a search to completion and prints the task as JSON", func() {
		cmder.jsonOut = true
		Expect(cmder.run(context.Background())).To(Succeed())

		var task storage.Task
		Expect(json.Unmarshal(out.Bytes(), &task)).To(Succeed())
		Expect(task.Topic).To(Equal("protein folding"))
		Expect(task.Status).To(Equal(storage.StatusFinished))
		Expect(task.StopReason).To(Equal(string(mcts.StopCompleted)))
		Expect(task.BestIdea).NotTo(BeEmpty())
		Expect(task.Profiles[0].ParentID).To(BeEmpty())

		Expect(errOut.String()).To(ContainSubstring("Trial 1/2 committed"))
	})

	It("renders the best idea as markdown", func() {
		Expect(cmder.run(context.Background())).To(Succeed())
		Expect(out.String()).To(ContainSubstring("protein folding"))
		Expect(errOut.String()).To(ContainSubstring("completed"))
	})

	It("reports a failed search as an error", func() {
		gen.Err = errors.New("model unavailable")
		err := cmder.run(context.Background())
		Expect(err).To(MatchError(ContainSubstring("model unavailable")))
	})

	It("rejects a blank topic", func() {
		cmder.topic = "   "
		Expect(cmder.run(context.Background())).To(HaveOccurred())
	})
})

var _ = Describe("NewRunCmd", func() {
	It("requires a topic", func() {
		cmd := NewRunCmd()
		cmd.SetArgs([]string{})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		Expect(cmd.Execute()).To(MatchError(ContainSubstring("topic is required")))
	})

	It("refuses a topic given twice", func() {
		cmd := NewRunCmd()
		cmd.SetArgs([]string{"a", "--topic", "b"})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		Expect(cmd.Execute()).To(MatchError(ContainSubstring("either as an argument")))
	})
})

var _ = Describe("progress", func() {
	It("moves to the next trial on every commit", func() {
		var buf bytes.Buffer
		p := newProgress(&buf, 2)

		ev := eventstream.NewSearchEvent(eventstream.EventTypeSearchCommitted, "t", "topic")
		ev.Trials = 1
		ev.Frozen = []mcts.Profile{{ID: "a", Kind: "reasoning", Content: "first step"}}
		Expect(p.Publish(context.Background(), ev)).To(Succeed())
		p.snapshot(7)

		finished := eventstream.NewSearchEvent(eventstream.EventTypeSearchFinished, "t", "topic")
		Expect(p.Publish(context.Background(), finished)).To(Succeed())
		Expect(p.Publish(context.Background(), finished)).To(Succeed())
		Eventually(p.done).Should(BeClosed())

		Expect(p.Close()).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("Trial 1/2 committed"))
		Expect(buf.String()).To(ContainSubstring("first step"))
		Expect(buf.String()).To(ContainSubstring("Trial 2/2"))
		Expect(buf.String()).To(ContainSubstring("7 nodes"))
	})
})
