package testutils

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Goer17/InnoTree/pkg/mcts"
	"github.com/Goer17/InnoTree/pkg/storage"
)

// NewTestTask builds a finished task created at the given offset from a
// fixed instant.
func NewTestTask(id string, offset time.Duration) *storage.Task {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(offset)
	return &storage.Task{
		ID:     id,
		Topic:  "graph learning",
		Status: storage.StatusFinished,
		Params: storage.Params{
			Policy:            "best",
			ExplorationWeight: 1,
			Trials:            3,
			Rollouts:          2,
			Expand:            2,
			Reward:            "arena",
		},
		StopReason: "completed",
		BestIdea:   "idea 1",
		Ideas:      []string{"idea 1", "idea 2"},
		Profiles: []mcts.Profile{
			{ID: "n1", Kind: "root", Content: "graph learning"},
			{ID: "n2", ParentID: "n1", Kind: "idea", Content: "idea 1", Value: 7.5, Visits: 2},
		},
		CreatedAt: created,
		UpdatedAt: created.Add(time.Minute),
	}
}

// DescribeTaskStore registers the behaviour every storage.Driver shares.
// newDriver is called before each spec and the driver closed after it.
func DescribeTaskStore(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
	})

	AfterEach(func() {
		Expect(driver.Close()).To(Succeed())
	})

	It("round-trips a task", func() {
		task := NewTestTask("t1", 0)
		Expect(driver.Put(ctx, task)).To(Succeed())

		got, err := driver.Get(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Topic).To(Equal(task.Topic))
		Expect(got.Status).To(Equal(storage.StatusFinished))
		Expect(got.Params).To(Equal(task.Params))
		Expect(got.Ideas).To(Equal(task.Ideas))
		Expect(got.Profiles).To(Equal(task.Profiles))
		Expect(got.CreatedAt.Equal(task.CreatedAt)).To(BeTrue())
		Expect(got.UpdatedAt.Equal(task.UpdatedAt)).To(BeTrue())
	})

	It("replaces a task with the same id", func() {
		task := NewTestTask("t1", 0)
		task.Status = storage.StatusRunning
		task.Ideas = nil
		task.Profiles = nil
		Expect(driver.Put(ctx, task)).To(Succeed())

		task = NewTestTask("t1", 0)
		task.Error = "judge unavailable"
		Expect(driver.Put(ctx, task)).To(Succeed())

		got, err := driver.Get(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Status).To(Equal(storage.StatusFinished))
		Expect(got.Error).To(Equal("judge unavailable"))
		Expect(got.Ideas).To(HaveLen(2))
	})

	It("returns NotFoundError for unknown ids", func() {
		_, err := driver.Get(ctx, "missing")
		var nf storage.NotFoundError
		Expect(errors.As(err, &nf)).To(BeTrue())
		Expect(nf.ID).To(Equal("missing"))
	})

	It("lists tasks newest first", func() {
		Expect(driver.Put(ctx, NewTestTask("old", 0))).To(Succeed())
		Expect(driver.Put(ctx, NewTestTask("new", time.Hour))).To(Succeed())
		Expect(driver.Put(ctx, NewTestTask("mid", time.Minute))).To(Succeed())

		tasks, err := driver.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		ids := make([]string, len(tasks))
		for i, t := range tasks {
			ids[i] = t.ID
		}
		Expect(ids).To(Equal([]string{"new", "mid", "old"}))
	})

	It("rejects tasks without an id", func() {
		Expect(driver.Put(ctx, &storage.Task{Topic: "x"})).NotTo(Succeed())
	})
}
