package search

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"sync"

	"github.com/Goer17/InnoTree/pkg/eventstream"
	"github.com/Goer17/InnoTree/pkg/logger"
	"github.com/Goer17/InnoTree/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// job is a unit of work for the archiver: a task record to store, an event
// to publish, or both.
type job struct {
	task  *storage.Task
	event *eventstream.SearchEvent
}

func (j job) taskID() string {
	if j.task != nil {
		return j.task.ID
	}
	return j.event.TaskID
}

// ArchiverConfig is the configuration for the archiver's worker pool.
type ArchiverConfig struct {
	// Store persists task records.
	Store storage.Driver

	// Publisher receives search events. Nil disables publishing.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers (defaults to 3).
	NumWorkers uint

	// QueueSize is the capacity of each worker's queue (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// Archiver persists task records and publishes search events off the search
// goroutine. Jobs of one task always land on the same worker, so a task's
// records are stored in the order they were submitted.
type Archiver struct {
	store     storage.Driver
	publisher eventstream.Publisher
	queues    []chan job
	wg        sync.WaitGroup
	logger    *slog.Logger
}

// NewArchiver creates an Archiver and starts its workers.
func NewArchiver(c ArchiverConfig) (*Archiver, error) {
	if c.Store == nil {
		return nil, fmt.Errorf("archiver needs a storage driver")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	a := &Archiver{
		store:     c.Store,
		publisher: c.Publisher,
		queues:    make([]chan job, c.NumWorkers),
		logger:    logger.OrNop(c.Logger),
	}

	a.wg.Add(int(c.NumWorkers))
	for i := range a.queues {
		a.queues[i] = make(chan job, c.QueueSize)
		go a.worker(i)
	}

	return a, nil
}

func (a *Archiver) queueFor(taskID string) chan job {
	h := fnv.New32a()
	_, _ = h.Write([]byte(taskID))
	return a.queues[h.Sum32()%uint32(len(a.queues))]
}

// Enqueue submits a job without blocking. It returns false when the queue is
// full and the job was dropped.
func (a *Archiver) Enqueue(j job) bool {
	select {
	case a.queueFor(j.taskID()) <- j:
		return true
	default:
		a.logger.Error("archive job dropped, queue full", "task_id", j.taskID())
		return false
	}
}

// Submit blocks until the job is queued or ctx is done. Final task records
// go through Submit so they are never dropped.
func (a *Archiver) Submit(ctx context.Context, j job) error {
	select {
	case a.queueFor(j.taskID()) <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals workers to stop and waits for queued jobs to drain.
func (a *Archiver) Close() {
	for _, q := range a.queues {
		close(q)
	}
	a.wg.Wait()
}

func (a *Archiver) worker(id int) {
	defer a.wg.Done()
	a.logger.Debug("archive worker started", "worker_id", id)

	for j := range a.queues[id] {
		a.process(j)
	}

	a.logger.Debug("archive worker stopped", "worker_id", id)
}

func (a *Archiver) process(j job) {
	ctx := context.Background()

	if j.task != nil {
		if err := a.store.Put(ctx, j.task); err != nil {
			a.logger.Error("storing task failed", "task_id", j.task.ID, "error", err)
		} else {
			a.logger.Debug("task stored", "task_id", j.task.ID, "status", j.task.Status)
		}
	}

	if j.event != nil && a.publisher != nil {
		if err := a.publisher.Publish(ctx, j.event); err != nil {
			a.logger.Warn("publishing search event failed",
				"task_id", j.event.TaskID,
				"event_type", j.event.EventType,
				"error", err,
			)
		}
	}
}
