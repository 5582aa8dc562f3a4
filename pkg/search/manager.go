// Package search runs idea searches as tasks: it registers them, starts each
// run when its first client subscribes, fans snapshots out to subscribers,
// and archives and announces the outcome.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Goer17/InnoTree/pkg/config"
	"github.com/Goer17/InnoTree/pkg/eventstream"
	"github.com/Goer17/InnoTree/pkg/logger"
	"github.com/Goer17/InnoTree/pkg/mcts"
	"github.com/Goer17/InnoTree/pkg/storage"
)

// ErrClosed is returned by a Manager that is shutting down.
var ErrClosed = errors.New("search manager is closed")

// Config configures a Manager.
type Config struct {
	Builder Builder
	Store   storage.Driver

	// Publisher receives committed and finished events. Nil disables them.
	Publisher eventstream.Publisher

	// Archiver overrides the default worker pool settings.
	Archiver ArchiverConfig

	Logger *slog.Logger
}

// Service is the task surface the API and MCP servers work against.
type Service interface {
	Start(ctx context.Context, req Request) (string, error)
	Subscribe(id string) (<-chan []mcts.Profile, func(), error)
	Get(ctx context.Context, id string) (*storage.Task, error)
	List(ctx context.Context) ([]*storage.Task, error)
}

var _ Service = (*Manager)(nil)

// Manager owns the live tasks of a server.
type Manager struct {
	builder  Builder
	store    storage.Driver
	archiver *Archiver
	logger   *slog.Logger

	// ctx bounds every run; cancel stops them all.
	ctx    context.Context
	cancel context.CancelFunc
	runs   sync.WaitGroup

	mu     sync.Mutex
	tasks  map[string]*task
	closed bool
}

type task struct {
	mu     sync.Mutex
	record *storage.Task
	req    Request

	start sync.Once
	bc    *Broadcaster
}

// snapshot returns a copy of the record that is safe to hand out.
func (t *task) snapshot() *storage.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := *t.record
	cp.Ideas = append([]string(nil), t.record.Ideas...)
	cp.Profiles = append([]mcts.Profile(nil), t.record.Profiles...)
	return &cp
}

func (t *task) update(fn func(r *storage.Task)) *storage.Task {
	t.mu.Lock()
	fn(t.record)
	t.record.UpdatedAt = time.Now().UTC()
	t.mu.Unlock()
	return t.snapshot()
}

// NewManager creates a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Builder == nil {
		return nil, errors.New("search manager needs a builder")
	}
	if cfg.Store == nil {
		return nil, errors.New("search manager needs a storage driver")
	}

	archCfg := cfg.Archiver
	archCfg.Store = cfg.Store
	archCfg.Publisher = cfg.Publisher
	if archCfg.Logger == nil {
		archCfg.Logger = cfg.Logger
	}
	archiver, err := NewArchiver(archCfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		builder:  cfg.Builder,
		store:    cfg.Store,
		archiver: archiver,
		logger:   logger.OrNop(cfg.Logger),
		ctx:      ctx,
		cancel:   cancel,
		tasks:    make(map[string]*task),
	}, nil
}

// Start validates req and registers a pending task. The search itself begins
// when the first client subscribes to it.
func (m *Manager) Start(_ context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	defSearch, defLLM := searchDefaults(m.builder)
	now := time.Now().UTC()
	t := &task{
		record: &storage.Task{
			ID:        uuid.NewString(),
			Topic:     req.Topic,
			Status:    storage.StatusPending,
			Params:    req.resolve(defSearch, defLLM),
			CreatedAt: now,
			UpdatedAt: now,
		},
		req: req,
		bc:  NewBroadcaster(),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrClosed
	}
	m.tasks[t.record.ID] = t
	m.archiver.Enqueue(job{task: t.snapshot()})
	m.mu.Unlock()

	m.logger.Info("search task registered", "task_id", t.record.ID, "topic", req.Topic)
	return t.record.ID, nil
}

// Subscribe returns the snapshot stream of a task, starting its search if
// nobody subscribed before. The channel closes when the search ends; call
// release to stop receiving early. Get reports the outcome afterwards.
func (m *Manager) Subscribe(id string) (<-chan []mcts.Profile, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, nil, storage.NotFoundError{ID: id}
	}

	ch, release := t.bc.Subscribe()
	t.start.Do(func() {
		if m.closed {
			t.bc.Close()
			return
		}
		m.runs.Add(1)
		go m.run(t)
	})
	return ch, release, nil
}

// Get returns the current record of a live task, or the archived one.
func (m *Manager) Get(ctx context.Context, id string) (*storage.Task, error) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	m.mu.Unlock()
	if ok {
		return t.snapshot(), nil
	}
	return m.store.Get(ctx, id)
}

// List returns archived tasks, newest first, with live records taking
// precedence over stale archived copies.
func (m *Manager) List(ctx context.Context) ([]*storage.Task, error) {
	archived, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	live := make(map[string]*task, len(m.tasks))
	for id, t := range m.tasks {
		live[id] = t
	}
	m.mu.Unlock()

	out := make([]*storage.Task, 0, len(archived)+len(live))
	for _, rec := range archived {
		if t, ok := live[rec.ID]; ok {
			out = append(out, t.snapshot())
			delete(live, rec.ID)
			continue
		}
		out = append(out, rec)
	}
	for _, t := range live {
		out = append(out, t.snapshot())
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *Manager) run(t *task) {
	defer m.runs.Done()
	defer t.bc.Close()

	rec := t.snapshot()
	log := m.logger.With("task_id", rec.ID)

	var frozen []mcts.Profile
	onCommit := func(trial int, p mcts.Profile) {
		frozen = append(frozen, p)
		ev := eventstream.NewSearchEvent(eventstream.EventTypeSearchCommitted, rec.ID, rec.Topic)
		ev.Frozen = append([]mcts.Profile(nil), frozen...)
		ev.Trials = trial + 1
		m.archiver.Enqueue(job{event: ev})
	}

	runner, err := m.builder.Build(rec, t.req, mcts.WithCommitHook(onCommit))
	if err != nil {
		log.Error("building search failed", "error", err)
		m.finish(t, nil, fmt.Errorf("building search: %w", err))
		return
	}

	running := t.update(func(r *storage.Task) { r.Status = storage.StatusRunning })
	m.archiver.Enqueue(job{task: running})
	log.Info("search started")

	for snap := range runner.Snapshots(m.ctx) {
		t.bc.Publish(snap)
	}

	res, err := runner.Outcome()
	if res != nil && !slices.Equal(t.bc.Latest(), res.Tree) {
		t.bc.Publish(res.Tree)
	}
	m.finish(t, res, err)
}

// finish records the outcome, archives the final record and announces it.
func (m *Manager) finish(t *task, res *mcts.Result, runErr error) {
	final := t.update(func(r *storage.Task) {
		switch {
		case res != nil && res.Stop == mcts.StopCanceled:
			r.Status = storage.StatusCanceled
		case runErr != nil:
			r.Status = storage.StatusFailed
		default:
			r.Status = storage.StatusFinished
		}
		if runErr != nil {
			r.Error = runErr.Error()
		}
		if res != nil {
			r.StopReason = string(res.Stop)
			r.BestIdea = res.Best
			r.Ideas = res.Ideas
			r.Profiles = res.Tree
		} else {
			r.StopReason = string(mcts.StopFailed)
		}
	})

	ev := eventstream.NewSearchEvent(eventstream.EventTypeSearchFinished, final.ID, final.Topic)
	ev.StopReason = final.StopReason
	ev.BestIdea = final.BestIdea
	ev.Error = final.Error
	if res != nil {
		ev.Frozen = res.Frozen
		ev.Trials = res.Trials
	}

	// The archive must see the final record even while shutting down.
	if err := m.archiver.Submit(context.Background(), job{task: final, event: ev}); err != nil {
		m.logger.Error("archiving finished task failed", "task_id", final.ID, "error", err)
	}
	m.logger.Info("search task finished",
		"task_id", final.ID,
		"status", final.Status,
		"stop", final.StopReason,
	)
}

// Close cancels running searches, waits for them to archive their outcome
// and drains the archiver. It does not close the store or the publisher.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.runs.Wait()
	m.archiver.Close()
	return nil
}

// defaultsProvider is implemented by builders that know the configured
// search defaults, such as Factory.
type defaultsProvider interface {
	Defaults() (config.SearchConfig, config.LLMConfig)
}

func searchDefaults(b Builder) (config.SearchConfig, config.LLMConfig) {
	if d, ok := b.(defaultsProvider); ok {
		return d.Defaults()
	}
	return config.NewDefaultConfig().Search, config.NewDefaultConfig().LLM
}

func sortNewestFirst(tasks []*storage.Task) {
	slices.SortStableFunc(tasks, func(a, b *storage.Task) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
