// Package storage archives finished and running search tasks.
package storage

import (
	"context"
	"time"

	"github.com/Goer17/InnoTree/pkg/mcts"
)

// Status is the lifecycle state of a Task.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Done reports whether the task has reached a final state.
func (s Status) Done() bool {
	return s == StatusFinished || s == StatusFailed || s == StatusCanceled
}

// Params are the search parameters a task was started with.
type Params struct {
	Policy            string  `json:"sampling_method"`
	ExplorationWeight float64 `json:"exploration_weight"`
	Trials            int     `json:"n_trials"`
	Rollouts          int     `json:"n_rollouts"`
	Expand            int     `json:"n_expand"`
	Reward            string  `json:"reward"`
	Model             string  `json:"model,omitempty"`
}

// Task is the archived record of one search.
type Task struct {
	ID         string         `json:"task_id"`
	Topic      string         `json:"topic"`
	Status     Status         `json:"status"`
	Params     Params         `json:"params"`
	StopReason string         `json:"stop_reason,omitempty"`
	BestIdea   string         `json:"best_idea,omitempty"`
	Ideas      []string       `json:"ideas,omitempty"`
	Profiles   []mcts.Profile `json:"profiles,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Driver persists tasks.
type Driver interface {
	// Put inserts or replaces the task with the same ID.
	Put(ctx context.Context, task *Task) error

	// Get returns the task or a NotFoundError.
	Get(ctx context.Context, id string) (*Task, error)

	// List returns all tasks, newest first.
	List(ctx context.Context) ([]*Task, error)

	Close() error
}
