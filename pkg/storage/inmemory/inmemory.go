// Package inmemory provides a map-backed storage.Driver for tests and
// single-process servers.
package inmemory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/Goer17/InnoTree/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	mu    sync.RWMutex
	tasks map[string]*storage.Task
}

// NewDriver creates a new in-memory store.
func NewDriver() *Driver {
	return &Driver{tasks: make(map[string]*storage.Task)}
}

// Put stores a copy of the task.
func (d *Driver) Put(_ context.Context, task *storage.Task) error {
	if task == nil {
		return errors.New("cannot store nil task")
	}
	if task.ID == "" {
		return errors.New("cannot store task without id")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks[task.ID] = clone(task)
	return nil
}

// Get returns a copy of the task.
func (d *Driver) Get(_ context.Context, id string) (*storage.Task, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	task, ok := d.tasks[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}
	return clone(task), nil
}

// List returns copies of all tasks, newest first.
func (d *Driver) List(_ context.Context) ([]*storage.Task, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*storage.Task, 0, len(d.tasks))
	for _, t := range d.tasks {
		out = append(out, clone(t))
	}
	slices.SortFunc(out, func(a, b *storage.Task) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

func clone(t *storage.Task) *storage.Task {
	c := *t
	c.Ideas = slices.Clone(t.Ideas)
	c.Profiles = slices.Clone(t.Profiles)
	return &c
}

var _ storage.Driver = (*Driver)(nil)
