// Package sqldriver implements storage.Driver over database/sql. The sqlite
// and postgres drivers wrap it with their connection setup.
package sqldriver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Goer17/InnoTree/pkg/storage"
)

// Dialect captures the differences between SQL backends.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	topic TEXT NOT NULL,
	status TEXT NOT NULL,
	params TEXT NOT NULL,
	stop_reason TEXT NOT NULL DEFAULT '',
	best_idea TEXT NOT NULL DEFAULT '',
	ideas TEXT NOT NULL DEFAULT '[]',
	profiles TEXT NOT NULL DEFAULT '[]',
	error TEXT NOT NULL DEFAULT '',
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
)`

const columns = `id, topic, status, params, stop_reason, best_idea, ideas, profiles, error, created_at, updated_at`

// Driver stores tasks in a "tasks" table with JSON encoded columns.
type Driver struct {
	DB      *sql.DB
	dialect Dialect
}

// New creates the schema and returns a driver over db.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Driver, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Driver{DB: db, dialect: dialect}, nil
}

// rebind rewrites ? placeholders for dialects that number them.
func (d *Driver) rebind(query string) string {
	if d.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Put upserts the task.
func (d *Driver) Put(ctx context.Context, task *storage.Task) error {
	if task == nil || task.ID == "" {
		return errors.New("cannot store task without id")
	}

	params, err := json.Marshal(task.Params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	ideas, err := json.Marshal(nonNil(task.Ideas))
	if err != nil {
		return fmt.Errorf("encoding ideas: %w", err)
	}
	profiles, err := json.Marshal(nonNil(task.Profiles))
	if err != nil {
		return fmt.Errorf("encoding profiles: %w", err)
	}

	query := d.rebind(`
		INSERT INTO tasks (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			topic = excluded.topic,
			status = excluded.status,
			params = excluded.params,
			stop_reason = excluded.stop_reason,
			best_idea = excluded.best_idea,
			ideas = excluded.ideas,
			profiles = excluded.profiles,
			error = excluded.error,
			updated_at = excluded.updated_at`)
	_, err = d.DB.ExecContext(ctx, query,
		task.ID, task.Topic, string(task.Status), string(params),
		task.StopReason, task.BestIdea, string(ideas), string(profiles), task.Error,
		task.CreatedAt.UnixMilli(), task.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("storing task %s: %w", task.ID, err)
	}
	return nil
}

// Get retrieves a task by ID.
func (d *Driver) Get(ctx context.Context, id string) (*storage.Task, error) {
	row := d.DB.QueryRowContext(ctx, d.rebind(`SELECT `+columns+` FROM tasks WHERE id = ?`), id)
	task, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("loading task %s: %w", id, err)
	}
	return task, nil
}

// List returns all tasks, newest first.
func (d *Driver) List(ctx context.Context) ([]*storage.Task, error) {
	rows, err := d.DB.QueryContext(ctx, `SELECT `+columns+` FROM tasks ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var out []*storage.Task
	for rows.Next() {
		task, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*storage.Task, error) {
	var (
		t                       storage.Task
		status                  string
		params, ideas, profiles string
		createdAt, updatedAt    int64
	)
	err := s.Scan(&t.ID, &t.Topic, &status, &params, &t.StopReason, &t.BestIdea,
		&ideas, &profiles, &t.Error, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = storage.Status(status)
	t.CreatedAt = time.UnixMilli(createdAt)
	t.UpdatedAt = time.UnixMilli(updatedAt)

	if err := json.Unmarshal([]byte(params), &t.Params); err != nil {
		return nil, fmt.Errorf("decoding params: %w", err)
	}
	if err := json.Unmarshal([]byte(ideas), &t.Ideas); err != nil {
		return nil, fmt.Errorf("decoding ideas: %w", err)
	}
	if err := json.Unmarshal([]byte(profiles), &t.Profiles); err != nil {
		return nil, fmt.Errorf("decoding profiles: %w", err)
	}
	if len(t.Ideas) == 0 {
		t.Ideas = nil
	}
	if len(t.Profiles) == 0 {
		t.Profiles = nil
	}
	return &t, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

var _ storage.Driver = (*Driver)(nil)
