package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	lastSearchFile = "last_search.json"
)

// LastSearch records the most recent search started from the CLI against an
// API server.
type LastSearch struct {
	TaskID string `json:"task_id"`
	Topic  string `json:"topic"`

	// APITarget is the server the task was started on.
	APITarget string    `json:"api_target"`
	StartedAt time.Time `json:"started_at"`
}

// LoadLastSearch loads the state from a target .innotree/last_search.json.
// Returns nil, nil if no search was recorded.
// If overrideDir is non-empty, it is used instead of the default location.
func (m *Manager) LoadLastSearch(overrideDir string) (*LastSearch, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, lastSearchFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading last search: %w", err)
	}

	state := &LastSearch{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing last search: %w", err)
	}

	return state, nil
}

// SaveLastSearch persists the state to a target .innotree/last_search.json.
func (m *Manager) SaveLastSearch(state *LastSearch, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil last search")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling last search: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, lastSearchFile), data, 0o600); err != nil {
		return fmt.Errorf("writing last search: %w", err)
	}

	return nil
}

// ClearLastSearch removes the state file. Returns nil if it doesn't exist.
func (m *Manager) ClearLastSearch(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, lastSearchFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing last search: %w", err)
	}

	return nil
}
