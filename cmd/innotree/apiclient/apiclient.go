// Package apiclient talks to a running InnoTree API server on behalf of the
// CLI commands.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Goer17/InnoTree/api"
	apisearch "github.com/Goer17/InnoTree/api/search"
	"github.com/Goer17/InnoTree/pkg/llm"
	"github.com/Goer17/InnoTree/pkg/mcts"
	"github.com/Goer17/InnoTree/pkg/search"
	"github.com/Goer17/InnoTree/pkg/sse"
	"github.com/Goer17/InnoTree/pkg/storage"
)

// ErrNotFound is returned when the server does not know a task.
var ErrNotFound = errors.New("task not found")

// Client calls one API server. The zero HTTP client is http.DefaultClient.
type Client struct {
	target *url.URL
	http   *http.Client
}

// New returns a client for the server at apiTarget.
func New(apiTarget string) (*Client, error) {
	u, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API target URL %q: scheme and host are required", apiTarget)
	}
	return &Client{target: u, http: http.DefaultClient}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.target
	u.Path = path
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to InnoTree API at %s: %w", c.target, err)
	}
	return resp, nil
}

// Start registers a search and returns its task id.
func (c *Client) Start(ctx context.Context, r search.Request) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/start", nil), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating start request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out api.StartResponse
	if err := c.roundTrip(req, &out); err != nil {
		return "", err
	}
	return out.TaskID, nil
}

// Task returns the full record of a task, search tree included.
func (c *Client) Task(ctx context.Context, id string) (*storage.Task, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/tasks/"+url.PathEscape(id), nil), nil)
	if err != nil {
		return nil, fmt.Errorf("creating task request: %w", err)
	}
	var out storage.Task
	if err := c.roundTrip(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tasks lists every task the server knows, newest first.
func (c *Client) Tasks(ctx context.Context) ([]api.TaskSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/tasks", nil), nil)
	if err != nil {
		return nil, fmt.Errorf("creating tasks request: %w", err)
	}
	var out struct {
		Tasks []api.TaskSummary `json:"tasks"`
	}
	if err := c.roundTrip(req, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// Papers searches the server's paper bank.
func (c *Client) Papers(ctx context.Context, query string, topK int) (*apisearch.SearchOutput, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("top_k", strconv.Itoa(topK))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/papers", q), nil)
	if err != nil {
		return nil, fmt.Errorf("creating papers request: %w", err)
	}
	var out apisearch.SearchOutput
	if err := c.roundTrip(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StreamOption configures Stream.
type StreamOption func(*streamOptions)

type streamOptions struct {
	record io.Writer
}

// RecordTo copies the raw event stream to w while it is read.
func RecordTo(w io.Writer) StreamOption {
	return func(o *streamOptions) { o.record = w }
}

// Stream follows a task's snapshot stream, calling onSnapshot for every
// snapshot, and returns the summary carried by the closing done event.
// Opening the stream starts the search if nobody has yet.
func (c *Client) Stream(ctx context.Context, id string, onSnapshot func([]mcts.Profile) error, opts ...StreamOption) (*api.TaskSummary, error) {
	o := streamOptions{record: io.Discard}
	for _, opt := range opts {
		opt(&o)
	}

	q := url.Values{}
	q.Set("task_id", id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/stream", q), nil)
	if err != nil {
		return nil, fmt.Errorf("creating stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	reader := sse.NewTeeReader(resp.Body, o.record)
	for {
		ev, err := reader.Next()
		if err != nil {
			return nil, fmt.Errorf("reading stream: %w", err)
		}
		if ev == nil {
			return nil, errors.New("stream ended before the search finished")
		}

		switch ev.Type {
		case sse.Done:
			var summary api.TaskSummary
			if err := json.Unmarshal([]byte(ev.Data), &summary); err != nil {
				return nil, fmt.Errorf("failed to parse done event: %w", err)
			}
			return &summary, nil
		case "", "message":
			var snap []mcts.Profile
			if err := json.Unmarshal([]byte(ev.Data), &snap); err != nil {
				return nil, fmt.Errorf("failed to parse snapshot: %w", err)
			}
			if onSnapshot != nil {
				if err := onSnapshot(snap); err != nil {
					return nil, err
				}
			}
		}
	}
}

func (c *Client) roundTrip(req *http.Request, out any) error {
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// responseError turns a non-200 response into an error, preferring the
// server's error message.
func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	msg := string(body)
	var er llm.ErrorResponse
	if json.Unmarshal(body, &er) == nil && er.Error != "" {
		msg = er.Error
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return fmt.Errorf("request failed (HTTP %d): %s", resp.StatusCode, msg)
}
