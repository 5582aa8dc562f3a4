package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	apisearch "github.com/Goer17/InnoTree/api/search"
	"github.com/Goer17/InnoTree/pkg/llm"
	"github.com/Goer17/InnoTree/pkg/search"
	"github.com/Goer17/InnoTree/pkg/storage"
)

// StartResponse is returned by POST /start.
type StartResponse struct {
	TaskID string `json:"task_id"`
}

// TaskSummary describes a task without its search tree. It closes every
// /stream response as the "done" event and makes up GET /tasks.
type TaskSummary struct {
	TaskID     string         `json:"task_id"`
	Topic      string         `json:"topic"`
	Status     storage.Status `json:"status"`
	Params     storage.Params `json:"params"`
	StopReason string         `json:"stop_reason,omitempty"`
	BestIdea   string         `json:"best_idea,omitempty"`
	Ideas      []string       `json:"ideas"`
	Nodes      int            `json:"nodes"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// NewTaskSummary builds the summary of a task record.
func NewTaskSummary(t *storage.Task) TaskSummary {
	ideas := t.Ideas
	if ideas == nil {
		ideas = []string{}
	}
	return TaskSummary{
		TaskID:     t.ID,
		Topic:      t.Topic,
		Status:     t.Status,
		Params:     t.Params,
		StopReason: t.StopReason,
		BestIdea:   t.BestIdea,
		Ideas:      ideas,
		Nodes:      len(t.Profiles),
		Error:      t.Error,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStart registers a search task. The search begins when a client
// opens its stream.
func (s *Server) handleStart(c *fiber.Ctx) error {
	var req search.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	id, err := s.searches.Start(c.Context(), req)
	if err != nil {
		var verr *search.ValidationError
		switch {
		case errors.As(err, &verr):
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: verr.Error()})
		case errors.Is(err, search.ErrClosed):
			return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{Error: "server is shutting down"})
		default:
			s.logger.Error("failed to start search", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to start search"})
		}
	}

	return c.JSON(StartResponse{TaskID: id})
}

// handleListTasks returns every known task, newest first.
func (s *Server) handleListTasks(c *fiber.Ctx) error {
	tasks, err := s.searches.List(c.Context())
	if err != nil {
		s.logger.Error("failed to list tasks", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list tasks"})
	}

	summaries := make([]TaskSummary, 0, len(tasks))
	for _, t := range tasks {
		summaries = append(summaries, NewTaskSummary(t))
	}

	return c.JSON(map[string]any{
		"count": len(summaries),
		"tasks": summaries,
	})
}

// handleGetTask returns one task including its search tree.
func (s *Server) handleGetTask(c *fiber.Ctx) error {
	id := c.Params("id")
	task, err := s.searches.Get(c.Context(), id)
	if err != nil {
		var nf storage.NotFoundError
		if errors.As(err, &nf) {
			return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "Task not found"})
		}
		s.logger.Error("failed to get task", "task_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get task"})
	}

	return c.JSON(task)
}

// handlePapers handles GET /papers requests.
// Query parameters:
//   - query (required): the search query text
//   - top_k (optional, default 5): number of results to return
func (s *Server) handlePapers(c *fiber.Ctx) error {
	if !s.papers.Configured() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{
			Error: apisearch.ErrNotConfigured.Error(),
		})
	}

	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "query parameter is required",
		})
	}

	topK := apisearch.DefaultTopK
	if topKStr := c.Query("top_k"); topKStr != "" {
		parsed, err := strconv.Atoi(topKStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
				Error: "top_k must be a positive integer",
			})
		}
		topK = parsed
	}

	output, err := s.papers.Search(c.Context(), query, topK)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(output)
}
