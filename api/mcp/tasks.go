package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Goer17/InnoTree/pkg/mcts"
	"github.com/Goer17/InnoTree/pkg/search"
	"github.com/Goer17/InnoTree/pkg/storage"
)

var (
	startSearchToolName    = "start_search"
	startSearchDescription = "Start a tree search for novel research ideas on a topic. The search runs in the background; poll get_search with the returned task_id for progress and the best idea."

	getSearchToolName    = "get_search"
	getSearchDescription = "Get the status of an idea search, its committed ideas and, once finished, the best idea. Set include_tree to also return every node of the search tree."
)

// StartSearchInput represents the input arguments for the start_search tool.
type StartSearchInput struct {
	Topic             string   `json:"topic" jsonschema:"the research topic to generate ideas for"`
	Model             string   `json:"model,omitempty" jsonschema:"model used for generation and judging (default: server configuration)"`
	SamplingMethod    string   `json:"sampling_method,omitempty" jsonschema:"one of best, epsilon or v-epsilon (default: best)"`
	ExplorationWeight *float64 `json:"exploration_weight,omitempty" jsonschema:"UCT exploration weight (default: 1.0)"`
	Trials            *int     `json:"n_trials,omitempty" jsonschema:"number of trials (default: 10)"`
	Rollouts          *int     `json:"n_rollouts,omitempty" jsonschema:"rollouts per trial (default: 10)"`
	Expand            *int     `json:"n_expand,omitempty" jsonschema:"children generated per expansion (default: 4)"`
	Reward            string   `json:"reward,omitempty" jsonschema:"arena or scalar (default: arena)"`
}

// StartSearchOutput represents the output of the start_search tool.
type StartSearchOutput struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// GetSearchInput represents the input arguments for the get_search tool.
type GetSearchInput struct {
	TaskID      string `json:"task_id" jsonschema:"the task id returned by start_search"`
	IncludeTree bool   `json:"include_tree,omitempty" jsonschema:"also return every node of the search tree"`
}

// GetSearchOutput represents the output of the get_search tool.
type GetSearchOutput struct {
	TaskID     string         `json:"task_id"`
	Topic      string         `json:"topic"`
	Status     string         `json:"status"`
	StopReason string         `json:"stop_reason,omitempty"`
	BestIdea   string         `json:"best_idea,omitempty"`
	Ideas      []string       `json:"ideas"`
	Nodes      int            `json:"nodes"`
	Error      string         `json:"error,omitempty"`
	Tree       []mcts.Profile `json:"tree,omitempty"`
}

// handleStartSearch registers a search and starts it right away.
func (s *Server) handleStartSearch(ctx context.Context, _ *mcp.CallToolRequest, input StartSearchInput) (*mcp.CallToolResult, StartSearchOutput, error) {
	logger := s.config.Logger

	req := search.Request{
		Topic:             input.Topic,
		Model:             input.Model,
		Policy:            input.SamplingMethod,
		ExplorationWeight: input.ExplorationWeight,
		Trials:            input.Trials,
		Rollouts:          input.Rollouts,
		Expand:            input.Expand,
		Reward:            input.Reward,
	}

	id, err := s.config.Searches.Start(ctx, req)
	if err != nil {
		logger.Warn("MCP start_search rejected", "error", err)
		return toolError("Failed to start search: %v", err), StartSearchOutput{}, nil
	}

	// Nobody streams an MCP search, so subscribe once to kick it off. The
	// run continues after the subscription is released.
	_, release, err := s.config.Searches.Subscribe(id)
	if err != nil {
		logger.Error("MCP start_search could not start the run", "task_id", id, "error", err)
		return toolError("Failed to start search: %v", err), StartSearchOutput{}, nil
	}
	release()

	logger.Debug("MCP search started", "task_id", id, "topic", req.Topic)

	output := StartSearchOutput{TaskID: id, Status: string(storage.StatusRunning)}
	result, err := textResult(output)
	if err != nil {
		return toolError("Failed to serialize result: %v", err), StartSearchOutput{}, nil
	}
	return result, output, nil
}

// handleGetSearch reports a search task.
func (s *Server) handleGetSearch(ctx context.Context, _ *mcp.CallToolRequest, input GetSearchInput) (*mcp.CallToolResult, GetSearchOutput, error) {
	task, err := s.config.Searches.Get(ctx, input.TaskID)
	if err != nil {
		var nf storage.NotFoundError
		if errors.As(err, &nf) {
			return toolError("No search with task_id %q", input.TaskID), GetSearchOutput{}, nil
		}
		s.config.Logger.Error("MCP get_search failed", "task_id", input.TaskID, "error", err)
		return toolError("Failed to load search: %v", err), GetSearchOutput{}, nil
	}

	output := buildGetSearchOutput(task, input.IncludeTree)
	result, err := textResult(output)
	if err != nil {
		return toolError("Failed to serialize result: %v", err), GetSearchOutput{}, nil
	}
	return result, output, nil
}

func buildGetSearchOutput(task *storage.Task, includeTree bool) GetSearchOutput {
	out := GetSearchOutput{
		TaskID:     task.ID,
		Topic:      task.Topic,
		Status:     string(task.Status),
		StopReason: task.StopReason,
		BestIdea:   task.BestIdea,
		Ideas:      task.Ideas,
		Nodes:      len(task.Profiles),
		Error:      task.Error,
	}
	if out.Ideas == nil {
		out.Ideas = []string{}
	}
	if includeTree {
		out.Tree = task.Profiles
	}
	return out
}
