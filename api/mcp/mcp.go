// Package mcp provides an MCP (Model Context Protocol) server exposing idea
// searches and literature search as tools.
package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apisearch "github.com/Goer17/InnoTree/api/search"
	"github.com/Goer17/InnoTree/pkg/search"
	"github.com/Goer17/InnoTree/pkg/utils"
)

type Config struct {
	// Searches starts and inspects idea search tasks
	Searches search.Service

	// Papers backs the search_papers tool. Optional: the tool is only
	// registered when it is configured.
	Papers *apisearch.Searcher

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the search tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "innotree",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)
	s.mcpServer = mcpServer

	if !c.Noop {
		if c.Searches == nil {
			return nil, errors.New("search service is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        startSearchToolName,
			Description: startSearchDescription,
		}, s.handleStartSearch)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        getSearchToolName,
			Description: getSearchDescription,
		}, s.handleGetSearch)

		if c.Papers.Configured() {
			mcp.AddTool(mcpServer, &mcp.Tool{
				Name:        searchPapersToolName,
				Description: searchPapersDescription,
			}, s.handleSearchPapers)
		}
	}

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// toolError reports a failure to the calling model rather than the protocol.
func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// textResult serializes the structured output as JSON in a TextContent block
// for clients that ignore structured content.
func textResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}, nil
}
