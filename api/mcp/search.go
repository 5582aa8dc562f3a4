package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apisearch "github.com/Goer17/InnoTree/api/search"
)

var (
	searchPapersToolName    = "search_papers"
	searchPapersDescription = "Search the ingested paper bank using semantic search. Returns the most relevant papers for the query text, with title, authors and abstract."
)

// SearchPapersInput represents the input arguments for the search_papers tool.
type SearchPapersInput struct {
	Query string `json:"query" jsonschema:"the search query text to find related papers"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of results to return (default: 5)"`
}

// handleSearchPapers processes a literature search request.
func (s *Server) handleSearchPapers(ctx context.Context, _ *mcp.CallToolRequest, input SearchPapersInput) (*mcp.CallToolResult, apisearch.SearchOutput, error) {
	output, err := s.config.Papers.Search(ctx, input.Query, input.TopK)
	if err != nil {
		s.config.Logger.Error("MCP paper search failed", "error", err)
		return toolError("Search failed: %v", err), apisearch.SearchOutput{}, nil
	}

	result, err := textResult(output)
	if err != nil {
		return toolError("Failed to serialize results: %v", err), apisearch.SearchOutput{}, nil
	}
	return result, *output, nil
}
