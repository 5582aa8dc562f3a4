// Package search provides literature search over the ingested paper bank.
// It is used by both the REST API endpoint and the MCP server tool.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Goer17/InnoTree/pkg/embeddings"
	"github.com/Goer17/InnoTree/pkg/logger"
	"github.com/Goer17/InnoTree/pkg/vector"
)

// DefaultTopK is used when a request asks for no specific number of papers.
const DefaultTopK = 5

// ErrNotConfigured is returned when no vector store or embedder is set up.
var ErrNotConfigured = errors.New("literature search is not configured: vector store and embedder are required")

// SearchInput represents the input arguments for a search request.
type SearchInput struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// SearchResult is one paper matching the query.
type SearchResult struct {
	ID       string  `json:"id"`
	Score    float32 `json:"score"`
	Title    string  `json:"title,omitempty"`
	Authors  string  `json:"authors,omitempty"`
	DOI      string  `json:"doi,omitempty"`
	Abstract string  `json:"abstract"`
}

// SearchOutput represents the output of a search operation.
type SearchOutput struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// Searcher embeds queries and looks them up in the vector store.
type Searcher struct {
	embedder embeddings.Embedder
	store    vector.Driver
	logger   *slog.Logger
}

// NewSearcher creates a Searcher. Either dependency may be nil, in which
// case every search fails with ErrNotConfigured.
func NewSearcher(embedder embeddings.Embedder, store vector.Driver, log *slog.Logger) *Searcher {
	return &Searcher{
		embedder: embedder,
		store:    store,
		logger:   logger.OrNop(log),
	}
}

// Configured reports whether searches can run.
func (s *Searcher) Configured() bool {
	return s != nil && s.embedder != nil && s.store != nil
}

// Search returns the topK papers closest to query, most similar first.
func (s *Searcher) Search(ctx context.Context, query string, topK int) (*SearchOutput, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query is required")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	s.logger.Debug("literature search", "query", query, "top_k", topK)

	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	results, err := s.store.Query(ctx, emb, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}

	out := &SearchOutput{
		Query:   query,
		Results: make([]SearchResult, 0, len(results)),
	}
	for _, r := range results {
		out.Results = append(out.Results, buildSearchResult(r))
	}
	out.Count = len(out.Results)
	return out, nil
}

func buildSearchResult(r vector.QueryResult) SearchResult {
	return SearchResult{
		ID:       r.ID,
		Score:    r.Score,
		Title:    metaString(r.Metadata, "title"),
		Authors:  metaString(r.Metadata, "authors"),
		DOI:      metaString(r.Metadata, "doi"),
		Abstract: r.Content,
	}
}

func metaString(m map[string]any, key string) string {
	if v, ok := m[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}
