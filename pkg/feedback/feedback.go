// Package feedback answers search steps of a reasoning chain with
// abstracts retrieved from the literature vector store.
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/Goer17/InnoTree/pkg/embeddings"
	"github.com/Goer17/InnoTree/pkg/logger"
	"github.com/Goer17/InnoTree/pkg/mcts"
	"github.com/Goer17/InnoTree/pkg/vector"
)

// DefaultTopK is the number of documents returned per search.
const DefaultTopK = 3

const separator = "===================================================================================================="

// Config configures a Retriever.
type Config struct {
	Embedder embeddings.Embedder
	Store    vector.Driver

	// TopK defaults to DefaultTopK.
	TopK int

	Logger *slog.Logger
}

// Retriever implements mcts.Feedbacker over a vector store.
type Retriever struct {
	embedder embeddings.Embedder
	store    vector.Driver
	topK     int
	logger   *slog.Logger
}

// New creates a Retriever.
func New(cfg Config) (*Retriever, error) {
	if cfg.Embedder == nil || cfg.Store == nil {
		return nil, fmt.Errorf("feedback retriever needs an embedder and a vector store")
	}
	r := &Retriever{
		embedder: cfg.Embedder,
		store:    cfg.Store,
		topK:     cfg.TopK,
		logger:   logger.OrNop(cfg.Logger),
	}
	if r.topK <= 0 {
		r.topK = DefaultTopK
	}
	return r, nil
}

// Feedback returns the formatted top documents for a search context. Other
// kinds, and searches that fail or find nothing, get no observation.
func (r *Retriever) Feedback(ctx context.Context, c *mcts.Context) (string, bool) {
	if c.Kind != mcts.KindSearch {
		return "", false
	}

	emb, err := r.embedder.Embed(ctx, c.Content)
	if err != nil {
		r.logger.Error("embedding search query", "error", err)
		return "", false
	}
	results, err := r.store.Query(ctx, emb, r.topK)
	if err != nil {
		r.logger.Error("querying literature", "error", err)
		return "", false
	}
	if len(results) == 0 {
		r.logger.Debug("no literature found", "query", c.Content)
		return "", false
	}
	return Format(results), true
}

// Format renders documents as numbered blocks with their ID, metadata in
// key order and abstract, each closed by a separator line.
func Format(results []vector.QueryResult) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "Document %d:\n", i+1)
		fmt.Fprintf(&b, "ID: %s\n", r.ID)
		b.WriteString("Metadata:\n")
		for _, k := range slices.Sorted(maps.Keys(r.Metadata)) {
			fmt.Fprintf(&b, "  %s: %v\n", k, r.Metadata[k])
		}
		fmt.Fprintf(&b, "Abstract:\n%s\n", r.Content)
		b.WriteString(separator + "\n")
	}
	return b.String()
}

var _ mcts.Feedbacker = (*Retriever)(nil)
