// Package genai implements embeddings.Embedder with Google's Gemini
// embedding models.
package genai

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/Goer17/InnoTree/pkg/embeddings"
)

// DefaultEmbeddingModel is the default Gemini embedding model.
const DefaultEmbeddingModel = "gemini-embedding-001"

// EmbedderConfig holds configuration for the Gemini embedder.
type EmbedderConfig struct {
	APIKey string

	// Model defaults to DefaultEmbeddingModel.
	Model string

	// TaskType is a genai task type such as RETRIEVAL_QUERY. Empty means
	// semantic similarity.
	TaskType string
}

// Embedder wraps the Gemini EmbedContent API.
type Embedder struct {
	models   *genai.Models
	model    string
	taskType string
}

// NewEmbedder creates a Gemini embedder.
func NewEmbedder(ctx context.Context, cfg EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("genai embedder requires an api key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}
	taskType := cfg.TaskType
	if taskType == "" {
		taskType = DefaultTaskType
	}
	return &Embedder{
		models:   client.Models,
		model:    model,
		taskType: taskType,
	}, nil
}

// DefaultTaskType is used when EmbedderConfig.TaskType is empty.
const DefaultTaskType = "SEMANTIC_SIMILARITY"

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	result, err := e.models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: e.taskType,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", embeddings.ErrEmbedding)
	}
	return result.Embeddings[0].Values, nil
}

// Close is a no-op; the genai client holds no persistent connections.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
