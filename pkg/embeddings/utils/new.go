// Package embeddingutils builds an embeddings.Embedder from configuration.
package embeddingutils

import (
	"context"
	"fmt"

	"github.com/Goer17/InnoTree/pkg/embeddings"
	"github.com/Goer17/InnoTree/pkg/embeddings/genai"
	"github.com/Goer17/InnoTree/pkg/embeddings/ollama"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
}

func NewEmbedder(ctx context.Context, o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case "genai", "gemini":
		return genai.NewEmbedder(ctx, genai.EmbedderConfig{
			APIKey:   o.APIKey,
			Model:    o.Model,
			TaskType: "RETRIEVAL_QUERY",
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}
