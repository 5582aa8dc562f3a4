// Package provider builds llm.Completer clients for the supported chat
// backends.
package provider

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Goer17/InnoTree/pkg/llm"
	"github.com/Goer17/InnoTree/pkg/llm/provider/anthropic"
	"github.com/Goer17/InnoTree/pkg/llm/provider/ollama"
	"github.com/Goer17/InnoTree/pkg/llm/provider/openai"
)

// Supported provider type constants
const (
	Anthropic = "anthropic"
	OpenAI    = "openai"
	Ollama    = "ollama"
)

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 120 * time.Second

// SupportedProviders returns the list of all supported provider type names.
func SupportedProviders() []string {
	return []string{Anthropic, OpenAI, Ollama}
}

// Config selects and configures a chat backend.
type Config struct {
	Provider string // "openai", "anthropic", or "ollama"
	Model    string
	APIKey   string // explicit API key (highest priority)
	BaseURL  string // override base URL

	// Timeout bounds each HTTP call. Zero uses DefaultTimeout.
	Timeout time.Duration
}

// New creates a Completer for cfg.Provider.
// Resolution order for the API key:
//  1. Explicit APIKey in config
//  2. Environment variables (OPENAI_API_KEY / ANTHROPIC_API_KEY)
//
// An OpenAI-compatible provider without a key falls back to Ollama.
func New(cfg Config) (llm.Completer, error) {
	name := strings.ToLower(cfg.Provider)
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = resolveAPIKeyFromEnv(name)
	}
	if apiKey == "" && (name == OpenAI || name == "") && cfg.BaseURL == "" {
		name = Ollama
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	switch name {
	case OpenAI, "":
		return openai.New(openai.Config{
			APIKey:     apiKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			HTTPClient: client,
		}), nil

	case Anthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("%s provider requires an API key", Anthropic)
		}
		return anthropic.New(anthropic.Config{
			APIKey:     apiKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			HTTPClient: client,
		}), nil

	case Ollama:
		return ollama.New(ollama.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			HTTPClient: client,
		}), nil

	default:
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", cfg.Provider, SupportedProviders())
	}
}

func resolveAPIKeyFromEnv(provider string) string {
	switch provider {
	case Anthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case OpenAI, "":
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}
