package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent innotree configuration stored as
// config.toml in the .innotree/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Search      SearchConfig      `toml:"search"`
	LLM         LLMConfig         `toml:"llm"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Telemetry   TelemetryConfig   `toml:"telemetry"`
	Prompts     PromptsConfig     `toml:"prompts"`
}

// SearchConfig holds the tree search parameters used when a request leaves
// them unset.
type SearchConfig struct {
	Policy            string  `toml:"policy,omitempty"`
	ExplorationWeight float64 `toml:"exploration_weight"`
	Epsilon           float64 `toml:"epsilon"`
	Trials            uint    `toml:"trials,omitempty"`
	Rollouts          uint    `toml:"rollouts,omitempty"`
	Expand            uint    `toml:"expand,omitempty"`
	SeedRollouts      uint    `toml:"seed_rollouts"`

	// Reward selects the rewarder: "arena" or "scalar".
	Reward           string  `toml:"reward,omitempty"`
	ArenaConcurrency uint    `toml:"arena_concurrency,omitempty"`
	JudgeRPS         float64 `toml:"judge_rps,omitempty"`
	MaxAttempts      uint    `toml:"max_attempts,omitempty"`
}

// LLMConfig selects the chat backend used by the generator and the judges.
type LLMConfig struct {
	Provider string `toml:"provider,omitempty"`
	Model    string `toml:"model,omitempty"`
	BaseURL  string `toml:"base_url,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
	TopK       uint   `toml:"top_k,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
}

// StorageConfig selects where finished searches are archived.
type StorageConfig struct {
	// Driver is one of "memory", "sqlite" or "postgres".
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// API server (e.g. innotree watch). Values are full URLs.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// EventStreamConfig configures where search events are published.
type EventStreamConfig struct {
	// Provider is "nop" or "kafka".
	Provider string `toml:"provider,omitempty"`
	// Brokers is a comma separated list of host:port pairs.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// TelemetryConfig toggles tracing output.
type TelemetryConfig struct {
	Tracing bool `toml:"tracing,omitempty"`
}

// PromptsConfig points at a directory of prompt overrides.
type PromptsConfig struct {
	Dir string `toml:"dir,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatFloat(*field(c), 'g', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

// zeroUintKey is uintKey for settings where zero is meaningful and is printed.
func zeroUintKey(name string, field func(c *Config) *uint) configKeyInfo {
	k := uintKey(name, field)
	k.get = func(c *Config) string { return strconv.FormatUint(uint64(*field(c)), 10) }
	return k
}

func zeroFloatKey(name string, field func(c *Config) *float64) configKeyInfo {
	k := floatKey(name, field)
	k.get = func(c *Config) string { return strconv.FormatFloat(*field(c), 'g', -1, 64) }
	return k
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"search.policy":             stringKey(func(c *Config) *string { return &c.Search.Policy }),
	"search.exploration_weight": zeroFloatKey("search.exploration_weight", func(c *Config) *float64 { return &c.Search.ExplorationWeight }),
	"search.epsilon":            zeroFloatKey("search.epsilon", func(c *Config) *float64 { return &c.Search.Epsilon }),
	"search.trials":             uintKey("search.trials", func(c *Config) *uint { return &c.Search.Trials }),
	"search.rollouts":           uintKey("search.rollouts", func(c *Config) *uint { return &c.Search.Rollouts }),
	"search.expand":             uintKey("search.expand", func(c *Config) *uint { return &c.Search.Expand }),
	"search.seed_rollouts":      zeroUintKey("search.seed_rollouts", func(c *Config) *uint { return &c.Search.SeedRollouts }),
	"search.reward":             stringKey(func(c *Config) *string { return &c.Search.Reward }),
	"search.arena_concurrency":  uintKey("search.arena_concurrency", func(c *Config) *uint { return &c.Search.ArenaConcurrency }),
	"search.judge_rps":          floatKey("search.judge_rps", func(c *Config) *float64 { return &c.Search.JudgeRPS }),
	"search.max_attempts":       uintKey("search.max_attempts", func(c *Config) *uint { return &c.Search.MaxAttempts }),

	"llm.provider": stringKey(func(c *Config) *string { return &c.LLM.Provider }),
	"llm.model":    stringKey(func(c *Config) *string { return &c.LLM.Model }),
	"llm.base_url": stringKey(func(c *Config) *string { return &c.LLM.BaseURL }),
	"llm.api_key":  stringKey(func(c *Config) *string { return &c.LLM.APIKey }),

	"vector_store.provider":   stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":     stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.collection": stringKey(func(c *Config) *string { return &c.VectorStore.Collection }),
	"vector_store.top_k":      uintKey("vector_store.top_k", func(c *Config) *uint { return &c.VectorStore.TopK }),

	"embedding.provider":   stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":     stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":      stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"embedding.api_key":    stringKey(func(c *Config) *string { return &c.Embedding.APIKey }),

	"storage.driver":       stringKey(func(c *Config) *string { return &c.Storage.Driver }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"api.listen":        stringKey(func(c *Config) *string { return &c.API.Listen }),
	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),

	"eventstream.provider": stringKey(func(c *Config) *string { return &c.EventStream.Provider }),
	"eventstream.brokers":  stringKey(func(c *Config) *string { return &c.EventStream.Brokers }),
	"eventstream.topic":    stringKey(func(c *Config) *string { return &c.EventStream.Topic }),

	"telemetry.tracing": boolKey("telemetry.tracing", func(c *Config) *bool { return &c.Telemetry.Tracing }),
	"prompts.dir":       stringKey(func(c *Config) *string { return &c.Prompts.Dir }),
}
