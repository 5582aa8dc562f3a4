package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Goer17/InnoTree/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

// Configer reads and writes config.toml inside a resolved .innotree/ directory.
type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .innotree/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Always set targetPath when the directory exists so SaveConfig
	// can create or overwrite the file.
	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns the sorted list of all supported configuration key names.
func ValidConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}

	// Return in a stable, logical order matching the TOML section layout.
	ordered := []string{
		"search.policy",
		"search.exploration_weight",
		"search.epsilon",
		"search.trials",
		"search.rollouts",
		"search.expand",
		"search.seed_rollouts",
		"search.reward",
		"search.arena_concurrency",
		"search.judge_rps",
		"search.max_attempts",
		"llm.provider",
		"llm.model",
		"llm.base_url",
		"llm.api_key",
		"vector_store.provider",
		"vector_store.target",
		"vector_store.collection",
		"vector_store.top_k",
		"embedding.provider",
		"embedding.target",
		"embedding.model",
		"embedding.dimensions",
		"embedding.api_key",
		"storage.driver",
		"storage.sqlite_path",
		"storage.postgres_dsn",
		"api.listen",
		"client.api_target",
		"eventstream.provider",
		"eventstream.brokers",
		"eventstream.topic",
		"telemetry.tracing",
		"prompts.dir",
	}

	// Sanity: only return keys that actually exist in the map.
	result := make([]string, 0, len(ordered))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
		}
	}

	// Append any keys in the map that we missed in the ordered list.
	seen := make(map[string]bool, len(result))
	for _, k := range result {
		seen[k] = true
	}
	for _, k := range keys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the target .innotree/ directory.
// If the file does not exist, returns DefaultConfig() so callers always receive
// a fully-populated Config with sane defaults. Fields explicitly set in the file
// override the defaults.
// If overrideDir is non-empty, it is used instead of the default .innotree/ location.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, md, err := parseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	// Merge in defaults: fill in any zero-value fields from the loaded config
	applyDefaults(cfg)
	applyUndefinedDefaults(cfg, md.IsDefined)

	return cfg, nil
}

// applyUndefinedDefaults fills the search settings for which zero is a
// meaningful value, but only when the source never set them.
func applyUndefinedDefaults(cfg *Config, isDefined func(key ...string) bool) {
	d := NewDefaultConfig()

	if !isDefined("search", "exploration_weight") {
		cfg.Search.ExplorationWeight = d.Search.ExplorationWeight
	}
	if !isDefined("search", "epsilon") {
		cfg.Search.Epsilon = d.Search.Epsilon
	}
	if !isDefined("search", "seed_rollouts") {
		cfg.Search.SeedRollouts = d.Search.SeedRollouts
	}
}

// applyDefaults fills zero-value fields in cfg with values from DefaultConfig().
// ExplorationWeight, Epsilon and SeedRollouts are left alone since zero is a
// valid setting for each.
func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = d.Version
	}

	orString(&cfg.Search.Policy, d.Search.Policy)
	orUint(&cfg.Search.Trials, d.Search.Trials)
	orUint(&cfg.Search.Rollouts, d.Search.Rollouts)
	orUint(&cfg.Search.Expand, d.Search.Expand)
	orString(&cfg.Search.Reward, d.Search.Reward)
	orUint(&cfg.Search.ArenaConcurrency, d.Search.ArenaConcurrency)
	orUint(&cfg.Search.MaxAttempts, d.Search.MaxAttempts)

	orString(&cfg.LLM.Provider, d.LLM.Provider)
	orString(&cfg.LLM.Model, d.LLM.Model)

	orString(&cfg.VectorStore.Provider, d.VectorStore.Provider)
	orString(&cfg.VectorStore.Collection, d.VectorStore.Collection)
	orUint(&cfg.VectorStore.TopK, d.VectorStore.TopK)

	orString(&cfg.Embedding.Provider, d.Embedding.Provider)
	orString(&cfg.Embedding.Target, d.Embedding.Target)
	orString(&cfg.Embedding.Model, d.Embedding.Model)
	orUint(&cfg.Embedding.Dimensions, d.Embedding.Dimensions)

	orString(&cfg.Storage.Driver, d.Storage.Driver)
	orString(&cfg.API.Listen, d.API.Listen)
	orString(&cfg.Client.APITarget, d.Client.APITarget)

	orString(&cfg.EventStream.Provider, d.EventStream.Provider)
	orString(&cfg.EventStream.Topic, d.EventStream.Topic)
}

func orString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func orUint(v *uint, def uint) {
	if *v == 0 {
		*v = def
	}
}

// SaveConfig persists the configuration to config.toml in the target .innotree/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a Config with sane defaults for the named provider preset.
// Supported presets: "openai", "anthropic", "ollama".
// Returns an error if the preset name is not recognized.
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "openai":
		cfg.LLM = LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			BaseURL:  "https://api.openai.com/v1",
		}
		return cfg, nil

	case "anthropic":
		cfg.LLM = LLMConfig{
			Provider: "anthropic",
			Model:    "claude-sonnet-4-5",
			BaseURL:  "https://api.anthropic.com",
		}
		return cfg, nil

	case "ollama":
		cfg.LLM = LLMConfig{
			Provider: "ollama",
			Model:    "llama3.1",
			BaseURL:  "http://localhost:11434",
		}
		cfg.Embedding = EmbeddingConfig{
			Provider:   "ollama",
			Target:     "http://localhost:11434",
			Model:      "nomic-embed-text",
			Dimensions: 768,
		}
		return cfg, nil

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: openai, anthropic, ollama)", name)
	}
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"openai", "anthropic", "ollama"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentConfigVersion.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg, _, err := parseConfigTOML(data)
	return cfg, err
}

func parseConfigTOML(data []byte) (*Config, toml.MetaData, error) {
	cfg := &Config{}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, md, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, md, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, md, nil
}
