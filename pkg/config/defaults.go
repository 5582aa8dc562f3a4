package config

const (
	defaultPolicy            = "best"
	defaultExplorationWeight = 1.0
	defaultEpsilon           = 0.05
	defaultTrials            = 10
	defaultRollouts          = 10
	defaultExpand            = 4
	defaultSeedRollouts      = 4
	defaultReward            = "arena"
	defaultArenaConcurrency  = 8
	defaultMaxAttempts       = 3

	defaultLLMProvider = "openai"
	defaultLLMModel    = "gpt-4o-mini"

	defaultAPIListen       = ":8081"
	defaultClientAPITarget = "http://localhost:8081"

	defaultVectorProvider   = "sqlite"
	defaultVectorCollection = "innotree_papers"
	defaultTopK             = 3

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingModel      = "embeddinggemma"
	defaultEmbeddingDimensions = 768
	defaultEmbeddingTarget     = "http://localhost:11434"

	defaultStorageDriver = "sqlite"

	defaultEventStreamProvider = "nop"
	defaultEventStreamTopic    = "innotree.search.events"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Search: SearchConfig{
			Policy:            defaultPolicy,
			ExplorationWeight: defaultExplorationWeight,
			Epsilon:           defaultEpsilon,
			Trials:            defaultTrials,
			Rollouts:          defaultRollouts,
			Expand:            defaultExpand,
			SeedRollouts:      defaultSeedRollouts,
			Reward:            defaultReward,
			ArenaConcurrency:  defaultArenaConcurrency,
			MaxAttempts:       defaultMaxAttempts,
		},
		LLM: LLMConfig{
			Provider: defaultLLMProvider,
			Model:    defaultLLMModel,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Collection: defaultVectorCollection,
			TopK:       defaultTopK,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
	}
}
