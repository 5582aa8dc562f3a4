package credentials

// Credentials is the content of credentials.toml.
type Credentials struct {
	Version   int                           `toml:"version"`
	Providers map[string]ProviderCredential `toml:"providers"`
}

// ProviderCredential holds the key of one provider, keyed by its canonical
// name.
type ProviderCredential struct {
	APIKey string `toml:"api_key"`
}
