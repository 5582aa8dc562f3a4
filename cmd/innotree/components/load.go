package components

import (
	"github.com/spf13/cobra"

	"github.com/Goer17/InnoTree/pkg/config"
)

// LoadConfig merges defaults, config.toml, INNOTREE_* environment variables
// and the given registered flags of cmd into a Config. It also returns the
// --config-dir override.
func LoadConfig(cmd *cobra.Command, flagKeys []string) (*config.Config, string, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, "", err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	cfg, err := config.Decode(v)
	if err != nil {
		return nil, "", err
	}
	return cfg, configDir, nil
}
