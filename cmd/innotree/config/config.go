// Package configcmder provides the config command for managing persistent
// innotree configuration stored in the .innotree/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Goer17/InnoTree/pkg/cliui"
	"github.com/Goer17/InnoTree/pkg/config"
)

const configLongDesc string = `Manage persistent innotree configuration.

Configuration is stored as config.toml in the .innotree/ directory and provides
default values for command flags. CLI flags and INNOTREE_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  search.policy, search.trials, search.rollouts, search.expand, search.reward,
  llm.provider, llm.model, llm.base_url, llm.api_key,
  vector_store.provider, vector_store.target, vector_store.top_k,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  api.listen, client.api_target, eventstream.provider, eventstream.brokers

Use subcommands to manage configuration values:
  innotree config init [preset]       Write a fresh config.toml
  innotree config set <key> <value>   Set a configuration value
  innotree config get <key>           Get a configuration value
  innotree config list                List all configuration values

Examples:
  innotree config init ollama
  innotree config set llm.provider anthropic
  innotree config set search.trials 20
  innotree config get llm.model
  innotree config list`

const configShortDesc string = "Manage persistent innotree configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func validKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// printTarget prints which config file a command reads or writes.
func printTarget(w io.Writer, target string) {
	if target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
