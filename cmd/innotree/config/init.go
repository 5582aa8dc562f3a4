package configcmder

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Goer17/InnoTree/pkg/cliui"
	"github.com/Goer17/InnoTree/pkg/config"
)

const initLongDesc string = `Write a fresh config.toml.

Writes the default configuration, or the named provider preset, to the
.innotree/ directory. An existing file is kept unless --force is given.

Presets: openai, anthropic, ollama

Examples:
  innotree config init
  innotree config init anthropic
  innotree config init ollama --force`

const initShortDesc string = "Write a fresh config.toml"

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:       "init [preset]",
		Short:     initShortDesc,
		Long:      initLongDesc,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: config.ValidPresetNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			preset := ""
			if len(args) == 1 {
				preset = args[0]
			}
			return runInit(cmd.OutOrStdout(), preset, configDir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config.toml")

	return cmd
}

func runInit(w io.Writer, preset, configDir string, force bool) error {
	cfg := config.NewDefaultConfig()
	if preset != "" {
		var err error
		cfg, err = config.PresetConfig(preset)
		if err != nil {
			return err
		}
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	target := cfger.GetTarget()
	if target == "" {
		return errors.New("no .innotree/ directory could be resolved")
	}

	if _, err := os.Stat(target); err == nil && !force {
		return fmt.Errorf("%s already exists; use --force to overwrite it", target)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s Wrote %s\n\n", cliui.SuccessMark, cliui.DimStyle.Render(target))
	return nil
}
