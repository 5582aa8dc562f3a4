// Package innotreecmder
package innotreecmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/Goer17/InnoTree/cmd/innotree/auth"
	configcmder "github.com/Goer17/InnoTree/cmd/innotree/config"
	ingestcmder "github.com/Goer17/InnoTree/cmd/innotree/ingest"
	paperscmder "github.com/Goer17/InnoTree/cmd/innotree/papers"
	runcmder "github.com/Goer17/InnoTree/cmd/innotree/run"
	servecmder "github.com/Goer17/InnoTree/cmd/innotree/serve"
	startcmder "github.com/Goer17/InnoTree/cmd/innotree/start"
	versioncmder "github.com/Goer17/InnoTree/cmd/innotree/version"
	watchcmder "github.com/Goer17/InnoTree/cmd/innotree/watch"
)

const innotreeLongDesc string = `InnoTree searches for research ideas with Monte-Carlo tree search.

An LLM proposes the next step of a line of research, rollouts carry each
candidate to a finished idea, and LLM judges score the ideas against each
other. The best branch is committed after every trial.

Run a search locally:
  innotree run --topic "graph neural networks for protein folding"

Or run the server and drive it remotely:
  innotree serve                Run the API server
  innotree start <topic>        Register a search on the server
  innotree watch                Follow the most recent search`

const innotreeShortDesc string = "InnoTree - research idea search"

func NewInnoTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "innotree",
		Short:        innotreeShortDesc,
		Long:         innotreeLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .innotree/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(runcmder.NewRunCmd())
	cmd.AddCommand(startcmder.NewStartCmd())
	cmd.AddCommand(watchcmder.NewWatchCmd())
	cmd.AddCommand(paperscmder.NewPapersCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
