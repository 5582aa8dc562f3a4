// Package startcmder provides the start command, which registers a search on
// an InnoTree API server.
package startcmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Goer17/InnoTree/cmd/innotree/apiclient"
	"github.com/Goer17/InnoTree/cmd/innotree/components"
	watchcmder "github.com/Goer17/InnoTree/cmd/innotree/watch"
	"github.com/Goer17/InnoTree/pkg/cliui"
	"github.com/Goer17/InnoTree/pkg/config"
	"github.com/Goer17/InnoTree/pkg/dotdir"
	"github.com/Goer17/InnoTree/pkg/search"
)

type startCommander struct {
	req search.Request

	// Overrides are only sent when their flag was given.
	trials, rollouts, expand int
	explorationWeight        float64

	apiTarget string
	configDir string
	watch     bool
	quiet     bool
	out       io.Writer
}

const startLongDesc string = `Register a search on an InnoTree API server.

The server keeps the search pending until a client opens its stream; use
--watch to follow it right away, or "innotree watch" later. The task id is
remembered so "innotree watch" can find it without --task-id.

Unset search parameters fall back to the server's configuration.

Examples:
  innotree start "graph neural networks for protein folding"
  innotree start "sparse attention" --trials 4 --policy v-epsilon --watch
  innotree start "robot grasping" --api-target http://research-box:8081 --quiet`

const startShortDesc string = "Register a search on an API server"

func NewStartCmd() *cobra.Command {
	cmder := &startCommander{}

	cmd := &cobra.Command{
		Use:   "start <topic>",
		Short: startShortDesc,
		Long:  startLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, configDir, err := components.LoadConfig(cmd, []string{config.FlagAPITarget})
			if err != nil {
				return err
			}
			cmder.configDir = configDir
			cmder.apiTarget = cfg.Client.APITarget
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.req.Topic = args[0]
			if cmd.Flags().Changed("trials") {
				cmder.req.Trials = &cmder.trials
			}
			if cmd.Flags().Changed("rollouts") {
				cmder.req.Rollouts = &cmder.rollouts
			}
			if cmd.Flags().Changed("expand") {
				cmder.req.Expand = &cmder.expand
			}
			if cmd.Flags().Changed("exploration-weight") {
				cmder.req.ExplorationWeight = &cmder.explorationWeight
			}
			cmder.out = cmd.OutOrStdout()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cmder.run(ctx)
		},
	}

	var apiTarget string
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &apiTarget)
	cmd.Flags().StringVar(&cmder.req.Policy, "policy", "", "Sampling policy (best, epsilon, v-epsilon)")
	cmd.Flags().StringVar(&cmder.req.Reward, "reward", "", "Reward aggregator (arena, scalar)")
	cmd.Flags().StringVarP(&cmder.req.Model, "model", "m", "", "Model used for generation and judging")
	cmd.Flags().IntVar(&cmder.trials, "trials", 0, "Number of trials")
	cmd.Flags().IntVar(&cmder.rollouts, "rollouts", 0, "Rollouts per trial")
	cmd.Flags().IntVar(&cmder.expand, "expand", 0, "Children proposed per expansion")
	cmd.Flags().Float64Var(&cmder.explorationWeight, "exploration-weight", 0, "UCT exploration weight")
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Follow the search after starting it")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Print only the task id")

	return cmd
}

func (c *startCommander) run(ctx context.Context) error {
	client, err := apiclient.New(c.apiTarget)
	if err != nil {
		return err
	}

	id, err := client.Start(ctx, c.req)
	if err != nil {
		return err
	}

	if err := dotdir.NewManager().SaveLastSearch(&dotdir.LastSearch{
		TaskID:    id,
		Topic:     c.req.Topic,
		APITarget: c.apiTarget,
		StartedAt: time.Now().UTC(),
	}, c.configDir); err != nil {
		return fmt.Errorf("remembering task: %w", err)
	}

	if c.quiet {
		_, err := fmt.Fprintln(c.out, id)
		return err
	}

	fmt.Fprintf(c.out, "\n  %s %s %s\n",
		cliui.SuccessMark,
		cliui.HeaderStyle.Render("Search registered:"),
		cliui.KeyStyle.Render(id),
	)
	if !c.watch {
		fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Follow it with: innotree watch"))
		return nil
	}
	return watchcmder.Follow(ctx, client, id, c.out, false)
}
