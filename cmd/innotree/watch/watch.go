// Package watchcmder provides the watch command, which follows a search
// running on an InnoTree API server.
package watchcmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Goer17/InnoTree/api"
	"github.com/Goer17/InnoTree/cmd/innotree/apiclient"
	"github.com/Goer17/InnoTree/cmd/innotree/components"
	"github.com/Goer17/InnoTree/pkg/cliui"
	"github.com/Goer17/InnoTree/pkg/config"
	"github.com/Goer17/InnoTree/pkg/dotdir"
	"github.com/Goer17/InnoTree/pkg/mcts"
	"github.com/Goer17/InnoTree/pkg/utils"
)

type watchCommander struct {
	taskID    string
	apiTarget string
	jsonOut   bool
	record    string
	configDir string
	out       io.Writer
}

const watchLongDesc string = `Follow a search running on an InnoTree API server.

Opens the task's event stream and prints one line per snapshot with the size
of the tree, the ideas reached so far and the latest step. When the search
ends the final idea is rendered as markdown. Opening the first stream of a
task starts its search.

Without --task-id the most recent search started with "innotree start" is
followed.

Examples:
  innotree watch
  innotree watch --task-id 0b5c7b0e-7f1f-4a39-9a43-5c3f61b7a0a2
  innotree watch --json | jq '.[-1]'
  innotree watch --record search.sse`

const watchShortDesc string = "Follow a running search"

func NewWatchCmd() *cobra.Command {
	cmder := &watchCommander{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: watchShortDesc,
		Long:  watchLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, configDir, err := components.LoadConfig(cmd, []string{config.FlagAPITarget})
			if err != nil {
				return err
			}
			cmder.configDir = configDir
			cmder.apiTarget = cfg.Client.APITarget
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cmder.run(ctx)
		},
	}

	var apiTarget string
	cmd.Flags().StringVar(&cmder.taskID, "task-id", "", "Task to follow (default: the last started search)")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print every snapshot as a JSON line")
	cmd.Flags().StringVar(&cmder.record, "record", "", "Save the raw event stream to this file")
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &apiTarget)

	return cmd
}

func (c *watchCommander) run(ctx context.Context) error {
	if c.taskID == "" {
		last, err := dotdir.NewManager().LoadLastSearch(c.configDir)
		if err != nil {
			return err
		}
		if last == nil {
			return errors.New("no task id given and no search was started from this machine; pass --task-id")
		}
		c.taskID = last.TaskID
		if last.APITarget != "" {
			c.apiTarget = last.APITarget
		}
	}

	client, err := apiclient.New(c.apiTarget)
	if err != nil {
		return err
	}

	var opts []apiclient.StreamOption
	if c.record != "" {
		f, err := os.Create(c.record)
		if err != nil {
			return fmt.Errorf("creating stream record: %w", err)
		}
		defer f.Close()
		opts = append(opts, apiclient.RecordTo(f))
	}
	return Follow(ctx, client, c.taskID, c.out, c.jsonOut, opts...)
}

// Follow streams a task to out until it finishes. With asJSON every
// snapshot is printed as one JSON line and the summary closes the output.
func Follow(ctx context.Context, client *apiclient.Client, taskID string, out io.Writer, asJSON bool, opts ...apiclient.StreamOption) error {
	if !asJSON {
		fmt.Fprintf(out, "\n  %s %s\n\n",
			cliui.HeaderStyle.Render("Following task"),
			cliui.KeyStyle.Render(taskID),
		)
	}

	n := 0
	summary, err := client.Stream(ctx, taskID, func(snap []mcts.Profile) error {
		n++
		if asJSON {
			data, err := json.Marshal(snap)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(data))
			return err
		}
		_, err := fmt.Fprintln(out, SnapshotLine(n, snap))
		return err
	}, opts...)
	if err != nil {
		return err
	}

	if asJSON {
		data, err := json.Marshal(summary)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	return printSummary(out, summary)
}

// SnapshotLine summarizes one snapshot: node count, ideas and the newest
// step.
func SnapshotLine(n int, snap []mcts.Profile) string {
	nodes, ideas, transient := 0, 0, 0
	for _, p := range snap {
		if p.IsTransient() {
			transient++
		} else {
			nodes++
		}
		if p.Kind == string(mcts.KindIdea) {
			ideas++
		}
	}

	line := fmt.Sprintf("  %s %s %s",
		cliui.StepStyle.Render(fmt.Sprintf("#%-4d", n)),
		cliui.ValueStyle.Render(fmt.Sprintf("%d nodes", nodes)),
		cliui.DimStyle.Render(fmt.Sprintf("%d ideas", ideas)),
	)
	if transient > 0 {
		line += cliui.DimStyle.Render(fmt.Sprintf(" %d rollout steps", transient))
	}
	if len(snap) > 0 {
		last := snap[len(snap)-1]
		line += fmt.Sprintf("  %s %s", cliui.KindStyle.Render(last.Kind), utils.Truncate(last.Content, 60))
	}
	return line
}

func printSummary(out io.Writer, s *api.TaskSummary) error {
	fmt.Fprintf(out, "\n  %s %s  %s %s  %s %d\n",
		cliui.KeyStyle.Render("status:"), cliui.ValueStyle.Render(string(s.Status)),
		cliui.KeyStyle.Render("stop:"), cliui.ValueStyle.Render(s.StopReason),
		cliui.KeyStyle.Render("nodes:"), s.Nodes,
	)
	if s.Error != "" {
		fmt.Fprintf(out, "  %s %s\n", cliui.FailMark, s.Error)
	}

	rendered, _ := cliui.RenderMarkdown(cliui.IdeaMarkdown(s.Topic, s.BestIdea))
	_, err := fmt.Fprint(out, rendered)
	return err
}
