// Package runcmder provides the run command, which searches for a research
// idea in-process and renders the result in the terminal.
package runcmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Goer17/InnoTree/cmd/innotree/components"
	"github.com/Goer17/InnoTree/pkg/cliui"
	"github.com/Goer17/InnoTree/pkg/config"
	"github.com/Goer17/InnoTree/pkg/logger"
	"github.com/Goer17/InnoTree/pkg/search"
	"github.com/Goer17/InnoTree/pkg/storage"
)

type runCommander struct {
	flags struct {
		provider       string
		model          string
		baseURL        string
		apiKey         string
		policy         string
		reward         string
		trials         uint
		rollouts       uint
		expand         uint
		storage        string
		sqlitePath     string
		postgresDSN    string
		vectorProvider string
		vectorTarget   string
		embedProvider  string
		embedTarget    string
		embedModel     string
		promptsDir     string
	}

	topic     string
	seed      uint64
	jsonOut   bool
	debug     bool
	cfg       *config.Config
	configDir string

	out    io.Writer
	errOut io.Writer
	logger *slog.Logger

	// newBuilder creates the per-task builder. Defaults to the components'
	// factory.
	newBuilder func(*components.Components) search.Builder
}

const runLongDesc string = `Search for a research idea on a topic, in-process.

The search runs the configured number of trials. Each trial spends its
rollout budget, then commits the best child of the root. A spinner tracks
the current trial and the size of the tree; the final idea is rendered as
markdown once the search ends. The finished search is archived in the
configured task store.

Press Ctrl-C to stop early: the search ends with the ideas found so far.

Examples:
  innotree run --topic "graph neural networks for protein folding"
  innotree run "sparse attention" --trials 4 --rollouts 6 --policy epsilon
  innotree run "retrieval augmented planning" --reward scalar --json`

const runShortDesc string = "Search for a research idea in-process"

var runFlagKeys = []string{
	config.FlagProvider,
	config.FlagModel,
	config.FlagBaseURL,
	config.FlagAPIKey,
	config.FlagPolicy,
	config.FlagReward,
	config.FlagTrials,
	config.FlagRollouts,
	config.FlagExpand,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagPromptsDir,
}

func NewRunCmd() *cobra.Command {
	cmder := &runCommander{}

	cmd := &cobra.Command{
		Use:   "run [topic]",
		Short: runShortDesc,
		Long:  runLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if cmder.topic != "" {
					return errors.New("give the topic either as an argument or with --topic")
				}
				cmder.topic = args[0]
			}
			if strings.TrimSpace(cmder.topic) == "" {
				return errors.New("a topic is required")
			}

			var err error
			cmder.cfg, cmder.configDir, err = components.LoadConfig(cmd, runFlagKeys)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cmder.run(ctx)
		},
	}

	f := &cmder.flags
	cmd.Flags().StringVarP(&cmder.topic, "topic", "t", "", "Research topic to search ideas for")
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &f.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &f.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &f.baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIKey, &f.apiKey)
	config.AddStringFlag(cmd, config.Flags, config.FlagPolicy, &f.policy)
	config.AddStringFlag(cmd, config.Flags, config.FlagReward, &f.reward)
	config.AddUintFlag(cmd, config.Flags, config.FlagTrials, &f.trials)
	config.AddUintFlag(cmd, config.Flags, config.FlagRollouts, &f.rollouts)
	config.AddUintFlag(cmd, config.Flags, config.FlagExpand, &f.expand)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &f.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &f.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &f.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &f.vectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &f.vectorTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &f.embedProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &f.embedTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &f.embedModel)
	config.AddStringFlag(cmd, config.Flags, config.FlagPromptsDir, &f.promptsDir)
	cmd.Flags().Uint64Var(&cmder.seed, "seed", 0, "Seed the random sources of the search (0 is random)")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the finished task as JSON")

	return cmd
}

func (c *runCommander) run(ctx context.Context) error {
	if c.logger == nil {
		level := slog.LevelWarn
		if c.debug {
			level = slog.LevelDebug
		}
		c.logger = logger.New(logger.WithLevel(level), logger.WithPretty(true), logger.WithWriter(c.errOut))
	}
	if c.newBuilder == nil {
		c.newBuilder = func(comps *components.Components) search.Builder { return comps.Factory(c.seed) }
	}

	comps, err := components.New(ctx, c.cfg, components.Options{
		ConfigDir: c.configDir,
		Archive:   true,
		Papers:    true,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := comps.Close(closeCtx); err != nil {
			c.logger.Warn("closing components", "error", err)
		}
	}()

	req := search.Request{Topic: c.topic}
	if err := req.Validate(); err != nil {
		return err
	}

	prog := newProgress(c.errOut, int(c.cfg.Search.Trials))
	manager, err := search.NewManager(search.Config{
		Builder:   c.newBuilder(comps),
		Store:     comps.Store,
		Publisher: prog,
		Logger:    c.logger,
	})
	if err != nil {
		prog.stop(err)
		return err
	}

	task, err := c.search(ctx, manager, req, prog)
	if closeErr := manager.Close(); closeErr != nil {
		c.logger.Warn("closing search manager", "error", closeErr)
	}
	if err != nil {
		return err
	}
	return c.render(task)
}

// search drives one task to its end. Canceling ctx stops the search; the
// task still finishes with what it found.
func (c *runCommander) search(ctx context.Context, manager *search.Manager, req search.Request, prog *progress) (*storage.Task, error) {
	id, err := manager.Start(ctx, req)
	if err != nil {
		prog.stop(err)
		return nil, err
	}
	snaps, release, err := manager.Subscribe(id)
	if err != nil {
		prog.stop(err)
		return nil, err
	}
	defer release()

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			_ = manager.Close()
		case <-stopped:
		}
	}()

	for snap := range snaps {
		prog.snapshot(len(snap))
	}

	select {
	case <-prog.done:
	case <-time.After(5 * time.Second):
	}

	task, err := manager.Get(context.Background(), id)
	if err != nil {
		prog.stop(err)
		return nil, err
	}
	var runErr error
	if task.Status == storage.StatusFailed {
		runErr = errors.New(task.Error)
	}
	prog.stop(runErr)
	return task, runErr
}

func (c *runCommander) render(task *storage.Task) error {
	if c.jsonOut {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(task)
	}

	fmt.Fprintf(c.errOut, "\n  %s %s  %s %s  %s %d\n",
		cliui.KeyStyle.Render("stop:"), cliui.ValueStyle.Render(task.StopReason),
		cliui.KeyStyle.Render("status:"), cliui.ValueStyle.Render(string(task.Status)),
		cliui.KeyStyle.Render("ideas:"), len(task.Ideas),
	)

	md := cliui.IdeaMarkdown(task.Topic, task.BestIdea)
	rendered, err := cliui.RenderMarkdown(md)
	if err != nil {
		c.logger.Debug("rendering markdown failed, printing raw", "error", err)
	}
	_, err = fmt.Fprint(c.out, rendered)
	return err
}
