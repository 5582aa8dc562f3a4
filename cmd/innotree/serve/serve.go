// Package servecmder provides the serve command that runs the InnoTree API
// server.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Goer17/InnoTree/api"
	"github.com/Goer17/InnoTree/cmd/innotree/components"
	"github.com/Goer17/InnoTree/pkg/config"
	"github.com/Goer17/InnoTree/pkg/logger"
	"github.com/Goer17/InnoTree/pkg/search"
)

type serveCommander struct {
	flags struct {
		listen         string
		provider       string
		model          string
		baseURL        string
		apiKey         string
		policy         string
		reward         string
		storage        string
		sqlitePath     string
		postgresDSN    string
		vectorProvider string
		vectorTarget   string
		embedProvider  string
		embedTarget    string
		embedModel     string
		embedDims      uint
		kafkaBrokers   string
		promptsDir     string
	}

	cfg       *config.Config
	configDir string
	seed      uint64
	noMCP     bool
	debug     bool
	jsonLogs  bool
	logFile   string
	logger    *slog.Logger
}

const serveLongDesc string = `Run the InnoTree API server.

The server registers searches with POST /start and runs each one when a
client opens GET /stream?task_id=<id>. Finished searches are archived in the
configured task store and listed under GET /tasks. When a vector store and
embedder are configured, the paper bank is searchable at GET /papers and
feeds literature into the search as observations.

An MCP endpoint is served at /mcp and Prometheus metrics at /metrics.

Examples:
  innotree serve
  innotree serve --listen :9000 --model gpt-4o
  innotree serve --storage postgres --postgres "postgres://localhost/innotree"
  innotree serve --vector-store-provider qdrant --vector-store-target localhost:6334`

const serveShortDesc string = "Run the InnoTree API server"

var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagProvider,
	config.FlagModel,
	config.FlagBaseURL,
	config.FlagAPIKey,
	config.FlagPolicy,
	config.FlagReward,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagKafkaBrokers,
	config.FlagPromptsDir,
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, cmder.configDir, err = components.LoadConfig(cmd, serveFlagKeys)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &f.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &f.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &f.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &f.baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIKey, &f.apiKey)
	config.AddStringFlag(cmd, config.Flags, config.FlagPolicy, &f.policy)
	config.AddStringFlag(cmd, config.Flags, config.FlagReward, &f.reward)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &f.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &f.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &f.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &f.vectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &f.vectorTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &f.embedProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &f.embedTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &f.embedModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &f.embedDims)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &f.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagPromptsDir, &f.promptsDir)
	cmd.Flags().Uint64Var(&cmder.seed, "seed", 0, "Seed the random sources of every search (0 is random)")
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Serve the MCP endpoint without tools")
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Write logs as JSON")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if c.jsonLogs {
		c.logger = logger.New(logger.WithDebug(c.debug), logger.WithJSON(true))
	} else {
		c.logger = logger.ForTerminal(c.debug)
	}
	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		c.logger = logger.Multi(c.logger, logger.New(
			logger.WithDebug(c.debug),
			logger.WithJSON(true),
			logger.WithSource(c.debug),
			logger.WithWriter(f),
		))
	}

	if c.cfg.EventStream.Brokers != "" && c.cfg.EventStream.Provider == "nop" {
		c.cfg.EventStream.Provider = "kafka"
	}

	comps, err := components.New(ctx, c.cfg, components.Options{
		ConfigDir: c.configDir,
		Archive:   true,
		Papers:    true,
		Events:    true,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := comps.Close(closeCtx); err != nil {
			c.logger.Warn("closing components", "error", err)
		}
	}()

	go func() {
		if err := comps.Prompts.Watch(ctx); err != nil {
			c.logger.Warn("prompt watcher stopped", "error", err)
		}
	}()

	manager, err := search.NewManager(search.Config{
		Builder:   comps.Factory(c.seed),
		Store:     comps.Store,
		Publisher: comps.Publisher,
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating search manager: %w", err)
	}
	defer func() {
		if err := manager.Close(); err != nil {
			c.logger.Warn("closing search manager", "error", err)
		}
	}()

	server, err := api.NewServer(api.Config{
		ListenAddr:   c.cfg.API.Listen,
		VectorDriver: comps.Vector,
		Embedder:     comps.Embedder,
		NoMCP:        c.noMCP,
	}, manager, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	c.logger.Info("starting innotree",
		"api_addr", c.cfg.API.Listen,
		"provider", c.cfg.LLM.Provider,
		"model", c.cfg.LLM.Model,
		"storage", c.cfg.Storage.Driver,
	)

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	if err := server.Shutdown(); err != nil {
		c.logger.Warn("shutting down API server", "error", err)
	}
	return nil
}
