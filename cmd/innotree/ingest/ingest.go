// Package ingestcmder provides the ingest command, which loads papers into
// the vector store searches draw literature from.
package ingestcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Goer17/InnoTree/cmd/innotree/components"
	"github.com/Goer17/InnoTree/pkg/cliui"
	"github.com/Goer17/InnoTree/pkg/config"
	"github.com/Goer17/InnoTree/pkg/embeddings"
	"github.com/Goer17/InnoTree/pkg/feedback"
	"github.com/Goer17/InnoTree/pkg/logger"
	"github.com/Goer17/InnoTree/pkg/vector"
)

type ingestCommander struct {
	file        string
	limit       int
	batchSize   int
	concurrency int

	cfg       *config.Config
	configDir string
	debug     bool

	in     io.Reader
	errOut io.Writer
	logger *slog.Logger
}

const ingestLongDesc string = `Load papers into the paper bank.

Reads an arXiv metadata dump in JSONL form (one paper per line with id,
title, abstract and optionally authors, doi and categories), embeds every
abstract and adds it to the configured vector store. Lines that cannot be
parsed or embedded are skipped.

Use --file - to read from stdin.

Examples:
  innotree ingest --file arxiv-metadata.jsonl
  innotree ingest --file arxiv-metadata.jsonl --limit 10000 --concurrency 8
  head -n 100 arxiv-metadata.jsonl | innotree ingest --file -`

const ingestShortDesc string = "Load papers into the paper bank"

var ingestFlagKeys = []string{
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, cmder.configDir, err = components.LoadConfig(cmd, ingestFlagKeys)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.in = cmd.InOrStdin()
			cmder.errOut = cmd.ErrOrStderr()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cmder.run(ctx)
		},
	}

	var (
		vectorProvider, vectorTarget           string
		embedProvider, embedTarget, embedModel string
		embedDims                              uint
	)
	cmd.Flags().StringVarP(&cmder.file, "file", "f", "", "JSONL file of papers, or - for stdin")
	cmd.Flags().IntVar(&cmder.limit, "limit", 0, "Stop after this many lines (0 reads everything)")
	cmd.Flags().IntVar(&cmder.batchSize, "batch-size", 16, "Papers written to the vector store at once")
	cmd.Flags().IntVar(&cmder.concurrency, "concurrency", 4, "Parallel embedding calls")
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &vectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &vectorTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &embedProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &embedTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &embedModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &embedDims)
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func (c *ingestCommander) run(ctx context.Context) error {
	if c.logger == nil {
		level := slog.LevelWarn
		if c.debug {
			level = slog.LevelDebug
		}
		c.logger = logger.New(logger.WithLevel(level), logger.WithPretty(true), logger.WithWriter(c.errOut))
	}

	r, closeInput, err := c.open()
	if err != nil {
		return err
	}
	defer closeInput()

	comps, err := components.New(ctx, c.cfg, components.Options{
		ConfigDir: c.configDir,
		Papers:    true,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := comps.Close(closeCtx); err != nil {
			c.logger.Warn("closing components", "error", err)
		}
	}()
	if comps.Vector == nil || comps.Embedder == nil {
		return errors.New("ingest needs a vector store and an embedding provider; check vector_store.provider and embedding.provider")
	}

	_, err = c.ingest(ctx, comps.Embedder, comps.Vector, r)
	return err
}

func (c *ingestCommander) open() (io.Reader, func(), error) {
	if c.file == "-" {
		return c.in, func() {}, nil
	}
	f, err := os.Open(c.file)
	if err != nil {
		return nil, nil, fmt.Errorf("opening papers: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func (c *ingestCommander) ingest(ctx context.Context, emb embeddings.Embedder, store vector.Driver, r io.Reader) (feedback.IngestStats, error) {
	ingester, err := feedback.NewIngester(feedback.IngestConfig{
		Embedder:    emb,
		Store:       store,
		BatchSize:   c.batchSize,
		Concurrency: c.concurrency,
		Limit:       c.limit,
		Logger:      c.logger,
	})
	if err != nil {
		return feedback.IngestStats{}, err
	}

	spinner := cliui.NewSpinner(c.errOut, "Ingesting papers")
	stats, err := ingester.Ingest(ctx, r, func(s feedback.IngestStats) {
		spinner.Update(statsMessage(s))
	})
	spinner.Update(statsMessage(stats))
	spinner.Stop(err)
	return stats, err
}

func statsMessage(s feedback.IngestStats) string {
	return fmt.Sprintf("Ingesting papers %s",
		cliui.StepStyle.Render(fmt.Sprintf("(%d read, %d added, %d skipped)", s.Read, s.Added, s.Skipped)),
	)
}
