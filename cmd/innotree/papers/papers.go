// Package paperscmder provides the papers command for semantic search over
// the paper bank.
package paperscmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	apisearch "github.com/Goer17/InnoTree/api/search"
	"github.com/Goer17/InnoTree/cmd/innotree/apiclient"
	"github.com/Goer17/InnoTree/cmd/innotree/components"
	"github.com/Goer17/InnoTree/pkg/cliui"
	"github.com/Goer17/InnoTree/pkg/config"
	"github.com/Goer17/InnoTree/pkg/logger"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
)

type papersCommander struct {
	query string
	topK  int
	quiet bool
	local bool

	apiTarget string
	configDir string
	cfg       *config.Config
	debug     bool
	out       io.Writer
}

const papersLongDesc string = `Search the paper bank.

Embeds the query and returns the closest papers from the vector store that
feeds literature into searches. By default the query goes to a running
InnoTree API server; --local opens the configured vector store and embedder
directly.

Use --quiet to output only paper ids, one per line.

Examples:
  innotree papers "contrastive learning for molecules"
  innotree papers "graph transformers" --top 10
  innotree papers "diffusion policies" --local --vector-store-provider sqlite`

const papersShortDesc string = "Search the paper bank"

var papersFlagKeys = []string{
	config.FlagAPITarget,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

func NewPapersCmd() *cobra.Command {
	cmder := &papersCommander{}

	cmd := &cobra.Command{
		Use:   "papers <query>",
		Short: papersShortDesc,
		Long:  papersLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, cmder.configDir, err = components.LoadConfig(cmd, papersFlagKeys)
			if err != nil {
				return err
			}
			cmder.apiTarget = cmder.cfg.Client.APITarget
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	var (
		apiTarget, vectorProvider, vectorTarget string
		embedProvider, embedTarget, embedModel  string
		embedDims                               uint
	)
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", apisearch.DefaultTopK, "Number of results to return")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only paper ids, one per line")
	cmd.Flags().BoolVar(&cmder.local, "local", false, "Query the configured vector store directly instead of the API")
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &apiTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &vectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &vectorTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &embedProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &embedTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &embedModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &embedDims)

	return cmd
}

func (c *papersCommander) run(ctx context.Context) error {
	if c.topK <= 0 {
		return errors.New("--top must be a positive integer")
	}

	var (
		output *apisearch.SearchOutput
		err    error
	)
	if c.local {
		output, err = c.searchLocal(ctx)
	} else {
		output, err = c.searchAPI(ctx)
	}
	if err != nil {
		return err
	}

	if output.Count == 0 {
		if !c.quiet {
			fmt.Fprintln(c.out, "No papers found.")
		}
		return nil
	}

	if c.quiet {
		for _, r := range output.Results {
			fmt.Fprintln(c.out, r.ID)
		}
		return nil
	}

	fmt.Fprintf(c.out, "\n%s %s\n\n",
		cliui.HeaderStyle.Render("Papers matching:"),
		idStyle.Render(fmt.Sprintf("%q", output.Query)),
	)
	for i, r := range output.Results {
		c.printResult(i+1, r)
	}
	return nil
}

func (c *papersCommander) searchAPI(ctx context.Context) (*apisearch.SearchOutput, error) {
	client, err := apiclient.New(c.apiTarget)
	if err != nil {
		return nil, err
	}
	return client.Papers(ctx, c.query, c.topK)
}

func (c *papersCommander) searchLocal(ctx context.Context) (*apisearch.SearchOutput, error) {
	log := logger.Nop()
	if c.debug {
		log = logger.ForTerminal(true)
	}

	comps, err := components.New(ctx, c.cfg, components.Options{
		ConfigDir: c.configDir,
		Papers:    true,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = comps.Close(closeCtx)
	}()

	searcher := apisearch.NewSearcher(comps.Embedder, comps.Vector, log)
	if !searcher.Configured() {
		return nil, apisearch.ErrNotConfigured
	}
	return searcher.Search(ctx, c.query, c.topK)
}

func (c *papersCommander) printResult(rank int, r apisearch.SearchResult) {
	fmt.Fprintf(c.out, "  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", r.Score)),
		idStyle.Render(r.ID),
	)

	title := r.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(c.out, "  %s\n", titleStyle.Render(title))
	if r.Authors != "" {
		fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render(r.Authors))
	}

	abstract := strings.Join(strings.Fields(r.Abstract), " ")
	if len(abstract) > 160 {
		abstract = abstract[:157] + "..."
	}
	if abstract != "" {
		fmt.Fprintf(c.out, "  %s\n", previewStyle.Render(abstract))
	}
	fmt.Fprintln(c.out)
}
