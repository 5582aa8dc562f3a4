// Package components builds the collaborators shared by the innotree
// commands (task archive, paper bank, event publisher, prompts and search
// factory) from a decoded configuration.
package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/Goer17/InnoTree/cmd/innotree/sqlitepath"
	"github.com/Goer17/InnoTree/pkg/config"
	"github.com/Goer17/InnoTree/pkg/credentials"
	"github.com/Goer17/InnoTree/pkg/embeddings"
	embeddingutils "github.com/Goer17/InnoTree/pkg/embeddings/utils"
	"github.com/Goer17/InnoTree/pkg/eventstream"
	"github.com/Goer17/InnoTree/pkg/eventstream/kafka"
	"github.com/Goer17/InnoTree/pkg/eventstream/nop"
	"github.com/Goer17/InnoTree/pkg/feedback"
	"github.com/Goer17/InnoTree/pkg/logger"
	"github.com/Goer17/InnoTree/pkg/mcts"
	"github.com/Goer17/InnoTree/pkg/prompt"
	"github.com/Goer17/InnoTree/pkg/search"
	"github.com/Goer17/InnoTree/pkg/storage"
	"github.com/Goer17/InnoTree/pkg/storage/inmemory"
	"github.com/Goer17/InnoTree/pkg/storage/postgres"
	"github.com/Goer17/InnoTree/pkg/storage/sqlite"
	"github.com/Goer17/InnoTree/pkg/telemetry"
	"github.com/Goer17/InnoTree/pkg/vector"
	vectorutils "github.com/Goer17/InnoTree/pkg/vector/utils"
)

// Disabled turns off an optional component when used as its provider.
const Disabled = "none"

// Components owns everything built for one command invocation.
type Components struct {
	Config *config.Config

	Store     storage.Driver
	Vector    vector.Driver
	Embedder  embeddings.Embedder
	Feedback  mcts.Feedbacker
	Publisher eventstream.Publisher
	Prompts   *prompt.Library
	Tracer    trace.TracerProvider

	configDir string
	logger    *slog.Logger
	closers   []func(context.Context) error
}

// Options selects what New builds. Prompts and tracing are always built.
type Options struct {
	ConfigDir string

	// Archive builds the task store.
	Archive bool

	// Papers builds the vector store, the embedder and the feedback
	// retriever on top of them.
	Papers bool

	// Events builds the event publisher.
	Events bool

	Logger *slog.Logger
}

// New builds the requested components. On error everything built so far
// is closed.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *Components, err error) {
	c := &Components{
		Config:    cfg,
		Feedback:  mcts.NoFeedback{},
		Publisher: nop.NewPublisher(),
		configDir: opts.ConfigDir,
		logger:    logger.OrNop(opts.Logger),
	}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
		}
	}()

	tp, shutdown, err := telemetry.Setup(telemetry.Config{Tracing: cfg.Telemetry.Tracing})
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	c.Tracer = tp
	c.onClose(shutdown)

	c.resolveKeys()

	c.Prompts, err = prompt.Load(cfg.Prompts.Dir, c.logger)
	if err != nil {
		return nil, fmt.Errorf("loading prompts: %w", err)
	}

	if opts.Archive {
		if err := c.buildStore(ctx); err != nil {
			return nil, err
		}
	}
	if opts.Papers {
		if err := c.buildPapers(ctx); err != nil {
			return nil, err
		}
	}
	if opts.Events {
		if err := c.buildPublisher(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// resolveKeys fills empty provider API keys from the environment or from
// credentials stored with "innotree auth". A broken credentials file is
// logged and otherwise ignored.
func (c *Components) resolveKeys() {
	var mgr *credentials.Manager
	resolve := func(provider string, key *string) {
		if *key != "" || credentials.EnvVarForProvider(provider) == "" {
			return
		}
		if mgr == nil {
			var err error
			if mgr, err = credentials.NewManager(c.configDir); err != nil {
				c.logger.Warn("could not open stored credentials", "error", err)
				return
			}
		}
		resolved, err := mgr.Resolve(provider, "")
		if err != nil {
			c.logger.Warn("could not read stored credentials", "provider", provider, "error", err)
			return
		}
		*key = resolved
	}

	resolve(c.Config.LLM.Provider, &c.Config.LLM.APIKey)
	resolve(c.Config.Embedding.Provider, &c.Config.Embedding.APIKey)
}

func (c *Components) onClose(fn func(context.Context) error) {
	c.closers = append(c.closers, fn)
}

func (c *Components) buildStore(ctx context.Context) error {
	sc := c.Config.Storage
	switch strings.ToLower(sc.Driver) {
	case "memory", "inmemory":
		c.Store = inmemory.NewDriver()
		c.logger.Info("using in-memory task archive")

	case "", "sqlite":
		path, err := sqlitepath.ResolveSQLitePath(sc.SQLitePath, c.configDir, sqlitepath.ArchiveFile)
		if err != nil {
			return fmt.Errorf("resolving task archive path: %w", err)
		}
		drv, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to open SQLite task archive: %w", err)
		}
		c.Store = drv
		c.logger.Info("using SQLite task archive", "path", path)

	case "postgres", "postgresql":
		if sc.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres driver")
		}
		drv, err := postgres.NewDriver(ctx, sc.PostgresDSN)
		if err != nil {
			return fmt.Errorf("failed to open PostgreSQL task archive: %w", err)
		}
		c.Store = drv
		c.logger.Info("using PostgreSQL task archive")

	default:
		return fmt.Errorf("unsupported storage driver: %s", sc.Driver)
	}

	store := c.Store
	c.onClose(func(context.Context) error { return store.Close() })
	return nil
}

func (c *Components) buildPapers(ctx context.Context) error {
	vc := c.Config.VectorStore
	ec := c.Config.Embedding
	if vc.Provider == "" || vc.Provider == Disabled || ec.Provider == "" || ec.Provider == Disabled {
		c.logger.Info("literature retrieval disabled")
		return nil
	}

	opts := &vectorutils.NewVectorDriverOpts{
		ProviderType: vc.Provider,
		TargetURL:    vc.Target,
		Collection:   vc.Collection,
		Dimensions:   ec.Dimensions,
		Logger:       c.logger,
	}
	switch vc.Provider {
	case "sqlite", "sqlite-vec":
		path, err := sqlitepath.ResolveSQLitePath(vc.Target, c.configDir, sqlitepath.PapersFile)
		if err != nil {
			return fmt.Errorf("resolving paper bank path: %w", err)
		}
		opts.TargetURL = path
	case "qdrant":
		host, port, err := splitHostPort(vc.Target)
		if err != nil {
			return err
		}
		opts.TargetURL = host
		opts.Port = port
	}

	vd, err := vectorutils.NewVectorDriver(ctx, opts)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	c.Vector = vd
	c.onClose(func(context.Context) error { return vd.Close() })

	emb, err := embeddingutils.NewEmbedder(ctx, &embeddingutils.NewEmbedderOpts{
		ProviderType: ec.Provider,
		TargetURL:    ec.Target,
		Model:        ec.Model,
		APIKey:       ec.APIKey,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	c.Embedder = emb
	c.onClose(func(context.Context) error { return emb.Close() })

	retriever, err := feedback.New(feedback.Config{
		Embedder: emb,
		Store:    vd,
		TopK:     int(vc.TopK),
		Logger:   c.logger,
	})
	if err != nil {
		return err
	}
	c.Feedback = retriever

	c.logger.Info("literature retrieval enabled",
		"vector_store", vc.Provider,
		"embedding", ec.Provider,
		"model", ec.Model,
	)
	return nil
}

// splitHostPort accepts "host" or "host:port".
func splitHostPort(target string) (string, int, error) {
	if !strings.Contains(target, ":") {
		return target, 0, nil
	}
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant target %q: %w", target, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}
	return host, port, nil
}

func (c *Components) buildPublisher() error {
	ec := c.Config.EventStream
	switch strings.ToLower(ec.Provider) {
	case "", "nop", Disabled:
		return nil
	case "kafka":
		pub, err := kafka.NewPublisher(kafka.Config{
			Brokers: splitList(ec.Brokers),
			Topic:   ec.Topic,
		}, c.logger)
		if err != nil {
			return fmt.Errorf("creating kafka publisher: %w", err)
		}
		c.Publisher = pub
		c.onClose(func(context.Context) error { return pub.Close() })
		c.logger.Info("publishing search events to kafka", "topic", ec.Topic)
		return nil
	default:
		return fmt.Errorf("unsupported event stream provider: %s", ec.Provider)
	}
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Factory returns a search factory over the built components.
func (c *Components) Factory(seed uint64) *search.Factory {
	return search.NewFactory(search.FactoryConfig{
		Search:         c.Config.Search,
		LLM:            c.Config.LLM,
		Prompts:        c.Prompts,
		Feedbacker:     c.Feedback,
		Seed:           seed,
		TracerProvider: c.Tracer,
		Logger:         c.logger,
	})
}

// Close releases the components in reverse order of construction.
func (c *Components) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
