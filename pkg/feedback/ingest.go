package feedback

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Goer17/InnoTree/pkg/embeddings"
	"github.com/Goer17/InnoTree/pkg/logger"
	"github.com/Goer17/InnoTree/pkg/vector"
)

// Paper is one line of an arXiv metadata JSONL dump.
type Paper struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Abstract   string `json:"abstract"`
	DOI        string `json:"doi,omitempty"`
	Authors    string `json:"authors,omitempty"`
	Categories string `json:"categories,omitempty"`
}

// Document converts the paper into a vector document without embedding.
func (p Paper) Document() vector.Document {
	meta := map[string]any{"title": p.Title}
	if p.DOI != "" {
		meta["doi"] = p.DOI
	}
	if p.Authors != "" {
		meta["authors"] = p.Authors
	}
	if p.Categories != "" {
		meta["categories"] = p.Categories
	}
	return vector.Document{ID: p.ID, Content: p.Abstract, Metadata: meta}
}

// IngestConfig configures an Ingester.
type IngestConfig struct {
	Embedder embeddings.Embedder
	Store    vector.Driver

	// BatchSize is the number of papers written per Add. Defaults to 16.
	BatchSize int

	// Concurrency caps parallel embedding calls. Defaults to 4.
	Concurrency int

	// Limit stops after this many lines. Zero reads everything.
	Limit int

	Logger *slog.Logger
}

// IngestStats summarises an ingest run.
type IngestStats struct {
	Read    int
	Added   int
	Skipped int
}

// Ingester loads papers into the literature vector store.
type Ingester struct {
	cfg    IngestConfig
	logger *slog.Logger
}

// NewIngester creates an Ingester.
func NewIngester(cfg IngestConfig) (*Ingester, error) {
	if cfg.Embedder == nil || cfg.Store == nil {
		return nil, fmt.Errorf("ingester needs an embedder and a vector store")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Ingester{cfg: cfg, logger: logger.OrNop(cfg.Logger)}, nil
}

// Ingest reads JSONL papers from r. Malformed lines and papers that fail to
// embed are skipped and logged; a failing store write aborts the run.
func (in *Ingester) Ingest(ctx context.Context, r io.Reader, progress func(IngestStats)) (IngestStats, error) {
	var stats IngestStats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	batch := make([]Paper, 0, in.cfg.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		docs := in.embed(ctx, batch)
		stats.Skipped += len(batch) - len(docs)
		if len(docs) > 0 {
			if err := in.cfg.Store.Add(ctx, docs); err != nil {
				return fmt.Errorf("adding papers: %w", err)
			}
		}
		stats.Added += len(docs)
		batch = batch[:0]
		if progress != nil {
			progress(stats)
		}
		return nil
	}

	for scanner.Scan() {
		if in.cfg.Limit > 0 && stats.Read >= in.cfg.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Read++

		var p Paper
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil || p.ID == "" || p.Abstract == "" {
			in.logger.Warn("skipping malformed paper", "line", stats.Read, "error", err)
			stats.Skipped++
			continue
		}
		batch = append(batch, p)
		if len(batch) == in.cfg.BatchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("reading papers: %w", err)
	}
	return stats, flush()
}

// embed returns documents for the papers that embedded successfully, in
// input order.
func (in *Ingester) embed(ctx context.Context, papers []Paper) []vector.Document {
	docs := make([]vector.Document, len(papers))
	ok := make([]bool, len(papers))

	var g errgroup.Group
	g.SetLimit(in.cfg.Concurrency)
	for i, p := range papers {
		g.Go(func() error {
			emb, err := in.cfg.Embedder.Embed(ctx, p.Abstract)
			if err != nil {
				in.logger.Warn("skipping paper", "id", p.ID, "error", err)
				return nil
			}
			docs[i] = p.Document()
			docs[i].Embedding = emb
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out := docs[:0]
	for i, d := range docs {
		if ok[i] {
			out = append(out, d)
		}
	}
	return out
}
