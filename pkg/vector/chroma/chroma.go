// Package chroma provides a Chroma vector database driver.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Goer17/InnoTree/pkg/logger"
	"github.com/Goer17/InnoTree/pkg/vector"
)

// DefaultCollectionName is the collection papers are stored in.
const DefaultCollectionName = "innotree_papers"

const collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"

// Driver implements vector.Driver using Chroma's REST API.
type Driver struct {
	baseURL        string
	collectionName string
	collectionID   string
	httpClient     *http.Client
	logger         *slog.Logger
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName defaults to DefaultCollectionName.
	CollectionName string

	HTTPClient *http.Client

	// MaxRetries bounds connection attempts. Defaults to DefaultMaxRetries.
	MaxRetries int

	// RetryDelay is the first backoff delay; it doubles up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// Connection retry defaults.
const (
	DefaultMaxRetries    = 5
	DefaultRetryDelay    = 500 * time.Millisecond
	DefaultMaxRetryDelay = 5 * time.Second
)

// NewDriver connects to Chroma and gets or creates the collection,
// retrying with exponential backoff while the server is unavailable.
func NewDriver(c Config, log *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}

	d := &Driver{
		baseURL:        c.URL,
		collectionName: c.CollectionName,
		httpClient:     c.HTTPClient,
		logger:         logger.OrNop(log),
	}
	if d.collectionName == "" {
		d.collectionName = DefaultCollectionName
	}
	if d.httpClient == nil {
		d.httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	collectionID, err := d.connect(c)
	if err != nil {
		return nil, err
	}
	d.collectionID = collectionID

	d.logger.Info("connected to chroma",
		"url", c.URL,
		"collection", d.collectionName,
		"collection_id", collectionID,
	)
	return d, nil
}

func (d *Driver) connect(c Config) (string, error) {
	attempts := c.MaxRetries
	if attempts <= 0 {
		attempts = DefaultMaxRetries
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	maxDelay := c.MaxRetryDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxRetryDelay
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		id, err := d.getOrCreateCollection(context.Background())
		if err == nil {
			return id, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		d.logger.Warn("chroma not ready, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		time.Sleep(delay)
		delay = min(delay*2, maxDelay)
	}
	return "", fmt.Errorf("%w: collection %q after %d attempts: %v",
		vector.ErrConnection, d.collectionName, attempts, lastErr)
}

func (d *Driver) getOrCreateCollection(ctx context.Context) (string, error) {
	var collection collectionInfo
	status, err := d.do(ctx, http.MethodGet, collectionsPath+"/"+d.collectionName, nil, &collection)
	if err == nil {
		return collection.ID, nil
	}
	if status != http.StatusNotFound {
		return "", err
	}

	if _, err := d.do(ctx, http.MethodPost, collectionsPath, map[string]string{"name": d.collectionName}, &collection); err != nil {
		return "", fmt.Errorf("creating collection: %w", err)
	}
	return collection.ID, nil
}

// do sends a JSON request and decodes a 2xx response into out. The status
// code is returned even when the call fails.
func (d *Driver) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		jsonBody, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("chroma %s %s: status %d: %s", method, path, resp.StatusCode, string(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (d *Driver) collectionPath(op string) string {
	return collectionsPath + "/" + d.collectionID + "/" + op
}

// Add upserts documents with their embeddings.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	req := addRequest{
		IDs:        make([]string, len(docs)),
		Embeddings: make([][]float32, len(docs)),
		Metadatas:  make([]map[string]any, len(docs)),
		Documents:  make([]string, len(docs)),
	}
	for i, doc := range docs {
		req.IDs[i] = doc.ID
		req.Embeddings[i] = doc.Embedding
		req.Metadatas[i] = doc.Metadata
		req.Documents[i] = doc.Content
	}

	if _, err := d.do(ctx, http.MethodPost, d.collectionPath("upsert"), req, nil); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	d.logger.Debug("added documents to chroma", "count", len(docs))
	return nil
}

// Query finds the topK most similar documents to the given embedding.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	var resp queryResponse
	_, err := d.do(ctx, http.MethodPost, d.collectionPath("query"), queryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Include:         []string{"metadatas", "documents", "distances"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}

	if len(resp.IDs) == 0 {
		return nil, nil
	}
	results := make([]vector.QueryResult, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		results[i].ID = id
		results[i].Metadata = at(resp.Metadatas, i)
		results[i].Content = at(resp.Documents, i)
		if len(resp.Embeddings) > 0 && i < len(resp.Embeddings[0]) {
			results[i].Embedding = resp.Embeddings[0][i]
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			// lower distance = higher similarity
			results[i].Score = 1.0 / (1.0 + resp.Distances[0][i])
		}
	}

	d.logger.Debug("queried chroma", "results", len(results))
	return results, nil
}

// at returns group 0, element i, or the zero value.
func at[T any](groups [][]T, i int) T {
	var zero T
	if len(groups) == 0 || i >= len(groups[0]) {
		return zero
	}
	return groups[0][i]
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var resp getResponse
	_, err := d.do(ctx, http.MethodPost, d.collectionPath("get"), getRequest{
		IDs:     ids,
		Include: []string{"metadatas", "documents", "embeddings"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("getting documents: %w", err)
	}

	docs := make([]vector.Document, len(resp.IDs))
	for i, id := range resp.IDs {
		docs[i].ID = id
		if i < len(resp.Metadatas) {
			docs[i].Metadata = resp.Metadatas[i]
		}
		if i < len(resp.Documents) {
			docs[i].Content = resp.Documents[i]
		}
		if i < len(resp.Embeddings) {
			docs[i].Embedding = resp.Embeddings[i]
		}
	}
	return docs, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := d.do(ctx, http.MethodPost, d.collectionPath("delete"), deleteRequest{IDs: ids}, nil); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}
	d.logger.Debug("deleted documents from chroma", "count", len(ids))
	return nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return nil
}

var _ vector.Driver = (*Driver)(nil)
