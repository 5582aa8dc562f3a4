// Package vector stores literature documents with their embeddings and
// retrieves the nearest ones for a query.
package vector

import "context"

// Document is one retrievable piece of literature, typically a paper
// abstract with its bibliographic metadata.
type Document struct {
	ID string

	// Content is the text the embedding was computed from.
	Content string

	// Metadata carries fields such as title, authors and year.
	Metadata map[string]any

	Embedding []float32
}

// QueryResult is a Document with its similarity to the query.
type QueryResult struct {
	Document

	// Score is higher for more similar documents.
	Score float32
}

// Driver handles storage and retrieval of documents by embedding.
type Driver interface {
	// Add stores documents. An existing document with the same ID is
	// replaced.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the given embedding,
	// most similar first.
	Query(ctx context.Context, embedding []float32, topK int) ([]QueryResult, error)

	// Get retrieves documents by their IDs. Unknown IDs are skipped.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	Close() error
}
