package testutils

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/Goer17/InnoTree/pkg/vector"
)

// MockVectorDriver stores documents in memory. Query returns Results when
// set and otherwise the stored documents in insertion order.
type MockVectorDriver struct {
	mu        sync.Mutex
	documents []vector.Document

	Results []vector.QueryResult

	// QueryErr makes Query fail.
	QueryErr error

	// Queries records the topK of each query.
	Queries []int
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range docs {
		i := slices.IndexFunc(m.documents, func(d vector.Document) bool { return d.ID == doc.ID })
		if i >= 0 {
			m.documents[i] = doc
			continue
		}
		m.documents = append(m.documents, doc)
	}
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ []float32, topK int) ([]vector.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, topK)
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}

	results := m.Results
	if results == nil {
		for _, doc := range m.documents {
			results = append(results, vector.QueryResult{Document: doc, Score: 1})
		}
	}
	if len(results) < topK {
		return results, nil
	}
	return results[:topK], nil
}

func (m *MockVectorDriver) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []vector.Document
	for _, doc := range m.documents {
		if slices.Contains(ids, doc.ID) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = slices.DeleteFunc(m.documents, func(d vector.Document) bool {
		return slices.Contains(ids, d.ID)
	})
	return nil
}

// Documents returns a copy of the stored documents.
func (m *MockVectorDriver) Documents() []vector.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.documents)
}

func (m *MockVectorDriver) Close() error {
	return nil
}

// ErrMockQuery is a ready-made QueryErr.
var ErrMockQuery = errors.New("mock vector query failure")
