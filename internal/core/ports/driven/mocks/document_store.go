package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
)

// MockDocumentStore is an in-memory ingestion registry for testing
type MockDocumentStore struct {
	mu   sync.Mutex
	docs map[string]*domain.KBDocument // keyed by source

	SaveErr error
}

// NewMockDocumentStore creates an empty registry
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{docs: make(map[string]*domain.KBDocument)}
}

func (m *MockDocumentStore) Save(ctx context.Context, doc *domain.KBDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.docs[doc.Source] = doc
	return nil
}

func (m *MockDocumentStore) GetBySource(ctx context.Context, source string) (*domain.KBDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[source]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (m *MockDocumentStore) List(ctx context.Context) ([]*domain.KBDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make([]*domain.KBDocument, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].IngestedAt.Before(docs[j].IngestedAt)
	})
	return docs, nil
}

func (m *MockDocumentStore) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string]*domain.KBDocument)
	return nil
}
