package mocks

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
)

// MockVectorStore is an in-memory VectorStore for testing. It ranks by true
// cosine similarity so round-trip properties hold: a vector searched for
// itself scores 1.0 and comes back first.
type MockVectorStore struct {
	mu        sync.Mutex
	dimension int
	records   []domain.VectorRecord

	// FixedScores, when non-nil, overrides cosine scoring per record index.
	// Lets tests pin exact scores around the relevance threshold.
	FixedScores []float64

	SearchErr error
	UpsertErr error

	SearchCalls int
	UpsertCalls int
}

// NewMockVectorStore creates an empty in-memory vector store
func NewMockVectorStore() *MockVectorStore {
	return &MockVectorStore{}
}

func (m *MockVectorStore) EnsureCollection(ctx context.Context, dimension int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dimension == 0 {
		m.dimension = dimension
	}
	return nil
}

func (m *MockVectorStore) Upsert(ctx context.Context, records []domain.VectorRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if m.UpsertErr != nil {
		return 0, m.UpsertErr
	}
	m.records = append(m.records, records...)
	return len(records), nil
}

func (m *MockVectorStore) Search(ctx context.Context, vector []float32, topK int) ([]domain.RetrievedContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchCalls++
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}

	results := make([]domain.RetrievedContext, 0, len(m.records))
	for i, rec := range m.records {
		score := cosineSimilarity(vector, rec.Vector)
		if m.FixedScores != nil && i < len(m.FixedScores) {
			score = m.FixedScores[i]
		}
		results = append(results, domain.RetrievedContext{
			Source:  rec.Payload.Source,
			Content: rec.Payload.Content,
			Score:   score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MockVectorStore) DeleteCollection(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	return nil
}

func (m *MockVectorStore) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

func (m *MockVectorStore) HealthCheck(ctx context.Context) error {
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
