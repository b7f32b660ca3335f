package driven

import (
	"context"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
)

// VectorStore persists embedded chunks in a named, fixed-dimension
// collection and answers similarity queries against it.
type VectorStore interface {
	// EnsureCollection creates the collection if absent. Idempotent: an
	// existing collection is left untouched and never an error.
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert stores records under fresh system-generated ids and returns the
	// number inserted. Empty input is a no-op returning 0.
	Upsert(ctx context.Context, records []domain.VectorRecord) (int, error)

	// Search returns at most topK stored chunks ranked by descending cosine
	// similarity to the query vector.
	Search(ctx context.Context, vector []float32, topK int) ([]domain.RetrievedContext, error)

	// DeleteCollection drops and recreates the collection, leaving the store
	// in the same usable state as a fresh EnsureCollection.
	DeleteCollection(ctx context.Context) error

	// Count returns the number of stored records. A missing or empty
	// collection counts as 0, never an error.
	Count(ctx context.Context) (int, error)

	// HealthCheck verifies the vector store is reachable
	HealthCheck(ctx context.Context) error
}
