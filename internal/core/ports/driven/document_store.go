package driven

import (
	"context"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
)

// DocumentStore is the ingestion registry. It records which documents have
// been chunked into the vector store; the vector store remains the source of
// truth for the chunks themselves.
type DocumentStore interface {
	// Save records an ingested document. A document re-ingested under the
	// same source replaces the previous registry entry.
	Save(ctx context.Context, doc *domain.KBDocument) error

	// GetBySource returns the registry entry for a source, or
	// domain.ErrNotFound.
	GetBySource(ctx context.Context, source string) (*domain.KBDocument, error)

	// List returns all registry entries ordered by ingestion time.
	List(ctx context.Context) ([]*domain.KBDocument, error)

	// DeleteAll clears the registry, used together with a vector store reset.
	DeleteAll(ctx context.Context) error
}
