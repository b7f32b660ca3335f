package driving

import (
	"context"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
)

// RAGService owns the knowledge base: ingestion of documents and
// retrieval of query-relevant context.
type RAGService interface {
	// Ingest chunks content, embeds each chunk and stores the batch under
	// the given source name. Returns the number of chunks added; 0 for
	// empty or whitespace-only content without touching any backend.
	Ingest(ctx context.Context, content, source string) (int, error)

	// GetContext embeds the query, searches the vector store and returns
	// the matches clearing the relevance threshold, in descending score
	// order. An empty result is not an error.
	GetContext(ctx context.Context, query string) ([]domain.RetrievedContext, error)

	// Count returns the number of chunks in the knowledge base.
	Count(ctx context.Context) (int, error)

	// Reset drops and recreates the knowledge base collection.
	Reset(ctx context.Context) error

	// Documents lists the ingestion registry.
	Documents(ctx context.Context) ([]*domain.KBDocument, error)
}
