package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
	"github.com/custodia-labs/nimbus-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements driven.DocumentStore using PostgreSQL
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Save records an ingested document. Re-ingesting a source replaces its
// registry entry.
func (s *DocumentStore) Save(ctx context.Context, doc *domain.KBDocument) error {
	query := `
		INSERT INTO kb_documents (id, source, chunk_count, checksum, ingested_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source) DO UPDATE SET
			chunk_count = EXCLUDED.chunk_count,
			checksum = EXCLUDED.checksum,
			ingested_at = EXCLUDED.ingested_at
	`

	_, err := s.db.ExecContext(ctx, query,
		doc.ID,
		doc.Source,
		doc.ChunkCount,
		doc.Checksum,
		doc.IngestedAt,
	)
	return err
}

// GetBySource returns the registry entry for a source
func (s *DocumentStore) GetBySource(ctx context.Context, source string) (*domain.KBDocument, error) {
	query := `
		SELECT id, source, chunk_count, checksum, ingested_at
		FROM kb_documents
		WHERE source = $1
	`

	var doc domain.KBDocument
	err := s.db.QueryRowContext(ctx, query, source).Scan(
		&doc.ID,
		&doc.Source,
		&doc.ChunkCount,
		&doc.Checksum,
		&doc.IngestedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns all registry entries ordered by ingestion time
func (s *DocumentStore) List(ctx context.Context) ([]*domain.KBDocument, error) {
	query := `
		SELECT id, source, chunk_count, checksum, ingested_at
		FROM kb_documents
		ORDER BY ingested_at
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.KBDocument
	for rows.Next() {
		var doc domain.KBDocument
		if err := rows.Scan(
			&doc.ID,
			&doc.Source,
			&doc.ChunkCount,
			&doc.Checksum,
			&doc.IngestedAt,
		); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// DeleteAll clears the registry, used together with a vector store reset
func (s *DocumentStore) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kb_documents`)
	return err
}
