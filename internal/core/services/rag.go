package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/nimbus-core/internal/chunker"
	"github.com/custodia-labs/nimbus-core/internal/core/domain"
	"github.com/custodia-labs/nimbus-core/internal/core/ports/driven"
	"github.com/custodia-labs/nimbus-core/internal/core/ports/driving"
	"github.com/custodia-labs/nimbus-core/internal/runtime"
	"github.com/google/uuid"
)

// RelevanceThreshold is the minimum similarity score for retrieved context.
// Matches scoring at or below it are dropped, not surfaced to generation.
const RelevanceThreshold = 0.3

// DefaultTopK is the number of candidates fetched per retrieval
const DefaultTopK = 4

// Ensure ragService implements RAGService
var _ driving.RAGService = (*ragService)(nil)

// ragService implements the RAGService interface: ingestion of documents
// into the vector store and retrieval of query-relevant context.
type ragService struct {
	vectorStore   driven.VectorStore
	documentStore driven.DocumentStore // may be nil when no registry is configured
	services      *runtime.Services    // Dynamic AI services

	chunkSize int
	overlap   int
	topK      int
	logger    *slog.Logger
}

// RAGConfig holds tunables for the RAG pipeline
type RAGConfig struct {
	ChunkSize int
	Overlap   int
	TopK      int
	Logger    *slog.Logger
}

// DefaultRAGConfig returns sensible defaults
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		ChunkSize: chunker.DefaultTargetSize,
		Overlap:   chunker.DefaultOverlap,
		TopK:      DefaultTopK,
	}
}

// NewRAGService creates a new RAGService.
// The embedding service is accessed dynamically via runtime.Services.
// documentStore may be nil; ingestion then skips the registry.
func NewRAGService(
	vectorStore driven.VectorStore,
	documentStore driven.DocumentStore,
	services *runtime.Services,
	cfg RAGConfig,
) driving.RAGService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunker.DefaultTargetSize
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ragService{
		vectorStore:   vectorStore,
		documentStore: documentStore,
		services:      services,
		chunkSize:     cfg.ChunkSize,
		overlap:       cfg.Overlap,
		topK:          cfg.TopK,
		logger:        cfg.Logger,
	}
}

// Ingest chunks content, embeds every chunk and stores the batch under the
// given source. Empty or whitespace-only content returns 0 without touching
// the embedding or store backends.
func (s *ragService) Ingest(ctx context.Context, content, source string) (int, error) {
	chunks := chunker.Chunk(content, s.chunkSize, s.overlap)
	if len(chunks) == 0 {
		return 0, nil
	}

	embeddingService := s.services.EmbeddingService()
	if embeddingService == nil {
		return 0, fmt.Errorf("%w: no embedding backend configured", domain.ErrEmbedding)
	}

	vectors, err := embeddingService.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("%w: got %d vectors for %d chunks", domain.ErrEmbedding, len(vectors), len(chunks))
	}

	records := make([]domain.VectorRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = domain.VectorRecord{
			Vector: vectors[i],
			Payload: domain.Payload{
				Content: chunk,
				Source:  source,
			},
		}
	}

	count, err := s.vectorStore.Upsert(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrVectorStore, err)
	}

	if s.documentStore != nil {
		doc := &domain.KBDocument{
			ID:         uuid.NewString(),
			Source:     source,
			ChunkCount: count,
			Checksum:   checksum(content),
			IngestedAt: time.Now().UTC(),
		}
		if err := s.documentStore.Save(ctx, doc); err != nil {
			// Registry is bookkeeping; the chunks are already stored
			s.logger.Warn("failed to record ingested document", "source", source, "error", err)
		}
	}

	s.logger.Info("ingested document", "source", source, "chunks", count)
	return count, nil
}

// GetContext embeds the query, fetches the top-k candidates and keeps those
// strictly above the relevance threshold, in descending score order.
func (s *ragService) GetContext(ctx context.Context, query string) ([]domain.RetrievedContext, error) {
	embeddingService := s.services.EmbeddingService()
	if embeddingService == nil {
		return nil, fmt.Errorf("%w: no embedding backend configured", domain.ErrEmbedding)
	}

	queryVector, err := embeddingService.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
	}

	results, err := s.vectorStore.Search(ctx, queryVector, s.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVectorStore, err)
	}

	filtered := make([]domain.RetrievedContext, 0, len(results))
	for _, r := range results {
		if r.Score > RelevanceThreshold {
			filtered = append(filtered, r)
		}
	}

	return filtered, nil
}

// Count returns the number of chunks in the knowledge base
func (s *ragService) Count(ctx context.Context) (int, error) {
	count, err := s.vectorStore.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrVectorStore, err)
	}
	return count, nil
}

// Reset drops and recreates the knowledge base collection and clears the
// ingestion registry.
func (s *ragService) Reset(ctx context.Context) error {
	if err := s.vectorStore.DeleteCollection(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVectorStore, err)
	}
	if s.documentStore != nil {
		if err := s.documentStore.DeleteAll(ctx); err != nil {
			s.logger.Warn("failed to clear document registry", "error", err)
		}
	}
	return nil
}

// Documents lists the ingestion registry
func (s *ragService) Documents(ctx context.Context) ([]*domain.KBDocument, error) {
	if s.documentStore == nil {
		return nil, nil
	}
	return s.documentStore.List(ctx)
}

func checksum(content string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(sum[:])
}
