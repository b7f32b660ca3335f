package services

import (
	"context"
	"strings"
	"testing"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
	"github.com/custodia-labs/nimbus-core/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/nimbus-core/internal/runtime"
)

// createTestServices creates runtime services for testing
func createTestServices(embeddingService *mocks.MockEmbeddingService) *runtime.Services {
	config := domain.NewRuntimeConfig(domain.AIProviderOllama)
	services := runtime.NewServices(config)
	if embeddingService != nil {
		services.SetEmbeddingService(embeddingService)
	}
	return services
}

func newTestRAG(store *mocks.MockVectorStore, embedding *mocks.MockEmbeddingService) *ragService {
	svc := NewRAGService(store, mocks.NewMockDocumentStore(), createTestServices(embedding), DefaultRAGConfig())
	return svc.(*ragService)
}

func TestRAGService_Ingest_EmptyContent(t *testing.T) {
	store := mocks.NewMockVectorStore()
	embedding := mocks.NewMockEmbeddingService()
	svc := newTestRAG(store, embedding)

	for _, content := range []string{"", "   ", "\n\n\n"} {
		count, err := svc.Ingest(context.Background(), content, "empty.md")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("Ingest(%q) = %d chunks, want 0", content, count)
		}
	}

	// Neither backend may be touched for empty documents
	if embedding.EmbedCalls != 0 {
		t.Errorf("embedding backend called %d times for empty input", embedding.EmbedCalls)
	}
	if store.UpsertCalls != 0 {
		t.Errorf("vector store called %d times for empty input", store.UpsertCalls)
	}
}

func TestRAGService_Ingest_Monotonic(t *testing.T) {
	store := mocks.NewMockVectorStore()
	embedding := mocks.NewMockEmbeddingService()
	svc := newTestRAG(store, embedding)

	baseline, _ := store.Count(context.Background())

	content := "The UV index measures ultraviolet radiation levels at the surface."
	added, err := svc.Ingest(context.Background(), content, "uv.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added != 1 {
		t.Fatalf("expected 1 chunk for a short document, got %d", added)
	}

	count, err := svc.Count(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != baseline+added {
		t.Errorf("count = %d, want baseline %d + added %d", count, baseline, added)
	}
}

func TestRAGService_Ingest_MultiChunkDocument(t *testing.T) {
	store := mocks.NewMockVectorStore()
	embedding := mocks.NewMockEmbeddingService()
	svc := newTestRAG(store, embedding)

	// Three ~400 character paragraphs: the chunker emits three chunks
	sentence := strings.Repeat("a", 77) + "."
	para := strings.Join([]string{sentence, sentence, sentence, sentence, sentence}, " ")
	content := para + "\n\n" + para + "\n\n" + para

	added, err := svc.Ingest(context.Background(), content, "long.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added != 3 {
		t.Errorf("expected 3 chunks, got %d", added)
	}

	// One batched embed call for the whole document
	if embedding.EmbedCalls != 1 {
		t.Errorf("expected 1 batched embed call, got %d", embedding.EmbedCalls)
	}

	docs, err := svc.Documents(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 || docs[0].Source != "long.md" || docs[0].ChunkCount != 3 {
		t.Errorf("document registry entry not recorded: %+v", docs)
	}
}

func TestRAGService_Ingest_EmbeddingFailure(t *testing.T) {
	store := mocks.NewMockVectorStore()
	embedding := mocks.NewMockEmbeddingService()
	embedding.SetFailNext(true)
	svc := newTestRAG(store, embedding)

	_, err := svc.Ingest(context.Background(), "Humidity affects perceived temperature.", "humidity.md")
	if err == nil {
		t.Fatal("expected error when embedding backend fails")
	}
	if store.UpsertCalls != 0 {
		t.Error("vector store must not be called after embedding failure")
	}
}

func TestRAGService_GetContext_ThresholdFilter(t *testing.T) {
	store := mocks.NewMockVectorStore()
	embedding := mocks.NewMockEmbeddingService()
	svc := newTestRAG(store, embedding)

	records := []domain.VectorRecord{
		{Vector: []float32{1, 0}, Payload: domain.Payload{Content: "uv safety", Source: "uv.md"}},
		{Vector: []float32{0, 1}, Payload: domain.Payload{Content: "wind chill", Source: "wind.md"}},
		{Vector: []float32{1, 1}, Payload: domain.Payload{Content: "unrelated", Source: "misc.md"}},
	}
	if _, err := store.Upsert(context.Background(), records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.FixedScores = []float64{0.9, 0.5, 0.2}

	results, err := svc.GetContext(context.Background(), "What is the UV index?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results above threshold, got %d", len(results))
	}
	if results[0].Score != 0.9 || results[1].Score != 0.5 {
		t.Errorf("results not in descending score order: %v", results)
	}
	if results[0].Source != "uv.md" {
		t.Errorf("top result = %s, want uv.md", results[0].Source)
	}
}

func TestRAGService_GetContext_ScoreAtThresholdExcluded(t *testing.T) {
	store := mocks.NewMockVectorStore()
	embedding := mocks.NewMockEmbeddingService()
	svc := newTestRAG(store, embedding)

	_, _ = store.Upsert(context.Background(), []domain.VectorRecord{
		{Vector: []float32{1, 0}, Payload: domain.Payload{Content: "borderline", Source: "b.md"}},
	})
	store.FixedScores = []float64{RelevanceThreshold}

	results, err := svc.GetContext(context.Background(), "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("score equal to the threshold must be excluded, got %d results", len(results))
	}
}

func TestRAGService_RoundTrip(t *testing.T) {
	store := mocks.NewMockVectorStore()
	embedding := mocks.NewMockEmbeddingService()
	svc := newTestRAG(store, embedding)

	content := "Dew point is the temperature at which air becomes saturated."
	if _, err := svc.Ingest(context.Background(), content, "dewpoint.md"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Searching for the exact ingested text must return it as the top hit
	// with the maximum cosine score.
	results, err := svc.GetContext(context.Background(), content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected the ingested chunk to be recalled")
	}
	if results[0].Source != "dewpoint.md" {
		t.Errorf("top result = %s, want dewpoint.md", results[0].Source)
	}
	if results[0].Score < 0.999 {
		t.Errorf("identical vectors should score ~1.0, got %f", results[0].Score)
	}
}

func TestRAGService_GetContext_StoreFailure(t *testing.T) {
	store := mocks.NewMockVectorStore()
	store.SearchErr = domain.ErrServiceUnavailable
	embedding := mocks.NewMockEmbeddingService()
	svc := newTestRAG(store, embedding)

	_, err := svc.GetContext(context.Background(), "query")
	if err == nil {
		t.Fatal("expected error when the vector store is down")
	}
}

func TestRAGService_Reset(t *testing.T) {
	store := mocks.NewMockVectorStore()
	embedding := mocks.NewMockEmbeddingService()
	svc := newTestRAG(store, embedding)

	if _, err := svc.Ingest(context.Background(), "Barometric pressure falls before storms.", "pressure.md"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Reset(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count, _ := svc.Count(context.Background())
	if count != 0 {
		t.Errorf("count after reset = %d, want 0", count)
	}
	docs, _ := svc.Documents(context.Background())
	if len(docs) != 0 {
		t.Errorf("registry after reset has %d entries, want 0", len(docs))
	}
}
