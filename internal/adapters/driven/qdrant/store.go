// Package qdrant is a minimal REST client for a Qdrant vector collection.
// It assumes cosine distance and a single fixed-dimension collection.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
	"github.com/custodia-labs/nimbus-core/internal/core/ports/driven"
	"github.com/google/uuid"
)

// Ensure Store implements VectorStore
var _ driven.VectorStore = (*Store)(nil)

// Store implements driven.VectorStore against the Qdrant REST API
type Store struct {
	baseURL    string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

// Config holds Qdrant connection configuration
type Config struct {
	// BaseURL is the Qdrant REST endpoint, e.g. http://localhost:6333
	BaseURL string

	// APIKey is optional; sent as the api-key header when set
	APIKey string

	// Collection is the collection name
	Collection string

	// Timeout bounds every request
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Collection: "weather_kb",
		Timeout:    10 * time.Second,
	}
}

// NewStore creates a new Qdrant store client
func NewStore(cfg Config) *Store {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Store{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

// qdrantPoint is one stored vector with payload
type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload domain.Payload `json:"payload"`
}

// EnsureCollection creates the collection if absent. Idempotent: an existing
// collection is left untouched, and a concurrent "already exists" conflict
// is not an error. An existing collection whose vector size disagrees with
// dimension is a configuration fault and returns ErrDimensionMismatch.
func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrVectorStore, dimension)
	}
	s.dimension = dimension

	status, respBody, err := s.do(ctx, "GET", s.collectionURL(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVectorStore, err)
	}
	if status == http.StatusOK {
		var info struct {
			Result struct {
				Config struct {
					Params struct {
						Vectors struct {
							Size int `json:"size"`
						} `json:"vectors"`
					} `json:"params"`
				} `json:"config"`
			} `json:"result"`
		}
		if err := json.Unmarshal(respBody, &info); err != nil {
			return fmt.Errorf("%w: malformed collection info: %v", domain.ErrVectorStore, err)
		}
		if size := info.Result.Config.Params.Vectors.Size; size != 0 && size != dimension {
			return fmt.Errorf("%w: collection %s stores %d-dimensional vectors, embedding model produces %d",
				domain.ErrDimensionMismatch, s.collection, size, dimension)
		}
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	status, _, err = s.do(ctx, "PUT", s.collectionURL(), body)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVectorStore, err)
	}
	if status >= 300 && status != http.StatusConflict {
		return fmt.Errorf("%w: create collection returned status %d", domain.ErrVectorStore, status)
	}
	return nil
}

// Upsert stores records under fresh uuid ids and returns the number inserted
func (s *Store) Upsert(ctx context.Context, records []domain.VectorRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	points := make([]qdrantPoint, len(records))
	for i, rec := range records {
		points[i] = qdrantPoint{
			ID:      uuid.NewString(),
			Vector:  rec.Vector,
			Payload: rec.Payload,
		}
	}

	url := fmt.Sprintf("%s/points?wait=true", s.collectionURL())
	status, _, err := s.do(ctx, "PUT", url, map[string]any{"points": points})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrVectorStore, err)
	}
	if status >= 300 {
		return 0, fmt.Errorf("%w: upsert returned status %d", domain.ErrVectorStore, status)
	}
	return len(points), nil
}

// Search returns at most topK stored chunks ranked by descending cosine
// similarity to the query vector.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]domain.RetrievedContext, error) {
	if topK <= 0 {
		topK = 4
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}

	url := fmt.Sprintf("%s/points/search", s.collectionURL())
	status, respBody, err := s.do(ctx, "POST", url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVectorStore, err)
	}
	if status >= 300 {
		return nil, fmt.Errorf("%w: search returned status %d", domain.ErrVectorStore, status)
	}

	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload domain.Payload `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed search response: %v", domain.ErrVectorStore, err)
	}

	results := make([]domain.RetrievedContext, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.RetrievedContext{
			Source:  r.Payload.Source,
			Content: r.Payload.Content,
			Score:   r.Score,
		})
	}
	return results, nil
}

// DeleteCollection drops the collection and recreates it empty, leaving the
// store in the same usable state as a fresh EnsureCollection.
func (s *Store) DeleteCollection(ctx context.Context) error {
	status, _, err := s.do(ctx, "DELETE", s.collectionURL(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVectorStore, err)
	}
	if status >= 300 && status != http.StatusNotFound {
		return fmt.Errorf("%w: delete collection returned status %d", domain.ErrVectorStore, status)
	}
	return s.EnsureCollection(ctx, s.dimension)
}

// Count returns the number of stored points. A missing collection counts
// as 0, not an error.
func (s *Store) Count(ctx context.Context) (int, error) {
	url := fmt.Sprintf("%s/points/count", s.collectionURL())
	status, respBody, err := s.do(ctx, "POST", url, map[string]any{"exact": true})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrVectorStore, err)
	}
	if status == http.StatusNotFound {
		return 0, nil
	}
	if status >= 300 {
		return 0, fmt.Errorf("%w: count returned status %d", domain.ErrVectorStore, status)
	}

	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, fmt.Errorf("%w: malformed count response: %v", domain.ErrVectorStore, err)
	}
	return resp.Result.Count, nil
}

// HealthCheck verifies the Qdrant server is reachable
func (s *Store) HealthCheck(ctx context.Context) error {
	status, _, err := s.do(ctx, "GET", s.baseURL+"/collections", nil)
	if err != nil {
		return fmt.Errorf("qdrant unreachable: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("qdrant returned status %d", status)
	}
	return nil
}

func (s *Store) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.baseURL, s.collection)
}

func (s *Store) do(ctx context.Context, method, url string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, respBody, nil
}
