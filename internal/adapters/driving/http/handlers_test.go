package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
	"github.com/custodia-labs/nimbus-core/internal/runtime"
)

// Mock services for testing

type mockChatService struct {
	chatStreamFn func(ctx context.Context, req domain.ChatRequest) (<-chan domain.ChatEvent, error)
}

func (m *mockChatService) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.ChatEvent, error) {
	if m.chatStreamFn != nil {
		return m.chatStreamFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

type mockRAGService struct {
	ingestFn     func(ctx context.Context, content, source string) (int, error)
	getContextFn func(ctx context.Context, query string) ([]domain.RetrievedContext, error)
	countFn      func(ctx context.Context) (int, error)
	resetFn      func(ctx context.Context) error
	documentsFn  func(ctx context.Context) ([]*domain.KBDocument, error)
}

func (m *mockRAGService) Ingest(ctx context.Context, content, source string) (int, error) {
	if m.ingestFn != nil {
		return m.ingestFn(ctx, content, source)
	}
	return 0, errors.New("not implemented")
}

func (m *mockRAGService) GetContext(ctx context.Context, query string) ([]domain.RetrievedContext, error) {
	if m.getContextFn != nil {
		return m.getContextFn(ctx, query)
	}
	return nil, nil
}

func (m *mockRAGService) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

func (m *mockRAGService) Reset(ctx context.Context) error {
	if m.resetFn != nil {
		return m.resetFn(ctx)
	}
	return nil
}

func (m *mockRAGService) Documents(ctx context.Context) ([]*domain.KBDocument, error) {
	if m.documentsFn != nil {
		return m.documentsFn(ctx)
	}
	return nil, nil
}

type mockWeatherService struct {
	getWeatherFn func(ctx context.Context, lat, lon float64, units string) (*domain.WeatherReport, error)
	geocodeFn    func(ctx context.Context, query string, limit int) ([]domain.GeoLocation, error)
	getAQIFn     func(ctx context.Context, lat, lon float64) *domain.AQIReport
}

func (m *mockWeatherService) GetWeather(ctx context.Context, lat, lon float64, units string) (*domain.WeatherReport, error) {
	if m.getWeatherFn != nil {
		return m.getWeatherFn(ctx, lat, lon, units)
	}
	return &domain.WeatherReport{Location: "Testville", Lat: lat, Lon: lon}, nil
}

func (m *mockWeatherService) Geocode(ctx context.Context, query string, limit int) ([]domain.GeoLocation, error) {
	if m.geocodeFn != nil {
		return m.geocodeFn(ctx, query, limit)
	}
	return nil, nil
}

func (m *mockWeatherService) GetAQI(ctx context.Context, lat, lon float64) *domain.AQIReport {
	if m.getAQIFn != nil {
		return m.getAQIFn(ctx, lat, lon)
	}
	return &domain.AQIReport{Category: "Unknown", Available: false}
}

type stubHealthChecker struct {
	err error
}

func (s stubHealthChecker) HealthCheck(ctx context.Context) error {
	return s.err
}

func newTestServer(chat *mockChatService, rag *mockRAGService, weather *mockWeatherService) *Server {
	services := runtime.NewServices(domain.NewRuntimeConfig(domain.AIProviderOllama))
	return NewServer(DefaultConfig(), chat, rag, weather, services, stubHealthChecker{}, nil, nil)
}

// eventStream builds a closed channel carrying the given events
func eventStream(events ...domain.ChatEvent) <-chan domain.ChatEvent {
	ch := make(chan domain.ChatEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

// parseSSE decodes every data: frame in an SSE body
func parseSSE(t *testing.T, body string) []domain.ChatEvent {
	t.Helper()
	var out []domain.ChatEvent
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev domain.ChatEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("invalid SSE frame %q: %v", line, err)
		}
		out = append(out, ev)
	}
	return out
}

func postChat(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleChat_StreamsEvents(t *testing.T) {
	chat := &mockChatService{
		chatStreamFn: func(ctx context.Context, req domain.ChatRequest) (<-chan domain.ChatEvent, error) {
			if req.Message != "will it rain?" {
				t.Errorf("message = %q", req.Message)
			}
			return eventStream(
				domain.TokenEvent("It "),
				domain.TokenEvent("might."),
				domain.CitationsEvent([]domain.Citation{{Source: "rain.md", Content: "rain facts", Score: 0.71}}),
				domain.DoneEvent(),
			), nil
		},
	}
	srv := newTestServer(chat, &mockRAGService{}, &mockWeatherService{})

	rec := postChat(t, srv, `{"message":"will it rain?"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q", cc)
	}

	events := parseSSE(t, rec.Body.String())
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %+v", len(events), events)
	}
	if events[0].Type != domain.ChatEventToken || events[0].Content != "It " {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].Content != "might." {
		t.Errorf("event 1 = %+v", events[1])
	}
	if events[2].Type != domain.ChatEventCitations || len(events[2].Citations) != 1 {
		t.Errorf("event 2 = %+v", events[2])
	}
	if events[2].Citations[0].Source != "rain.md" {
		t.Errorf("citation = %+v", events[2].Citations[0])
	}
	if events[3].Type != domain.ChatEventDone {
		t.Errorf("event 3 = %+v", events[3])
	}
}

func TestHandleChat_MidStreamError(t *testing.T) {
	chat := &mockChatService{
		chatStreamFn: func(ctx context.Context, req domain.ChatRequest) (<-chan domain.ChatEvent, error) {
			return eventStream(
				domain.TokenEvent("partial"),
				domain.ErrorEvent("generation failed: model crashed"),
			), nil
		},
	}
	srv := newTestServer(chat, &mockRAGService{}, &mockWeatherService{})

	rec := postChat(t, srv, `{"message":"hi"}`)

	events := parseSSE(t, rec.Body.String())
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Type != domain.ChatEventError {
		t.Errorf("terminal event = %+v", events[1])
	}
	for _, ev := range events {
		if ev.Type == domain.ChatEventDone {
			t.Error("done must not follow an error event")
		}
	}
}

func TestHandleChat_BadRequests(t *testing.T) {
	srv := newTestServer(&mockChatService{}, &mockRAGService{}, &mockWeatherService{})

	if rec := postChat(t, srv, `{not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d", rec.Code)
	}
	if rec := postChat(t, srv, `{"message":""}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty message: status = %d", rec.Code)
	}
}

func TestHandleChat_InvalidInputFromService(t *testing.T) {
	// A whitespace-only message passes the handler's emptiness check and is
	// rejected by the service instead.
	chat := &mockChatService{
		chatStreamFn: func(ctx context.Context, req domain.ChatRequest) (<-chan domain.ChatEvent, error) {
			return nil, fmt.Errorf("%w: message must not be empty", domain.ErrInvalidInput)
		},
	}
	srv := newTestServer(chat, &mockRAGService{}, &mockWeatherService{})

	rec := postChat(t, srv, `{"message":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleChat_NoBackend(t *testing.T) {
	chat := &mockChatService{
		chatStreamFn: func(ctx context.Context, req domain.ChatRequest) (<-chan domain.ChatEvent, error) {
			return nil, fmt.Errorf("%w: no generation backend configured", domain.ErrServiceUnavailable)
		},
	}
	srv := newTestServer(chat, &mockRAGService{}, &mockWeatherService{})

	rec := postChat(t, srv, `{"message":"hi"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleIngest(t *testing.T) {
	rag := &mockRAGService{
		ingestFn: func(ctx context.Context, content, source string) (int, error) {
			if source != "faq.md" {
				t.Errorf("source = %q", source)
			}
			return 3, nil
		},
	}
	srv := newTestServer(&mockChatService{}, rag, &mockWeatherService{})

	body := `{"content":"some markdown","source":"faq.md"}`
	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp IngestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Chunks != 3 || resp.Source != "faq.md" {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandleIngest_MissingSource(t *testing.T) {
	srv := newTestServer(&mockChatService{}, &mockRAGService{}, &mockWeatherService{})

	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewBufferString(`{"content":"x"}`))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleIngest_EmbeddingDown(t *testing.T) {
	rag := &mockRAGService{
		ingestFn: func(ctx context.Context, content, source string) (int, error) {
			return 0, fmt.Errorf("%w: connection refused", domain.ErrEmbedding)
		},
	}
	srv := newTestServer(&mockChatService{}, rag, &mockWeatherService{})

	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewBufferString(`{"content":"x","source":"a.md"}`))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleWeather(t *testing.T) {
	weather := &mockWeatherService{
		getWeatherFn: func(ctx context.Context, lat, lon float64, units string) (*domain.WeatherReport, error) {
			if lat != 59.91 || lon != 10.75 {
				t.Errorf("coords = %v, %v", lat, lon)
			}
			if units != "imperial" {
				t.Errorf("units = %q", units)
			}
			return &domain.WeatherReport{Location: "Oslo", Lat: lat, Lon: lon}, nil
		},
	}
	srv := newTestServer(&mockChatService{}, &mockRAGService{}, weather)

	req := httptest.NewRequest(http.MethodGet, "/weather?lat=59.91&lon=10.75&units=imperial", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var report domain.WeatherReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Location != "Oslo" {
		t.Errorf("location = %q", report.Location)
	}
}

func TestHandleWeather_DefaultCoordinates(t *testing.T) {
	var gotLat, gotLon float64
	weather := &mockWeatherService{
		getWeatherFn: func(ctx context.Context, lat, lon float64, units string) (*domain.WeatherReport, error) {
			gotLat, gotLon = lat, lon
			return &domain.WeatherReport{}, nil
		},
	}
	srv := newTestServer(&mockChatService{}, &mockRAGService{}, weather)

	req := httptest.NewRequest(http.MethodGet, "/weather", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotLat != 40.7128 || gotLon != -74.0060 {
		t.Errorf("default coords = %v, %v", gotLat, gotLon)
	}
}

func TestHandleWeather_InvalidCoordinates(t *testing.T) {
	srv := newTestServer(&mockChatService{}, &mockRAGService{}, &mockWeatherService{})

	for _, target := range []string{"/weather?lat=abc", "/weather?lat=91", "/weather?lon=-200"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", target, rec.Code)
		}
	}
}

func TestHandleGeocode(t *testing.T) {
	weather := &mockWeatherService{
		geocodeFn: func(ctx context.Context, query string, limit int) ([]domain.GeoLocation, error) {
			return []domain.GeoLocation{{Name: "Oslo", Lat: 59.91, Lon: 10.75, Country: "Norway"}}, nil
		},
	}
	srv := newTestServer(&mockChatService{}, &mockRAGService{}, weather)

	req := httptest.NewRequest(http.MethodGet, "/geocode?q=oslo", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var results []domain.GeoLocation
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Name != "Oslo" {
		t.Errorf("results = %+v", results)
	}
}

func TestHandleGeocode_MissingQuery(t *testing.T) {
	srv := newTestServer(&mockChatService{}, &mockRAGService{}, &mockWeatherService{})

	req := httptest.NewRequest(http.MethodGet, "/geocode", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleGeocode_NoResultsIsEmptyArray(t *testing.T) {
	srv := newTestServer(&mockChatService{}, &mockRAGService{}, &mockWeatherService{})

	req := httptest.NewRequest(http.MethodGet, "/geocode?q=nowhere", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q", got)
	}
}

func TestHandleAQI_NeverErrors(t *testing.T) {
	srv := newTestServer(&mockChatService{}, &mockRAGService{}, &mockWeatherService{})

	req := httptest.NewRequest(http.MethodGet, "/aqi?lat=10&lon=10", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var report domain.AQIReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Available {
		t.Errorf("report = %+v", report)
	}
}

func TestHandleKBStats(t *testing.T) {
	rag := &mockRAGService{
		countFn: func(ctx context.Context) (int, error) { return 42, nil },
		documentsFn: func(ctx context.Context) ([]*domain.KBDocument, error) {
			return []*domain.KBDocument{{Source: "a.md"}, {Source: "b.md"}}, nil
		},
	}
	srv := newTestServer(&mockChatService{}, rag, &mockWeatherService{})

	req := httptest.NewRequest(http.MethodGet, "/kb/stats", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats KBStatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Chunks != 42 || stats.Documents != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestHandleKBDocuments_EmptyRegistry(t *testing.T) {
	srv := newTestServer(&mockChatService{}, &mockRAGService{}, &mockWeatherService{})

	req := httptest.NewRequest(http.MethodGet, "/kb/documents", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q", got)
	}
}

func TestHandleHealth_ReportsNotConfiguredBackends(t *testing.T) {
	srv := newTestServer(&mockChatService{}, &mockRAGService{}, &mockWeatherService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	// No AI services registered, so overall status degrades even though
	// the vector store is healthy.
	if resp.Status != "degraded" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.Components["vector_store"] != "healthy" {
		t.Errorf("vector_store = %q", resp.Components["vector_store"])
	}
	if resp.Components["embedding"] != "not configured" {
		t.Errorf("embedding = %q", resp.Components["embedding"])
	}
}

func TestHandleReady_VectorStoreDown(t *testing.T) {
	services := runtime.NewServices(domain.NewRuntimeConfig(domain.AIProviderOllama))
	srv := NewServer(DefaultConfig(), &mockChatService{}, &mockRAGService{}, &mockWeatherService{},
		services, stubHealthChecker{err: errors.New("connection refused")}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleVersion(t *testing.T) {
	srv := newTestServer(&mockChatService{}, &mockRAGService{}, &mockWeatherService{})

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "dev") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
