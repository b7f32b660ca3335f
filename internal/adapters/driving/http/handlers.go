package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/custodia-labs/nimbus-core/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// HealthResponse reports per-backend availability
// @Description Health status of the API and its backends
type HealthResponse struct {
	Status     string            `json:"status" example:"healthy"`
	Components map[string]string `json:"components"`
}

// IngestRequest is the body of POST /ingest
// @Description Document ingestion request
type IngestRequest struct {
	Content string `json:"content"`
	Source  string `json:"source" example:"glossary.md"`
}

// IngestResponse reports the outcome of an ingestion
// @Description Document ingestion result
type IngestResponse struct {
	Source string `json:"source" example:"glossary.md"`
	Chunks int    `json:"chunks" example:"7"`
}

// KBStatsResponse reports knowledge base statistics
// @Description Knowledge base statistics
type KBStatsResponse struct {
	Chunks    int `json:"chunks" example:"42"`
	Documents int `json:"documents" example:"6"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API and each configured backend
// @Tags         Health
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{}
	healthy := true

	if embedding := s.runtimeServices.EmbeddingService(); embedding != nil {
		if err := embedding.HealthCheck(r.Context()); err != nil {
			components["embedding"] = "unavailable"
			healthy = false
		} else {
			components["embedding"] = "healthy"
		}
	} else {
		components["embedding"] = "not configured"
		healthy = false
	}

	if llm := s.runtimeServices.LLMService(); llm != nil {
		if err := llm.Ping(r.Context()); err != nil {
			components["llm"] = "unavailable"
			healthy = false
		} else {
			components["llm"] = "healthy"
		}
	} else {
		components["llm"] = "not configured"
		healthy = false
	}

	if err := s.vectorStore.HealthCheck(r.Context()); err != nil {
		components["vector_store"] = "unavailable"
		healthy = false
	} else {
		components["vector_store"] = "healthy"
	}

	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			components["postgres"] = "unavailable"
			healthy = false
		} else {
			components["postgres"] = "healthy"
		}
	}

	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()); err != nil {
			components["redis"] = "unavailable"
			healthy = false
		} else {
			components["redis"] = "healthy"
		}
	}

	status := "healthy"
	if !healthy {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, HealthResponse{Status: status, Components: components})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Returns ready once the vector store is reachable
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "Vector store unreachable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.vectorStore.HealthCheck(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "vector store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Weather endpoints

// handleWeather godoc
// @Summary      Current weather and forecast
// @Description  Returns current conditions plus hourly and daily forecasts for the coordinates
// @Tags         Weather
// @Produce      json
// @Param        lat    query     number  false  "Latitude (defaults to the configured location)"
// @Param        lon    query     number  false  "Longitude"
// @Param        units  query     string  false  "metric or imperial"  default(metric)
// @Success      200    {object}  domain.WeatherReport
// @Failure      400    {object}  ErrorResponse  "Invalid coordinates"
// @Failure      502    {object}  ErrorResponse  "Upstream weather service failed"
// @Router       /weather [get]
func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := s.parseCoordinates(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	units := r.URL.Query().Get("units")

	report, err := s.weatherService.GetWeather(r.Context(), lat, lon, units)
	if err != nil {
		writeError(w, http.StatusBadGateway, "weather service unavailable")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// handleGeocode godoc
// @Summary      Geocode a place name
// @Description  Resolves a city name to candidate coordinates
// @Tags         Weather
// @Produce      json
// @Param        q      query     string  true   "Place name"
// @Param        limit  query     int     false  "Maximum results"  default(5)
// @Success      200    {array}   domain.GeoLocation
// @Failure      400    {object}  ErrorResponse  "Missing query"
// @Router       /geocode [get]
func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	results, err := s.weatherService.Geocode(r.Context(), query, limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, "geocoding failed")
		return
	}
	if results == nil {
		results = []domain.GeoLocation{}
	}

	writeJSON(w, http.StatusOK, results)
}

// handleAQI godoc
// @Summary      Air quality index
// @Description  Returns the AQI near the coordinates. Upstream failures yield an unavailable report, never an error status.
// @Tags         Weather
// @Produce      json
// @Param        lat  query     number  false  "Latitude (defaults to the configured location)"
// @Param        lon  query     number  false  "Longitude"
// @Success      200  {object}  domain.AQIReport
// @Failure      400  {object}  ErrorResponse  "Invalid coordinates"
// @Router       /aqi [get]
func (s *Server) handleAQI(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := s.parseCoordinates(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.weatherService.GetAQI(r.Context(), lat, lon))
}

// Chat endpoint

// handleChat godoc
// @Summary      Conversational weather assistant
// @Description  Streams the assistant's answer over Server-Sent Events. Each event is a JSON object with a type of token, citations, done or error.
// @Tags         Chat
// @Accept       json
// @Produce      text/event-stream
// @Param        request  body  domain.ChatRequest  true  "User message with optional history and coordinates"
// @Success      200  {string}  string  "SSE stream"
// @Failure      400  {object}  ErrorResponse  "Invalid request body"
// @Failure      503  {object}  ErrorResponse  "No generation backend configured"
// @Router       /chat [post]
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	events, err := s.chatService.ChatStream(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "message is required")
		case errors.Is(err, domain.ErrServiceUnavailable):
			writeError(w, http.StatusServiceUnavailable, "no generation backend configured")
		default:
			writeError(w, http.StatusInternalServerError, "failed to start chat")
		}
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			// Client went away; the producer sees the context cancel.
			return
		}
		flusher.Flush()
	}
}

// Knowledge base endpoints

// handleIngest godoc
// @Summary      Ingest a document
// @Description  Chunks, embeds and stores a document in the knowledge base under the given source name
// @Tags         KnowledgeBase
// @Accept       json
// @Produce      json
// @Param        request  body      IngestRequest  true  "Document content and source name"
// @Success      200      {object}  IngestResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      503      {object}  ErrorResponse  "Embedding backend unavailable"
// @Router       /ingest [post]
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "source is required")
		return
	}

	chunks, err := s.ragService.Ingest(r.Context(), req.Content, req.Source)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrServiceUnavailable), errors.Is(err, domain.ErrEmbedding):
			writeError(w, http.StatusServiceUnavailable, "embedding backend unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "ingestion failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, IngestResponse{Source: req.Source, Chunks: chunks})
}

// handleKBStats godoc
// @Summary      Knowledge base statistics
// @Description  Returns chunk and document counts
// @Tags         KnowledgeBase
// @Produce      json
// @Success      200  {object}  KBStatsResponse
// @Failure      502  {object}  ErrorResponse  "Vector store unavailable"
// @Router       /kb/stats [get]
func (s *Server) handleKBStats(w http.ResponseWriter, r *http.Request) {
	chunks, err := s.ragService.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "vector store unavailable")
		return
	}

	docs, err := s.ragService.Documents(r.Context())
	if err != nil {
		// The registry is optional; stats still report chunk counts.
		docs = nil
	}

	writeJSON(w, http.StatusOK, KBStatsResponse{Chunks: chunks, Documents: len(docs)})
}

// handleKBDocuments godoc
// @Summary      List ingested documents
// @Description  Returns the ingestion registry ordered by ingestion time
// @Tags         KnowledgeBase
// @Produce      json
// @Success      200  {array}   domain.KBDocument
// @Failure      502  {object}  ErrorResponse  "Registry unavailable"
// @Router       /kb/documents [get]
func (s *Server) handleKBDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.ragService.Documents(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "document registry unavailable")
		return
	}
	if docs == nil {
		docs = []*domain.KBDocument{}
	}

	writeJSON(w, http.StatusOK, docs)
}

// Helper functions

func (s *Server) parseCoordinates(r *http.Request) (float64, float64, error) {
	lat, lon := s.defaultLat, s.defaultLon

	if v := r.URL.Query().Get("lat"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < -90 || f > 90 {
			return 0, 0, fmt.Errorf("invalid lat")
		}
		lat = f
	}
	if v := r.URL.Query().Get("lon"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < -180 || f > 180 {
			return 0, 0, fmt.Errorf("invalid lon")
		}
		lon = f
	}

	return lat, lon, nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
