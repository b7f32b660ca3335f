package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/nimbus-core/internal/core/ports/driving"
	"github.com/custodia-labs/nimbus-core/internal/runtime"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker matches backends exposing a HealthCheck probe
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string

	// Services
	chatService    driving.ChatService
	ragService     driving.RAGService
	weatherService driving.WeatherService

	// Infrastructure
	runtimeServices *runtime.Services
	vectorStore     HealthChecker
	db              Pinger
	redisClient     Pinger

	defaultLat float64
	defaultLon float64
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string

	// DefaultLat/DefaultLon back the /weather endpoint when the caller
	// omits coordinates
	DefaultLat float64
	DefaultLon float64
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		AllowedOrigins: []string{"*"},
		// New York
		DefaultLat: 40.7128,
		DefaultLon: -74.0060,
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	chatService driving.ChatService,
	ragService driving.RAGService,
	weatherService driving.WeatherService,
	runtimeServices *runtime.Services,
	vectorStore HealthChecker,
	db Pinger, // can be nil
	redisClient Pinger, // can be nil
) *Server {
	s := &Server{
		router:          http.NewServeMux(),
		version:         cfg.Version,
		chatService:     chatService,
		ragService:      ragService,
		weatherService:  weatherService,
		runtimeServices: runtimeServices,
		vectorStore:     vectorStore,
		db:              db,
		redisClient:     redisClient,
		defaultLat:      cfg.DefaultLat,
		defaultLon:      cfg.DefaultLon,
	}

	recovery := NewRecoveryMiddleware()
	logging := NewLoggingMiddleware()
	cors := NewCORSMiddleware(cfg.AllowedOrigins)

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     recovery.Handler(logging.Handler(cors.Handler(s.router))),
		ReadTimeout: 30 * time.Second,
		// No write timeout: /chat streams generation output over SSE
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Weather data endpoints
	s.router.HandleFunc("GET /weather", s.handleWeather)
	s.router.HandleFunc("GET /geocode", s.handleGeocode)
	s.router.HandleFunc("GET /aqi", s.handleAQI)

	// RAG chat endpoint (SSE)
	s.router.HandleFunc("POST /chat", s.handleChat)

	// Knowledge base endpoints
	s.router.HandleFunc("POST /ingest", s.handleIngest)
	s.router.HandleFunc("GET /kb/stats", s.handleKBStats)
	s.router.HandleFunc("GET /kb/documents", s.handleKBDocuments)
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
