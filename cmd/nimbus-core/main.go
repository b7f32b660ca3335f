package main

// @title           Nimbus Core API
// @version         1.0
// @description     Weather assistant API. Nimbus Core combines live weather, air quality and geocoding data with a retrieval-augmented chat assistant over a local knowledge base.

// @contact.name   Nimbus OSS
// @contact.url    https://github.com/custodia-labs/nimbus-core/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /
// @schemes   http https

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/nimbus-core/internal/adapters/driven/ai"
	"github.com/custodia-labs/nimbus-core/internal/adapters/driven/nominatim"
	"github.com/custodia-labs/nimbus-core/internal/adapters/driven/openaq"
	"github.com/custodia-labs/nimbus-core/internal/adapters/driven/openmeteo"
	"github.com/custodia-labs/nimbus-core/internal/adapters/driven/postgres"
	"github.com/custodia-labs/nimbus-core/internal/adapters/driven/qdrant"
	redisadapter "github.com/custodia-labs/nimbus-core/internal/adapters/driven/redis"
	"github.com/custodia-labs/nimbus-core/internal/adapters/driving/http"
	"github.com/custodia-labs/nimbus-core/internal/core/domain"
	"github.com/custodia-labs/nimbus-core/internal/core/ports/driven"
	"github.com/custodia-labs/nimbus-core/internal/core/ports/driving"
	"github.com/custodia-labs/nimbus-core/internal/core/services"
	"github.com/custodia-labs/nimbus-core/internal/kb"
	"github.com/custodia-labs/nimbus-core/internal/runtime"
)

var version = "dev"

func main() {
	// Get run mode from environment (RUN_MODE) or command line arg
	mode := getEnv("RUN_MODE", "api")
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	log.Printf("nimbus-core %s starting in %s mode", version, mode)

	// Configuration from environment
	port := getEnvInt("PORT", 8080)
	provider := domain.AIProvider(getEnv("AI_PROVIDER", "ollama"))
	qdrantURL := getEnv("QDRANT_URL", "http://localhost:6333")
	databaseURL := getEnv("DATABASE_URL", "")
	redisURL := getEnv("REDIS_URL", "")

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutdown signal received, stopping...")
		cancel()
	}()

	// ===== Initialize Qdrant =====
	log.Println("Connecting to Qdrant...")
	qdrantConfig := qdrant.DefaultConfig(qdrantURL)
	qdrantConfig.APIKey = getEnv("QDRANT_API_KEY", "")
	qdrantConfig.Collection = getEnv("QDRANT_COLLECTION", qdrantConfig.Collection)
	vectorStore := qdrant.NewStore(qdrantConfig)
	if err := vectorStore.HealthCheck(ctx); err != nil {
		log.Printf("Warning: Qdrant health check failed: %v (retrieval may not work)", err)
	} else {
		log.Println("Qdrant connected")
	}

	// ===== Initialize PostgreSQL (optional document registry) =====
	var db *postgres.DB
	var documentStore *postgres.DocumentStore
	if databaseURL != "" {
		log.Println("Connecting to PostgreSQL...")
		var err error
		db, err = postgres.Connect(ctx, postgres.DefaultConfig(databaseURL))
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		// Initialize schema (idempotent)
		if err := db.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		documentStore = postgres.NewDocumentStore(db)
		log.Println("PostgreSQL connected and schema initialized")
	} else {
		log.Println("DATABASE_URL not set, document registry disabled")
	}

	// ===== Initialize Redis (optional weather cache) =====
	var redisClient *redis.Client
	var weatherCache *redisadapter.WeatherCache
	if redisURL != "" {
		log.Println("Connecting to Redis...")
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()

		ttl := time.Duration(getEnvInt("WEATHER_CACHE_TTL_SEC", 600)) * time.Second
		weatherCache = redisadapter.NewWeatherCache(redisClient, ttl)
		log.Println("Redis connected, weather cache enabled")
	} else {
		log.Println("REDIS_URL not set, weather cache disabled")
	}

	// ===== AI backends =====
	aiFactory := ai.NewFactory()
	runtimeConfig := domain.NewRuntimeConfig(provider)
	runtimeServices := runtime.NewServices(runtimeConfig)
	defer runtimeServices.Close()

	embeddingSettings := &domain.EmbeddingSettings{
		Provider: provider,
		Model:    getEnv("EMBEDDING_MODEL", ""),
		BaseURL:  getEnv("OLLAMA_BASE_URL", ""),
		APIKey:   getEnv("GEMINI_API_KEY", ""),
	}
	llmSettings := &domain.LLMSettings{
		Provider:    provider,
		Model:       getEnv("LLM_MODEL", ""),
		BaseURL:     getEnv("OLLAMA_BASE_URL", ""),
		APIKey:      getEnv("GEMINI_API_KEY", ""),
		Temperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
		NumCtx:      getEnvInt("LLM_NUM_CTX", 2048),
		NumPredict:  getEnvInt("LLM_NUM_PREDICT", 256),
	}

	embeddingService, err := aiFactory.CreateEmbeddingService(embeddingSettings)
	if err != nil {
		log.Fatalf("Failed to create embedding service: %v", err)
	}
	embeddingDimensions := embeddingService.Dimensions()
	if err := runtimeServices.ValidateAndSetEmbedding(ctx, embeddingService); err != nil {
		log.Printf("Warning: embedding backend not reachable: %v (ingestion and retrieval disabled)", err)
	}

	llmService, err := aiFactory.CreateLLMService(llmSettings)
	if err != nil {
		log.Fatalf("Failed to create LLM service: %v", err)
	}
	if err := runtimeServices.ValidateAndSetLLM(ctx, llmService); err != nil {
		log.Printf("Warning: LLM backend not reachable: %v (chat disabled)", err)
	}

	// Ensure the collection exists with the embedding dimensionality. An
	// unreachable Qdrant may still come up before the first request; a
	// dimension mismatch never resolves itself and must stop the boot.
	if err := vectorStore.EnsureCollection(ctx, embeddingDimensions); err != nil {
		if errors.Is(err, domain.ErrDimensionMismatch) {
			log.Fatalf("Qdrant collection misconfigured: %v", err)
		}
		log.Printf("Warning: failed to ensure Qdrant collection: %v", err)
	}

	// ===== Weather data adapters =====
	weatherProvider := openmeteo.NewClient(getEnv("OPEN_METEO_URL", ""))
	primaryGeocoder := openmeteo.NewGeocoder(getEnv("OPEN_METEO_GEOCODING_URL", ""))
	fallbackGeocoder := nominatim.NewGeocoder(getEnv("NOMINATIM_URL", ""))
	aqiProvider := openaq.NewClient(getEnv("OPENAQ_URL", ""))

	// ===== Services (core business logic) =====
	logger := slog.Default()

	ragConfig := services.DefaultRAGConfig()
	ragConfig.TopK = getEnvInt("RAG_TOP_K", ragConfig.TopK)
	ragConfig.Logger = logger

	var ragDocumentStore = nullableDocumentStore(documentStore)
	ragService := services.NewRAGService(vectorStore, ragDocumentStore, runtimeServices, ragConfig)
	weatherService := services.NewWeatherService(
		weatherProvider, primaryGeocoder, fallbackGeocoder,
		aqiProvider, nullableWeatherCache(weatherCache), logger)
	chatService := services.NewChatService(ragService, weatherService, runtimeServices, logger)

	log.Printf("Runtime config: provider=%s, embedding=%t, llm=%t",
		provider,
		runtimeConfig.EmbeddingAvailable(),
		runtimeConfig.LLMAvailable())

	switch mode {
	case "api":
		runAPI(port, chatService, ragService, weatherService, runtimeServices, vectorStore, db, weatherCache)

	case "ingest":
		if len(os.Args) < 3 {
			log.Fatal("Usage: nimbus-core ingest <directory>")
		}
		runIngest(ctx, ragService, os.Args[2])

	default:
		log.Fatalf("Unknown mode: %s (use: api or ingest)", mode)
	}
}

func runAPI(
	port int,
	chatService driving.ChatService,
	ragService driving.RAGService,
	weatherService driving.WeatherService,
	runtimeServices *runtime.Services,
	vectorStore http.HealthChecker,
	db *postgres.DB,
	weatherCache *redisadapter.WeatherCache,
) {
	cfg := http.DefaultConfig()
	cfg.Port = port
	cfg.Version = version
	cfg.DefaultLat = getEnvFloat("DEFAULT_LAT", cfg.DefaultLat)
	cfg.DefaultLon = getEnvFloat("DEFAULT_LON", cfg.DefaultLon)

	// Typed nils must not reach the Pinger interfaces
	var dbPinger http.Pinger
	if db != nil {
		dbPinger = db
	}
	var redisPinger http.Pinger
	if weatherCache != nil {
		redisPinger = weatherCache
	}

	server := http.NewServer(
		cfg,
		chatService,
		ragService,
		weatherService,
		runtimeServices,
		vectorStore,
		dbPinger,
		redisPinger,
	)

	log.Printf("API server starting on :%d", port)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// runIngest bulk-loads a knowledge base directory and exits
func runIngest(ctx context.Context, ragService driving.RAGService, dir string) {
	if getEnvBool("INGEST_RESET", false) {
		log.Println("Resetting knowledge base...")
		if err := ragService.Reset(ctx); err != nil {
			log.Fatalf("Failed to reset knowledge base: %v", err)
		}
	}

	docs, err := kb.Discover(dir)
	if err != nil {
		log.Fatalf("Failed to discover documents: %v", err)
	}
	if len(docs) == 0 {
		log.Fatalf("No documents found in %s", dir)
	}

	total := 0
	for _, doc := range docs {
		content, err := os.ReadFile(doc.File)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", doc.File, err)
		}

		chunks, err := ragService.Ingest(ctx, string(content), doc.Source)
		if err != nil {
			log.Fatalf("Failed to ingest %s: %v", doc.Source, err)
		}
		log.Printf("Ingested %s: %d chunks", doc.Source, chunks)
		total += chunks
	}

	count, err := ragService.Count(ctx)
	if err != nil {
		log.Printf("Ingested %d chunks from %d documents", total, len(docs))
		return
	}
	log.Printf("Ingested %d chunks from %d documents (%d total in knowledge base)", total, len(docs), count)
}

// nullableDocumentStore avoids handing a typed nil to the service layer
func nullableDocumentStore(s *postgres.DocumentStore) driven.DocumentStore {
	if s == nil {
		return nil
	}
	return s
}

// nullableWeatherCache avoids handing a typed nil to the service layer
func nullableWeatherCache(c *redisadapter.WeatherCache) driven.WeatherCache {
	if c == nil {
		return nil
	}
	return c
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseFloat(value, 64); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}
