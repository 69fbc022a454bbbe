package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string

	Port        string
	GinMode     string
	CORSOrigins []string

	// Gemini embeddings
	GeminiAPIKey        string
	GeminiBaseURL       string
	EmbeddingModel      string
	EmbeddingDimensions int
	EmbeddingTimeout    int // seconds

	// Import API
	ImportAPIToken string

	// Attachment fetching
	AttachmentFetchTimeout int   // seconds
	AttachmentMaxSize      int64 // bytes

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	RateLimitReqs   int
	RateLimitWindow int // seconds
	StatsCacheTTL   int // seconds

	// Telemetry
	TracingEnabled bool
	OTLPEndpoint   string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/document_archive"),
		DBName:   getEnv("DB_NAME", "document_archive"),

		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL:       getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),
		EmbeddingDimensions: getEnvInt("EMBEDDING_DIMENSIONS", 3072),
		EmbeddingTimeout:    getEnvInt("EMBEDDING_TIMEOUT", 30),

		ImportAPIToken: getEnv("IMPORT_API_TOKEN", ""),

		AttachmentFetchTimeout: getEnvInt("ATTACHMENT_FETCH_TIMEOUT", 60),
		AttachmentMaxSize:      getEnvInt64("ATTACHMENT_MAX_SIZE", 104857600), // 100MB

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),
		StatsCacheTTL:   getEnvInt("STATS_CACHE_TTL", 30),

		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	// GEMINI_API_KEY and IMPORT_API_TOKEN are deliberately not required at
	// startup: the search and import endpoints report their own 503s when
	// the corresponding secret is missing.
	if cfg.EmbeddingDimensions <= 0 {
		return nil, fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", cfg.EmbeddingDimensions)
	}

	return cfg, nil
}
