package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	VectorBackendSQLite   = "sqlite"
	VectorBackendWeaviate = "weaviate"
)

type Config struct {
	GeminiAPIKey   string
	EmbeddingModel string
	ChatModel      string

	CohereAPIKey  string
	CohereBaseURL string
	RerankModel   string

	VectorBackend   string
	WeaviateHost    string
	WeaviateScheme  string
	WeaviateAPIKey  string
	WeaviateClass   string
	DatabaseURL     string
	RedisURL        string
	EmbedCacheTTL   time.Duration
	HTTPPort        string
	LogLevel        string
	ServiceTimeout  time.Duration
	EmbedRateLimit  float64
	EmbedMaxRetries int

	EmbeddingDimension int
	ChunkSize          int
	ChunkOverlap       int
	TopK               int
	RerankTopK         int
}

// MissingEnvError lists every required variable that was not set.
type MissingEnvError struct {
	Vars []string
}

func (e *MissingEnvError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Vars, ", ")
}

// InvalidError reports a configuration value that cannot be used.
type InvalidError struct {
	Key    string
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Key, e.Reason)
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // Load .env file if it exists
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	var p envParser
	cfg := &Config{
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		ChatModel:      getEnv("CHAT_MODEL", "gemini-1.5-flash-latest"),

		CohereAPIKey:  getEnv("COHERE_API_KEY", ""),
		CohereBaseURL: getEnv("COHERE_BASE_URL", "https://api.cohere.com"),
		RerankModel:   getEnv("RERANK_MODEL", "rerank-english-v3.0"),

		VectorBackend:   strings.ToLower(getEnv("VECTOR_BACKEND", VectorBackendSQLite)),
		WeaviateHost:    getEnv("WEAVIATE_HOST", ""),
		WeaviateScheme:  getEnv("WEAVIATE_SCHEME", "https"),
		WeaviateAPIKey:  getEnv("WEAVIATE_API_KEY", ""),
		WeaviateClass:   getEnv("WEAVIATE_CLASS", "MiniRagChunk"),
		DatabaseURL:     getEnv("DATABASE_URL", "minirag.db"),
		RedisURL:        getEnv("REDIS_URL", ""),
		EmbedCacheTTL:   p.getEnvAsDuration("EMBED_CACHE_TTL", 24*time.Hour),
		HTTPPort:        getEnv("HTTP_PORT", "8000"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ServiceTimeout:  p.getEnvAsDuration("SERVICE_TIMEOUT", 30*time.Second),
		EmbedRateLimit:  p.getEnvAsFloat("EMBED_RATE_LIMIT", 25),
		EmbedMaxRetries: p.getEnvAsInt("EMBED_MAX_RETRIES", 3),

		EmbeddingDimension: p.getEnvAsInt("EMBEDDING_DIMENSION", 768),
		ChunkSize:          p.getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap:       p.getEnvAsInt("CHUNK_OVERLAP", 150),
		TopK:               p.getEnvAsInt("TOP_K", 10),
		RerankTopK:         p.getEnvAsInt("RERANK_TOP_K", 5),
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required credentials first, then numeric settings.
func (c *Config) Validate() error {
	var missing []string
	if c.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if c.CohereAPIKey == "" {
		missing = append(missing, "COHERE_API_KEY")
	}
	if c.VectorBackend == VectorBackendWeaviate && c.WeaviateHost == "" {
		missing = append(missing, "WEAVIATE_HOST")
	}
	if len(missing) > 0 {
		return &MissingEnvError{Vars: missing}
	}

	switch c.VectorBackend {
	case VectorBackendSQLite, VectorBackendWeaviate:
	default:
		return &InvalidError{Key: "VECTOR_BACKEND", Reason: fmt.Sprintf("unknown backend %q", c.VectorBackend)}
	}
	if c.ChunkSize <= 0 {
		return &InvalidError{Key: "CHUNK_SIZE", Reason: "must be positive"}
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return &InvalidError{Key: "CHUNK_OVERLAP", Reason: "must be in [0, CHUNK_SIZE)"}
	}
	if c.TopK <= 0 {
		return &InvalidError{Key: "TOP_K", Reason: "must be positive"}
	}
	if c.RerankTopK <= 0 {
		return &InvalidError{Key: "RERANK_TOP_K", Reason: "must be positive"}
	}
	if c.EmbeddingDimension <= 0 {
		return &InvalidError{Key: "EMBEDDING_DIMENSION", Reason: "must be positive"}
	}
	if c.EmbedMaxRetries <= 0 {
		return &InvalidError{Key: "EMBED_MAX_RETRIES", Reason: "must be positive"}
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// envParser reads typed variables and keeps the first malformed one.
type envParser struct {
	err error
}

func (p *envParser) fail(key, reason string) {
	if p.err == nil {
		p.err = &InvalidError{Key: key, Reason: reason}
	}
}

func (p *envParser) getEnvAsInt(key string, defaultValue int) int {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		p.fail(key, "not an integer")
		return defaultValue
	}
	return value
}

func (p *envParser) getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		p.fail(key, "not a number")
		return defaultValue
	}
	return value
}

func (p *envParser) getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		p.fail(key, "not a duration (e.g. 30s, 24h)")
		return defaultValue
	}
	return value
}
