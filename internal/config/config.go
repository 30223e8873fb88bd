package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	APIPort  string
	LogLevel string

	DatasetLocation string
	DatasetTable    string

	SimilarityThreshold float64

	SemanticEnabled       bool
	SemanticDistanceScale float64
	VectorBackend         string

	OllamaURL           string
	OllamaEmbedModel    string
	EmbedTimeoutSeconds int

	QdrantURL        string
	QdrantCollection string

	GroqAPIKey               string
	GroqBaseURL              string
	GroqModel                string
	GenerativeDomain         string
	GenerativeTimeoutSeconds int

	APIRateLimitRPS     float64
	APIRateLimitBurst   int
	APIMaxInFlight      int
	APIQueueTimeoutMS   int
	MetricsEnabled      bool
	EmbedRetryAttempts  int
	EmbedRetryBackoffMS int
	BreakerMinRequests  int
	BreakerOpenSeconds  int
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "5000"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		DatasetLocation: mustEnv("FAQ_DATASET", "./data/faq_dataset.json"),
		DatasetTable:    mustEnv("FAQ_DATASET_TABLE", "faq_entries"),

		SimilarityThreshold: mustEnvFloat("SIMILARITY_THRESHOLD", 0.35),

		SemanticEnabled:       mustEnvBool("SEMANTIC_ENABLED", true),
		SemanticDistanceScale: mustEnvFloat("SEMANTIC_DISTANCE_SCALE", 10.0),
		VectorBackend:         strings.ToLower(mustEnv("VECTOR_BACKEND", "memory")),

		OllamaURL:           mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaEmbedModel:    mustEnv("OLLAMA_EMBED_MODEL", "all-minilm"),
		EmbedTimeoutSeconds: mustEnvInt("EMBED_TIMEOUT_SECONDS", 10),

		QdrantURL:        mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: mustEnv("QDRANT_COLLECTION", "faq_questions"),

		GroqAPIKey:               mustEnv("GROQ_API_KEY", ""),
		GroqBaseURL:              mustEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GroqModel:                mustEnv("GROQ_MODEL", "llama-3.1-8b-instant"),
		GenerativeDomain:         mustEnv("GENERATIVE_DOMAIN", "university students"),
		GenerativeTimeoutSeconds: mustEnvInt("GENERATIVE_TIMEOUT_SECONDS", 30),

		APIRateLimitRPS:     mustEnvFloat("API_RATE_LIMIT_RPS", 0),
		APIRateLimitBurst:   mustEnvInt("API_RATE_LIMIT_BURST", 20),
		APIMaxInFlight:      mustEnvInt("API_MAX_IN_FLIGHT", 64),
		APIQueueTimeoutMS:   mustEnvInt("API_QUEUE_TIMEOUT_MS", 250),
		MetricsEnabled:      mustEnvBool("METRICS_ENABLED", true),
		EmbedRetryAttempts:  mustEnvInt("EMBED_RETRY_MAX_ATTEMPTS", 3),
		EmbedRetryBackoffMS: mustEnvInt("EMBED_RETRY_INITIAL_BACKOFF_MS", 100),
		BreakerMinRequests:  mustEnvInt("BREAKER_MIN_REQUESTS", 10),
		BreakerOpenSeconds:  mustEnvInt("BREAKER_OPEN_TIMEOUT_SECONDS", 30),
	}
}

// GenerativeConfigured reports whether a credential for the generative tier
// was supplied. Client initialization is probed separately at bootstrap.
func (c Config) GenerativeConfigured() bool {
	return strings.TrimSpace(c.GroqAPIKey) != ""
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
