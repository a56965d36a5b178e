/**
 * Worker configuration from environment variables.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Queue driver selection.
const (
	QueueDriverAsynq = "asynq"
	QueueDriverRedis = "redis"
)

// Config holds all worker settings.
type Config struct {
	// Queue
	RedisURL    string
	QueueDriver string
	QueueName   string
	Concurrency int

	// Storage
	DatabaseURL      string
	QdrantURL        string
	QdrantCollection string

	// Embeddings (optional; empty API key disables the vector layer)
	EmbeddingAPIKey     string
	EmbeddingDimensions int

	// Rules
	PatternDir    string
	PatternSource string // "csv" or "postgres"
	ReloadOnLearn bool

	// Processing
	OCRLanguages      []string
	PDFRenderDPI      int
	MaxFileSizeMB     int
	ProcessingTimeout time.Duration
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	timeoutSec := getEnvAsIntOrDefault("PROCESSING_TIMEOUT_SECONDS", 300)

	cfg := &Config{
		RedisURL:    getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		QueueDriver: getEnvOrDefault("QUEUE_DRIVER", QueueDriverRedis),
		QueueName:   getEnvOrDefault("QUEUE_NAME", "ocr-processing"),
		Concurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 2),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		QdrantURL:        getEnvOrDefault("QDRANT_URL", "localhost:6334"),
		QdrantCollection: getEnvOrDefault("QDRANT_COLLECTION", "documents"),

		EmbeddingAPIKey:     os.Getenv("VOYAGE_API_KEY"),
		EmbeddingDimensions: getEnvAsIntOrDefault("EMBEDDING_DIMENSIONS", 1024),

		PatternDir:    getEnvOrDefault("PATTERN_DIR", "./patterns"),
		PatternSource: getEnvOrDefault("PATTERN_SOURCE", "csv"),
		ReloadOnLearn: getEnvAsBoolOrDefault("RELOAD_ON_LEARN", true),

		OCRLanguages:      splitList(getEnvOrDefault("OCR_LANGUAGES", "ind,eng")),
		PDFRenderDPI:      getEnvAsIntOrDefault("PDF_RENDER_DPI", 200),
		MaxFileSizeMB:     getEnvAsIntOrDefault("MAX_FILE_SIZE_MB", 50),
		ProcessingTimeout: time.Duration(timeoutSec) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and sane bounds.
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.QueueDriver != QueueDriverAsynq && c.QueueDriver != QueueDriverRedis {
		return fmt.Errorf("QUEUE_DRIVER must be %q or %q, got %q", QueueDriverAsynq, QueueDriverRedis, c.QueueDriver)
	}
	if c.PatternSource != "csv" && c.PatternSource != "postgres" {
		return fmt.Errorf("PATTERN_SOURCE must be csv or postgres, got %q", c.PatternSource)
	}
	if c.Concurrency < 1 || c.Concurrency > 32 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 32, got %d", c.Concurrency)
	}
	if c.PDFRenderDPI < 72 || c.PDFRenderDPI > 600 {
		return fmt.Errorf("PDF_RENDER_DPI must be between 72 and 600, got %d", c.PDFRenderDPI)
	}
	if c.MaxFileSizeMB < 1 || c.MaxFileSizeMB > 500 {
		return fmt.Errorf("MAX_FILE_SIZE_MB must be between 1 and 500, got %d", c.MaxFileSizeMB)
	}
	if c.ProcessingTimeout < 10*time.Second {
		return fmt.Errorf("PROCESSING_TIMEOUT_SECONDS must be at least 10, got %s", c.ProcessingTimeout)
	}
	if c.EmbeddingDimensions < 1 || c.EmbeddingDimensions > 4096 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be between 1 and 4096, got %d", c.EmbeddingDimensions)
	}
	if len(c.OCRLanguages) == 0 {
		return fmt.Errorf("OCR_LANGUAGES must name at least one language")
	}
	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsIntOrDefault(key string, fallback int) int {
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

func getEnvAsBoolOrDefault(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
