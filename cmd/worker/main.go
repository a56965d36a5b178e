/**
 * OCR worker entry point.
 *
 * Wires configuration, storage (PostgreSQL + Qdrant), the correction rule
 * store, recognition engines and a queue consumer, then blocks until a
 * shutdown signal.
 */

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/asepsafrudin/hybrid-ocr/internal/config"
	"github.com/asepsafrudin/hybrid-ocr/internal/engine"
	"github.com/asepsafrudin/hybrid-ocr/internal/logging"
	"github.com/asepsafrudin/hybrid-ocr/internal/pattern"
	"github.com/asepsafrudin/hybrid-ocr/internal/processor"
	"github.com/asepsafrudin/hybrid-ocr/internal/queue"
	"github.com/asepsafrudin/hybrid-ocr/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, using system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.New("worker")
	logger.Info("worker starting", logging.Fields{
		"queue":       cfg.QueueName,
		"driver":      cfg.QueueDriver,
		"concurrency": cfg.Concurrency,
		"languages":   cfg.OCRLanguages,
	})

	pg, err := storage.NewPostgresClient(cfg.DatabaseURL, logger.WithComponent("postgres"))
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}

	var qdrant *storage.QdrantClient
	if cfg.QdrantURL != "" {
		qdrant, err = storage.NewQdrantClient(cfg.QdrantURL, cfg.QdrantCollection,
			cfg.EmbeddingDimensions, logger.WithComponent("qdrant"))
		if err != nil {
			logger.Warn("qdrant unavailable, continuing without vector storage", logging.Fields{"error": err})
			qdrant = nil
		}
	}

	store, err := storage.NewManager(pg, qdrant, logger.WithComponent("storage"))
	if err != nil {
		log.Fatalf("failed to initialize storage manager: %v", err)
	}
	defer store.Close()

	patterns, err := newPatternStore(cfg, logger)
	if err != nil {
		log.Fatalf("failed to load correction rules: %v", err)
	}
	stats := logging.Fields{}
	for k, v := range patterns.Stats() {
		stats[k] = v
	}
	logger.Info("correction rules loaded", stats)

	var embeddings *processor.EmbeddingClient
	if cfg.EmbeddingAPIKey != "" {
		embeddings, err = processor.NewEmbeddingClient(cfg.EmbeddingAPIKey,
			cfg.EmbeddingDimensions, logger.WithComponent("embeddings"))
		if err != nil {
			log.Fatalf("failed to initialize embedding client: %v", err)
		}
	} else {
		logger.Info("VOYAGE_API_KEY not set, document vectors disabled")
	}

	engines := engine.NewRegistry(logger.WithComponent("engine"),
		engine.NewTesseract(cfg.OCRLanguages...))

	proc, err := processor.NewDocumentProcessor(processor.Options{
		Engines:     engines,
		Patterns:    patterns,
		Storage:     store,
		Embeddings:  embeddings,
		PDFDPI:      cfg.PDFRenderDPI,
		Concurrency: cfg.Concurrency,
		Logger:      logger.WithComponent("processor"),
	})
	if err != nil {
		log.Fatalf("failed to initialize document processor: %v", err)
	}

	stop, err := startConsumer(cfg, proc, logger)
	if err != nil {
		log.Fatalf("failed to start queue consumer: %v", err)
	}

	logger.Info("worker ready", logging.Fields{"engines": engines.Names()})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutting down", logging.Fields{"signal": sig.String()})

	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for backend, status := range store.Health(ctx) {
		if status != "ok" && status != "disabled" {
			logger.Warn("storage unhealthy at shutdown", logging.Fields{"backend": backend, "status": status})
		}
	}
	logger.Info("shutdown complete")
}

// newPatternStore builds the rule store on the configured repository.
func newPatternStore(cfg *config.Config, logger *logging.Logger) (*pattern.Store, error) {
	var repo pattern.Repository
	switch cfg.PatternSource {
	case "postgres":
		pgRepo, err := pattern.NewPostgresRepository(cfg.DatabaseURL, logger.WithComponent("pattern-db"))
		if err != nil {
			return nil, err
		}
		repo = pgRepo
	default:
		csvRepo, err := pattern.NewCSVRepository(cfg.PatternDir, logger.WithComponent("pattern-csv"))
		if err != nil {
			return nil, err
		}
		repo = csvRepo
	}
	return pattern.NewStore(repo, logger.WithComponent("pattern"))
}

// startConsumer runs the configured queue driver and returns a stop func.
func startConsumer(cfg *config.Config, proc queue.Processor, logger *logging.Logger) (func(), error) {
	switch cfg.QueueDriver {
	case config.QueueDriverAsynq:
		consumer, err := queue.NewConsumer(queue.ConsumerConfig{
			RedisURL:    cfg.RedisURL,
			QueueName:   cfg.QueueName,
			Concurrency: cfg.Concurrency,
			Timeout:     cfg.ProcessingTimeout,
		}, proc, logger.WithComponent("queue"))
		if err != nil {
			return nil, err
		}
		errCh := make(chan error, 1)
		go func() { errCh <- consumer.Run() }()
		return func() {
			consumer.Shutdown()
			if err := <-errCh; err != nil {
				logger.Error("consumer exited with error", logging.Fields{"error": err})
			}
		}, nil
	default:
		consumer, err := queue.NewRedisConsumer(queue.RedisConsumerConfig{
			RedisURL:    cfg.RedisURL,
			QueueName:   cfg.QueueName,
			Concurrency: cfg.Concurrency,
			Timeout:     cfg.ProcessingTimeout,
		}, proc, logger.WithComponent("queue"))
		if err != nil {
			return nil, err
		}
		consumer.Start()
		return func() {
			if err := consumer.Stop(); err != nil {
				logger.Error("consumer stop failed", logging.Fields{"error": err})
			}
		}, nil
	}
}
