/**
 * Job submission CLI for local runs and smoke tests.
 *
 * Reads a document from disk and enqueues it on the asynq queue with a
 * fresh task id.
 */

package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/asepsafrudin/hybrid-ocr/internal/config"
	"github.com/asepsafrudin/hybrid-ocr/internal/queue"
)

func main() {
	docType := flag.String("type", "", "document type override (skips detection)")
	userID := flag.String("user", "", "submitting user id")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <file>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, using system environment")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to read %s: %v", path, err)
	}
	if len(data) > cfg.MaxFileSizeMB*1024*1024 {
		log.Fatalf("%s exceeds the %dMB limit", path, cfg.MaxFileSizeMB)
	}

	client, err := queue.NewClient(cfg.RedisURL, cfg.QueueName)
	if err != nil {
		log.Fatalf("failed to connect to queue: %v", err)
	}
	defer client.Close()

	taskID := uuid.NewString()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = client.Enqueue(ctx, queue.TaskPayload{
		TaskID:       taskID,
		UserID:       *userID,
		Filename:     filepath.Base(path),
		FileData:     base64.StdEncoding.EncodeToString(data),
		DocumentType: *docType,
	})
	if err != nil {
		log.Fatalf("failed to enqueue: %v", err)
	}

	fmt.Printf("enqueued %s as task %s on %q\n", filepath.Base(path), taskID, cfg.QueueName)
}
