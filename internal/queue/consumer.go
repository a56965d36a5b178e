/**
 * Asynq queue consumer.
 *
 * Handles "document:process" tasks with bounded concurrency, exponential
 * retry backoff and a per-job timeout. The asynq driver is used when the
 * enqueueing side speaks asynq; the plain Redis list driver covers the
 * legacy API format.
 */

package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/asepsafrudin/hybrid-ocr/internal/errors"
	"github.com/asepsafrudin/hybrid-ocr/internal/logging"
	"github.com/asepsafrudin/hybrid-ocr/internal/processor"
	"github.com/asepsafrudin/hybrid-ocr/internal/storage"
)

// TypeProcessDocument is the asynq task type for document jobs.
const TypeProcessDocument = "document:process"

// TaskPayload is the JSON body of one queued job.
type TaskPayload struct {
	TaskID       string `json:"task_id"`
	UserID       string `json:"user_id,omitempty"`
	Filename     string `json:"filename"`
	FileData     string `json:"file_data"` // base64
	DocumentType string `json:"document_type,omitempty"`
}

// Processor is what a consumer needs from the document pipeline.
type Processor interface {
	ProcessDocument(ctx context.Context, req *processor.ProcessRequest) (*processor.ProcessResult, error)
	UpdateTaskStatus(ctx context.Context, taskID, status, errorCode, errorMessage string) error
}

// Consumer wraps an asynq server bound to one queue.
type Consumer struct {
	server    *asynq.Server
	processor Processor
	timeout   time.Duration
	log       *logging.Logger
}

// ConsumerConfig holds the asynq driver settings.
type ConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	Timeout     time.Duration
}

func NewConsumer(cfg ConsumerConfig, proc Processor, logger *logging.Logger) (*Consumer, error) {
	if proc == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if logger == nil {
		logger = logging.New("queue-asynq")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.QueueName: 10},
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			// 10s, 20s, 40s, ...
			return time.Duration(10*(1<<uint(n))) * time.Second
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("task failed", logging.Fields{"type": task.Type(), "error": err})
		}),
	})

	return &Consumer{
		server:    server,
		processor: proc,
		timeout:   cfg.Timeout,
		log:       logger,
	}, nil
}

// Run blocks serving tasks until Shutdown.
func (c *Consumer) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeProcessDocument, c.handleProcessDocument)
	c.log.Info("asynq consumer started")
	return c.server.Run(mux)
}

func (c *Consumer) Shutdown() { c.server.Shutdown() }

func (c *Consumer) handleProcessDocument(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("malformed task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.TaskID == "" {
		return fmt.Errorf("task payload missing task id: %w", asynq.SkipRetry)
	}

	fileData, err := base64.StdEncoding.DecodeString(payload.FileData)
	if err != nil {
		c.failTask(ctx, payload.TaskID, errors.CodeInvalidInput, "file data is not valid base64")
		return fmt.Errorf("invalid file data for task %s: %w", payload.TaskID, asynq.SkipRetry)
	}

	if err := c.processor.UpdateTaskStatus(ctx, payload.TaskID, storage.StatusProcessing, "", ""); err != nil {
		c.log.Warn("failed to mark task processing", logging.Fields{"task_id": payload.TaskID, "error": err})
	}

	jobCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err = c.processor.ProcessDocument(jobCtx, &processor.ProcessRequest{
		JobID:        payload.TaskID,
		UserID:       payload.UserID,
		Filename:     payload.Filename,
		FileBuffer:   fileData,
		DocumentType: payload.DocumentType,
	})
	if err != nil {
		if jobCtx.Err() == context.DeadlineExceeded {
			timeoutErr := errors.NewProcessingTimeout(payload.TaskID, c.timeout)
			c.failTask(ctx, payload.TaskID, timeoutErr.Code, timeoutErr.Message)
			return timeoutErr
		}
		code, message := errors.CodeEngineFailed, err.Error()
		if pe, ok := errors.AsProcessingError(err); ok {
			code, message = pe.Code, pe.Message
			if code == errors.CodeUnsupportedFormat || code == errors.CodeInvalidInput {
				c.failTask(ctx, payload.TaskID, code, message)
				return fmt.Errorf("%s: %w", message, asynq.SkipRetry)
			}
		}
		c.failTask(ctx, payload.TaskID, code, message)
		return err
	}

	return nil
}

func (c *Consumer) failTask(ctx context.Context, taskID, code, message string) {
	if err := c.processor.UpdateTaskStatus(ctx, taskID, storage.StatusFailed, code, message); err != nil {
		c.log.Error("failed to record task failure", logging.Fields{"task_id": taskID, "error": err})
	}
}

// Client enqueues document jobs, used by tooling and tests.
type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(redisURL, queueName string) (*Client, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return &Client{client: asynq.NewClient(redisOpt), queue: queueName}, nil
}

// Enqueue submits one job with retry budget.
func (c *Client) Enqueue(ctx context.Context, payload TaskPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	task := asynq.NewTask(TypeProcessDocument, raw)
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task %s: %w", payload.TaskID, err)
	}
	return nil
}

func (c *Client) Close() error { return c.client.Close() }
