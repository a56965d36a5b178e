/**
 * Plain Redis list queue consumer.
 *
 * Covers producers that push jobs with LPUSH + HSET instead of asynq. Jobs
 * are fetched with BRPop, retried by re-queueing with an attempt counter,
 * and their lifecycle is mirrored into status sets and a result hash so the
 * enqueueing side can poll progress.
 */

package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/asepsafrudin/hybrid-ocr/internal/errors"
	"github.com/asepsafrudin/hybrid-ocr/internal/logging"
	"github.com/asepsafrudin/hybrid-ocr/internal/processor"
	"github.com/asepsafrudin/hybrid-ocr/internal/storage"
)

const (
	defaultMaxRetries = 3
	brpopTimeout      = 5 * time.Second
	idleRetryDelay    = time.Second
)

// redisJob is the envelope stored in the queue's data hash.
type redisJob struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Payload    TaskPayload `json:"payload"`
	CreatedAt  string      `json:"created_at,omitempty"`
	Attempts   int         `json:"attempts"`
	MaxRetries int         `json:"max_retries"`
}

// RedisConsumerConfig holds the list driver settings.
type RedisConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	Timeout     time.Duration
}

// RedisConsumer pulls jobs off a Redis list with a fixed worker pool.
type RedisConsumer struct {
	client    *redis.Client
	processor Processor
	config    RedisConsumerConfig
	log       *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRedisConsumer(cfg RedisConsumerConfig, proc Processor, logger *logging.Logger) (*RedisConsumer, error) {
	if proc == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = logging.New("queue-redis")
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	return &RedisConsumer{
		client:    client,
		processor: proc,
		config:    cfg,
		log:       logger,
		ctx:       consumerCtx,
		cancel:    consumerCancel,
	}, nil
}

// Start launches the worker pool and returns immediately.
func (c *RedisConsumer) Start() {
	c.log.Info("redis consumer starting", logging.Fields{
		"queue": c.config.QueueName, "concurrency": c.config.Concurrency,
	})
	for i := 0; i < c.config.Concurrency; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}
}

// Stop cancels the workers, waits for in-flight jobs and closes the client.
func (c *RedisConsumer) Stop() error {
	c.log.Info("redis consumer stopping")
	c.cancel()
	c.wg.Wait()
	return c.client.Close()
}

func (c *RedisConsumer) worker(id int) {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			if err := c.processNext(); err != nil {
				if err != redis.Nil && c.ctx.Err() == nil {
					c.log.Warn("worker error", logging.Fields{"worker": id, "error": err})
				}
				select {
				case <-c.ctx.Done():
					return
				case <-time.After(idleRetryDelay):
				}
			}
		}
	}
}

// processNext blocks for one job, runs it and records the outcome. A
// redis.Nil return means the queue was empty.
func (c *RedisConsumer) processNext() error {
	popped, err := c.client.BRPop(c.ctx, brpopTimeout, c.config.QueueName).Result()
	if err != nil {
		return err
	}
	if len(popped) < 2 {
		return fmt.Errorf("unexpected BRPOP result: %v", popped)
	}
	jobID := popped[1]

	raw, err := c.client.HGet(c.ctx, c.dataKey(), jobID).Result()
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	var job redisJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		c.log.Error("dropping malformed job", logging.Fields{"job_id": jobID, "error": err})
		c.client.HDel(c.ctx, c.dataKey(), jobID)
		return nil
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = defaultMaxRetries
	}

	c.markStatus(job.Payload.TaskID, storage.StatusProcessing, nil)
	if err := c.processor.UpdateTaskStatus(c.ctx, job.Payload.TaskID, storage.StatusProcessing, "", ""); err != nil {
		c.log.Warn("failed to mark task processing", logging.Fields{"task_id": job.Payload.TaskID, "error": err})
	}

	result, err := c.runJob(&job)
	if err != nil {
		c.handleFailure(&job, jobID, err)
		return nil
	}

	c.client.HDel(c.ctx, c.dataKey(), jobID)
	c.markStatus(job.Payload.TaskID, storage.StatusCompleted, map[string]interface{}{
		"pages":              result.Pages,
		"regions_count":      len(result.Regions),
		"document_type":      result.DocumentType,
		"processing_time_ms": result.ProcessingTimeMs,
	})
	c.publishEvent(job.Payload.TaskID, storage.StatusCompleted)
	return nil
}

// runJob decodes the payload and drives the processor with a per-job timeout.
func (c *RedisConsumer) runJob(job *redisJob) (*processor.ProcessResult, error) {
	if job.Payload.TaskID == "" {
		return nil, errors.NewInvalidInput("", "job payload missing task id")
	}
	fileData, err := base64.StdEncoding.DecodeString(job.Payload.FileData)
	if err != nil {
		return nil, errors.NewInvalidInput(job.Payload.TaskID, "file data is not valid base64")
	}

	jobCtx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	result, err := c.processor.ProcessDocument(jobCtx, &processor.ProcessRequest{
		JobID:        job.Payload.TaskID,
		UserID:       job.Payload.UserID,
		Filename:     job.Payload.Filename,
		FileBuffer:   fileData,
		DocumentType: job.Payload.DocumentType,
	})
	if err != nil {
		if jobCtx.Err() == context.DeadlineExceeded {
			return nil, errors.NewProcessingTimeout(job.Payload.TaskID, c.config.Timeout)
		}
		return nil, err
	}
	return result, nil
}

// handleFailure re-queues retryable jobs and records terminal failures.
func (c *RedisConsumer) handleFailure(job *redisJob, jobID string, jobErr error) {
	code, message := errors.CodeEngineFailed, jobErr.Error()
	terminal := false
	if pe, ok := errors.AsProcessingError(jobErr); ok {
		code, message = pe.Code, pe.Message
		terminal = code == errors.CodeUnsupportedFormat || code == errors.CodeInvalidInput
	}

	job.Attempts++
	if !terminal && job.Attempts < job.MaxRetries {
		updated, err := json.Marshal(job)
		if err == nil {
			c.client.HSet(c.ctx, c.dataKey(), jobID, updated)
			c.client.LPush(c.ctx, c.config.QueueName, jobID)
			c.log.Warn("job re-queued for retry", logging.Fields{
				"task_id": job.Payload.TaskID, "attempt": job.Attempts, "max": job.MaxRetries, "error": jobErr,
			})
			return
		}
		c.log.Error("failed to re-queue job", logging.Fields{"task_id": job.Payload.TaskID, "error": err})
	}

	c.client.HDel(c.ctx, c.dataKey(), jobID)
	c.markStatus(job.Payload.TaskID, storage.StatusFailed, map[string]interface{}{
		"error_code": code, "error": message, "attempts": job.Attempts,
	})
	if err := c.processor.UpdateTaskStatus(c.ctx, job.Payload.TaskID, storage.StatusFailed, code, message); err != nil {
		c.log.Error("failed to record task failure", logging.Fields{"task_id": job.Payload.TaskID, "error": err})
	}
	c.publishEvent(job.Payload.TaskID, storage.StatusFailed)
	c.log.Error("job failed", logging.Fields{"task_id": job.Payload.TaskID, "error": jobErr})
}

// markStatus mirrors the lifecycle into per-status sets and a result hash.
func (c *RedisConsumer) markStatus(taskID, status string, result map[string]interface{}) {
	if taskID == "" {
		return
	}
	for _, s := range []string{storage.StatusProcessing, storage.StatusCompleted, storage.StatusFailed} {
		if s == status {
			c.client.SAdd(c.ctx, c.statusKey(s), taskID)
		} else {
			c.client.SRem(c.ctx, c.statusKey(s), taskID)
		}
	}
	if result != nil {
		if raw, err := json.Marshal(result); err == nil {
			c.client.HSet(c.ctx, c.config.QueueName+":results", taskID, raw)
		}
	}
}

// publishEvent notifies subscribers about a terminal transition.
func (c *RedisConsumer) publishEvent(taskID, status string) {
	if taskID == "" {
		return
	}
	event, err := json.Marshal(map[string]string{"task_id": taskID, "status": status})
	if err != nil {
		return
	}
	c.client.Publish(c.ctx, c.config.QueueName+":events", event)
}

func (c *RedisConsumer) dataKey() string { return c.config.QueueName + ":data" }

func (c *RedisConsumer) statusKey(status string) string {
	return c.config.QueueName + ":" + status
}
