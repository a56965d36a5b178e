/**
 * PostgreSQL task storage.
 *
 * Mirrors the API service's processing_tasks table. The worker upserts so a
 * task row exists even when the API enqueued without creating one first.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/asepsafrudin/hybrid-ocr/internal/logging"
)

// Task statuses, matching the API's enum.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Task is one row of processing_tasks.
type Task struct {
	ID           string                 `json:"id"`
	Status       string                 `json:"status"`
	InputFileKey string                 `json:"input_file_key"`
	OutputData   map[string]interface{} `json:"output_data,omitempty"`
	ErrorCode    string                 `json:"error_code,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// PostgresClient persists task state.
type PostgresClient struct {
	db  *sql.DB
	log *logging.Logger
}

func NewPostgresClient(databaseURL string, logger *logging.Logger) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}
	if logger == nil {
		logger = logging.New("postgres")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("connected to postgres")
	return &PostgresClient{db: db, log: logger}, nil
}

func (c *PostgresClient) Close() error { return c.db.Close() }

func (c *PostgresClient) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

// UpdateTaskStatus upserts the task row with the new status. Output data and
// error fields are only overwritten when provided.
func (c *PostgresClient) UpdateTaskStatus(ctx context.Context, taskID, status string, outputData map[string]interface{}, errorCode, errorMessage string) error {
	var outputJSON interface{}
	if outputData != nil {
		raw, err := json.Marshal(outputData)
		if err != nil {
			return fmt.Errorf("failed to marshal output data for task %s: %w", taskID, err)
		}
		outputJSON = raw
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO processing_tasks (id, status, output_data, error_code, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			status        = EXCLUDED.status,
			output_data   = COALESCE(EXCLUDED.output_data, processing_tasks.output_data),
			error_code    = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			updated_at    = NOW()`,
		taskID, status, outputJSON, errorCode, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to update task %s to %s: %w", taskID, status, err)
	}

	c.log.Debug("task status updated", logging.Fields{"task_id": taskID, "status": status})
	return nil
}

// GetTask fetches one task row, or nil when it does not exist.
func (c *PostgresClient) GetTask(ctx context.Context, taskID string) (*Task, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, status, COALESCE(input_file_key, ''), output_data,
		       COALESCE(error_code, ''), COALESCE(error_message, ''),
		       created_at, updated_at
		FROM processing_tasks
		WHERE id = $1`, taskID)

	var task Task
	var outputRaw []byte
	err := row.Scan(&task.ID, &task.Status, &task.InputFileKey, &outputRaw,
		&task.ErrorCode, &task.ErrorMessage, &task.CreatedAt, &task.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch task %s: %w", taskID, err)
	}

	if len(outputRaw) > 0 {
		if err := json.Unmarshal(outputRaw, &task.OutputData); err != nil {
			return nil, fmt.Errorf("corrupt output data for task %s: %w", taskID, err)
		}
	}
	return &task, nil
}

// Stats reports task counts by status for health logging.
func (c *PostgresClient) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM processing_tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query task stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
