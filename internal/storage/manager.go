/**
 * Storage manager: coordinates task rows and document vectors.
 *
 * The task row in postgres is the source of truth; the vector store is a
 * secondary index. Vector failures degrade to a warning, and a vector
 * written ahead of a failed task update is rolled back.
 */

package storage

import (
	"context"
	"fmt"

	"github.com/asepsafrudin/hybrid-ocr/internal/logging"
)

// Manager fronts both storage backends for the processor and queue.
type Manager struct {
	postgres *PostgresClient
	qdrant   *QdrantClient
	log      *logging.Logger
}

// ProcessedDocument is everything the manager persists for a completed task.
type ProcessedDocument struct {
	TaskID       string
	DocumentType string
	OutputData   map[string]interface{}
	Embedding    []float32
	TextLength   int
	Pages        int
}

// NewManager requires postgres; qdrant is optional and may be nil when no
// vector store is configured.
func NewManager(postgres *PostgresClient, qdrant *QdrantClient, logger *logging.Logger) (*Manager, error) {
	if postgres == nil {
		return nil, fmt.Errorf("postgres client is required")
	}
	if logger == nil {
		logger = logging.New("storage")
	}
	return &Manager{postgres: postgres, qdrant: qdrant, log: logger}, nil
}

// UpdateTaskStatus forwards a plain status transition.
func (m *Manager) UpdateTaskStatus(ctx context.Context, taskID, status string, errorCode, errorMessage string) error {
	return m.postgres.UpdateTaskStatus(ctx, taskID, status, nil, errorCode, errorMessage)
}

// StoreProcessedDocument persists the completed result. The embedding is
// written first so it can be rolled back if the task update fails; a
// missing or failing vector store never fails the task.
func (m *Manager) StoreProcessedDocument(ctx context.Context, doc *ProcessedDocument) error {
	if doc == nil || doc.TaskID == "" {
		return fmt.Errorf("document with task id is required")
	}

	vectorStored := false
	if m.qdrant != nil && len(doc.Embedding) > 0 {
		err := m.qdrant.UpsertDocument(ctx, &DocumentVector{
			TaskID:       doc.TaskID,
			Vector:       doc.Embedding,
			DocumentType: doc.DocumentType,
			TextLength:   doc.TextLength,
			Pages:        doc.Pages,
		})
		if err != nil {
			m.log.Warn("vector upsert failed, continuing without embedding", logging.Fields{
				"task_id": doc.TaskID, "error": err,
			})
		} else {
			vectorStored = true
		}
	}

	if err := m.postgres.UpdateTaskStatus(ctx, doc.TaskID, StatusCompleted, doc.OutputData, "", ""); err != nil {
		if vectorStored {
			if delErr := m.qdrant.DeleteDocument(ctx, doc.TaskID); delErr != nil {
				m.log.Error("vector rollback failed", logging.Fields{
					"task_id": doc.TaskID, "error": delErr,
				})
			}
		}
		return fmt.Errorf("failed to store task result: %w", err)
	}
	return nil
}

// GetTask exposes task lookup for the queue consumers.
func (m *Manager) GetTask(ctx context.Context, taskID string) (*Task, error) {
	return m.postgres.GetTask(ctx, taskID)
}

// Health pings both backends, reporting per-backend status.
func (m *Manager) Health(ctx context.Context) map[string]string {
	health := make(map[string]string, 2)
	if err := m.postgres.Ping(ctx); err != nil {
		health["postgres"] = err.Error()
	} else {
		health["postgres"] = "ok"
	}
	if m.qdrant == nil {
		health["qdrant"] = "disabled"
	} else {
		health["qdrant"] = "ok"
	}
	return health
}

// Close releases both backends.
func (m *Manager) Close() {
	if err := m.postgres.Close(); err != nil {
		m.log.Warn("failed to close postgres", logging.Fields{"error": err})
	}
	if m.qdrant != nil {
		if err := m.qdrant.Close(); err != nil {
			m.log.Warn("failed to close qdrant", logging.Fields{"error": err})
		}
	}
}
