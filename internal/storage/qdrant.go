/**
 * Qdrant vector storage for corrected document embeddings.
 *
 * Each completed task upserts one point keyed by the task id, so similar
 * documents can be retrieved for review tooling. Uses the native gRPC API.
 */

package storage

import (
	"context"
	"fmt"

	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/asepsafrudin/hybrid-ocr/internal/logging"
)

// QdrantClient wraps the points and collections services for one collection.
type QdrantClient struct {
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
	conn        *grpc.ClientConn
	collection  string
	dimensions  int
	log         *logging.Logger
}

// DocumentVector is one embedded document ready for upsert.
type DocumentVector struct {
	TaskID       string
	Vector       []float32
	DocumentType string
	TextLength   int
	Pages        int
}

func NewQdrantClient(address, collection string, dimensions int, logger *logging.Logger) (*QdrantClient, error) {
	if address == "" {
		return nil, fmt.Errorf("qdrant address is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("vector dimensions must be positive")
	}
	if logger == nil {
		logger = logging.New("qdrant")
	}

	conn, err := grpc.Dial(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	c := &QdrantClient{
		points:      qdrant.NewPointsClient(conn),
		collections: qdrant.NewCollectionsClient(conn),
		conn:        conn,
		collection:  collection,
		dimensions:  dimensions,
		log:         logger,
	}

	if err := c.ensureCollection(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}
	return c, nil
}

func (c *QdrantClient) ensureCollection(ctx context.Context) error {
	listResp, err := c.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, col := range listResp.Collections {
		if col.Name == c.collection {
			return nil
		}
	}

	_, err = c.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: c.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(c.dimensions),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", c.collection, err)
	}

	c.log.Info("created qdrant collection", logging.Fields{
		"collection": c.collection, "dimensions": c.dimensions,
	})
	return nil
}

// UpsertDocument stores the document embedding keyed by its task id.
func (c *QdrantClient) UpsertDocument(ctx context.Context, doc *DocumentVector) error {
	if doc == nil || doc.TaskID == "" {
		return fmt.Errorf("document with task id is required")
	}
	if len(doc.Vector) != c.dimensions {
		return fmt.Errorf("invalid vector dimensions: expected %d, got %d", c.dimensions, len(doc.Vector))
	}

	payload := map[string]*qdrant.Value{
		"task_id":       {Kind: &qdrant.Value_StringValue{StringValue: doc.TaskID}},
		"document_type": {Kind: &qdrant.Value_StringValue{StringValue: doc.DocumentType}},
		"text_length":   {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(doc.TextLength)}},
		"pages":         {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(doc.Pages)}},
	}

	_, err := c.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collection,
		Points: []*qdrant.PointStruct{{
			Id: &qdrant.PointId{
				PointIdOptions: &qdrant.PointId_Uuid{Uuid: doc.TaskID},
			},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{
					Vector: &qdrant.Vector{Data: doc.Vector},
				},
			},
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert document vector: %w", err)
	}
	return nil
}

// SearchSimilar finds the closest stored documents for a query embedding.
func (c *QdrantClient) SearchSimilar(ctx context.Context, queryVector []float32, limit int) ([]map[string]interface{}, error) {
	if len(queryVector) != c.dimensions {
		return nil, fmt.Errorf("invalid query vector dimensions: expected %d, got %d", c.dimensions, len(queryVector))
	}
	if limit <= 0 {
		limit = 10
	}

	results, err := c.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: c.collection,
		Vector:         queryVector,
		Limit:          uint64(limit),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}

	out := make([]map[string]interface{}, 0, len(results.Result))
	for _, result := range results.Result {
		entry := map[string]interface{}{"score": result.Score}
		if result.Id != nil {
			entry["id"] = result.Id.GetUuid()
		}
		for k, v := range result.Payload {
			switch val := v.Kind.(type) {
			case *qdrant.Value_StringValue:
				entry[k] = val.StringValue
			case *qdrant.Value_IntegerValue:
				entry[k] = val.IntegerValue
			case *qdrant.Value_DoubleValue:
				entry[k] = val.DoubleValue
			case *qdrant.Value_BoolValue:
				entry[k] = val.BoolValue
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// DeleteDocument removes a stored embedding, used to roll back when the
// task row cannot be written after the vector landed.
func (c *QdrantClient) DeleteDocument(ctx context.Context, taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task id is required")
	}

	_, err := c.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: c.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{{
						PointIdOptions: &qdrant.PointId_Uuid{Uuid: taskID},
					}},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete document vector: %w", err)
	}
	return nil
}

func (c *QdrantClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
