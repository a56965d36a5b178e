/**
 * Embedding client for corrected document text.
 *
 * Calls the VoyageAI embeddings API. The worker only needs single-document
 * embeddings, generated once per completed task.
 */

package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/asepsafrudin/hybrid-ocr/internal/logging"
)

const (
	defaultEmbeddingURL   = "https://api.voyageai.com/v1/embeddings"
	defaultEmbeddingModel = "voyage-3"
	// maxEmbeddingChars keeps requests under the API token limit.
	maxEmbeddingChars = 16000
)

// EmbeddingClient generates document embeddings over HTTP.
type EmbeddingClient struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
	log        *logging.Logger
}

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func NewEmbeddingClient(apiKey string, dimensions int, logger *logging.Logger) (*EmbeddingClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive")
	}
	if logger == nil {
		logger = logging.New("embeddings")
	}
	return &EmbeddingClient{
		apiKey:     apiKey,
		baseURL:    defaultEmbeddingURL,
		model:      defaultEmbeddingModel,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logger,
	}, nil
}

// GenerateEmbedding embeds the text, truncating overlong documents.
func (e *EmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	if len(text) > maxEmbeddingChars {
		e.log.Warn("truncating text for embedding", logging.Fields{
			"chars": len(text), "limit": maxEmbeddingChars,
		})
		text = text[:maxEmbeddingChars]
	}

	body, err := json.Marshal(embeddingRequest{Input: text, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, raw)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("no embedding data in response")
	}

	embedding := parsed.Data[0].Embedding
	if len(embedding) != e.dimensions {
		return nil, fmt.Errorf("unexpected embedding dimensions: got %d, expected %d", len(embedding), e.dimensions)
	}
	return embedding, nil
}
