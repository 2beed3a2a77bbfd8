package openai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
)

// Embedder calls the /embeddings endpoint with one input per request.
type Embedder struct {
	client
}

var _ ports.Embedder = (*Embedder)(nil)

func NewEmbedder(httpClient *http.Client, baseURL, apiKey, model string) *Embedder {
	return &Embedder{client: newClient(httpClient, baseURL, apiKey, model, "openai")}
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embeddingResponse
	if err := e.postJSON(ctx, "/embeddings", embeddingRequest{Model: e.model, Input: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai adapter: empty embedding: %w", domain.ErrMalformedResponse)
	}
	return resp.Data[0].Embedding, nil
}
