package openaiapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"debatelens/internal/services"
)

// Embedder implements stance.Embedder with the OpenAI embeddings endpoint.
type Embedder struct {
	client openai.Client
	model  string
}

// NewEmbedder validates cfg and builds an Embedder.
func NewEmbedder(cfg Config) (*Embedder, error) {
	client, err := newClient("stance", cfg)
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{client: client, model: model}, nil
}

// Model reports the embedding model name.
func (e *Embedder) Model() string {
	return e.model
}

// Embed sends all texts in one request and orders results by index.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, services.Wrap(services.ErrMalformed, "stance", "openai", fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Data)), nil)
	}
	out := make([][]float64, len(texts))
	for _, item := range resp.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(out) || out[idx] != nil {
			return nil, services.Wrap(services.ErrMalformed, "stance", "openai", fmt.Sprintf("unexpected embedding index %d", idx), nil)
		}
		out[idx] = item.Embedding
	}
	return out, nil
}
