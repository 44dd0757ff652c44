// Package ollama embeds text through a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"debatelens/internal/services"
)

// Defaults for the embedding client.
const (
	DefaultURL     = "http://127.0.0.1:11434"
	DefaultModel   = "nomic-embed-text"
	DefaultTimeout = 2 * time.Minute
)

// Config holds the Ollama embedding settings.
type Config struct {
	URL     string
	Model   string
	Timeout time.Duration
}

// Embedder implements stance.Embedder on top of the Ollama embeddings API.
type Embedder struct {
	client *api.Client
	model  string
}

// New builds an Embedder for the configured server.
func New(cfg Config) (*Embedder, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		raw = DefaultURL
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "stance", "ollama", fmt.Sprintf("invalid url %q", raw), err)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Embedder{
		client: api.NewClient(base, &http.Client{Timeout: timeout}),
		model:  model,
	}, nil
}

// Model reports the embedding model name.
func (e *Embedder) Model() string {
	return e.model
}

// Embed requests one embedding per text, preserving order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for i, text := range texts {
		resp, err := e.client.Embeddings(ctx, &api.EmbeddingRequest{Model: e.model, Prompt: text})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("ollama embeddings (text %d): %w", i, err)
		}
		if len(resp.Embedding) == 0 {
			return nil, services.Wrap(services.ErrMalformed, "stance", "ollama", fmt.Sprintf("empty embedding for text %d", i), nil)
		}
		out = append(out, resp.Embedding)
	}
	return out, nil
}

// CheckModel confirms the server answers and has the embedding model pulled.
func (e *Embedder) CheckModel(ctx context.Context) error {
	resp, err := e.client.List(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrExternalTool, "stance", "ollama", "list models", err)
	}
	for _, m := range resp.Models {
		if m.Name == e.model || strings.TrimSuffix(m.Name, ":latest") == e.model {
			return nil
		}
	}
	return services.Wrap(services.ErrConfiguration, "stance", "ollama", fmt.Sprintf("model %q not pulled (run: ollama pull %s)", e.model, e.model), nil)
}
