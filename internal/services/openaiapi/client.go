// Package openaiapi adapts the OpenAI API to the transcription and embedding
// capabilities.
package openaiapi

import (
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"debatelens/internal/services"
)

// Default model names.
const (
	DefaultTranscriptionModel = "whisper-1"
	DefaultEmbeddingModel     = "text-embedding-3-small"
)

// Config holds client settings shared by both capabilities.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Language is passed to transcription requests when set.
	Language string
	// MaxRetries caps request retries; zero disables them.
	MaxRetries int
}

func newClient(stage string, cfg Config) (openai.Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return openai.Client{}, services.Wrap(services.ErrConfiguration, stage, "openai", "api key required (set OPENAI_API_KEY)", nil)
	}
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	return openai.NewClient(opts...), nil
}
