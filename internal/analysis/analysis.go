// Package analysis defines the model capabilities the pipeline depends on and
// builds the configured backends for them.
package analysis

import (
	"context"
	"fmt"
	"time"

	"debatelens/internal/config"
	"debatelens/internal/debate"
	"debatelens/internal/services"
	"debatelens/internal/services/ollama"
	"debatelens/internal/services/openaiapi"
	"debatelens/internal/services/pyannote"
	"debatelens/internal/services/whisperx"
	"debatelens/internal/stance"
)

// Transcriber turns one chunk into chunk-relative transcript segments.
type Transcriber interface {
	Transcribe(ctx context.Context, chunk debate.Chunk) ([]debate.TranscriptSegment, error)
}

// Diarizer labels speaker turns over a whole recording.
type Diarizer interface {
	Diarize(ctx context.Context, rec debate.Recording) ([]debate.SpeakerInterval, error)
}

// Classifier scores text against the stance categories.
type Classifier interface {
	Classify(ctx context.Context, text string) (debate.StanceScore, error)
	Categories() []string
}

// Models groups every capability.
type Models interface {
	Transcriber
	Diarizer
	Classifier
}

// Bundle holds the configured backends and the model names recorded in artifacts.
type Bundle struct {
	Transcriber Transcriber
	Diarizer    Diarizer
	Classifier  Classifier

	TranscriptionModel string
	DiarizationModel   string
	StanceModel        string
}

// Transcribe delegates to the transcription backend.
func (b *Bundle) Transcribe(ctx context.Context, chunk debate.Chunk) ([]debate.TranscriptSegment, error) {
	return b.Transcriber.Transcribe(ctx, chunk)
}

// Diarize delegates to the diarization backend.
func (b *Bundle) Diarize(ctx context.Context, rec debate.Recording) ([]debate.SpeakerInterval, error) {
	return b.Diarizer.Diarize(ctx, rec)
}

// Classify delegates to the stance classifier.
func (b *Bundle) Classify(ctx context.Context, text string) (debate.StanceScore, error) {
	return b.Classifier.Classify(ctx, text)
}

// Categories lists the stance categories in sorted order.
func (b *Bundle) Categories() []string {
	return b.Classifier.Categories()
}

var _ Models = (*Bundle)(nil)

// NoDiarizer reports no speakers for any recording.
type NoDiarizer struct{}

// Diarize returns no intervals.
func (NoDiarizer) Diarize(context.Context, debate.Recording) ([]debate.SpeakerInterval, error) {
	return nil, nil
}

// New builds a Bundle from configuration. A nil runner executes real commands.
func New(cfg *config.Config, run services.CommandRunner) (*Bundle, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "analysis", "new", "config required", nil)
	}
	transcriber, err := newTranscriber(cfg, run)
	if err != nil {
		return nil, err
	}
	diarizer, diarizationModel, err := newDiarizer(cfg, run)
	if err != nil {
		return nil, err
	}
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	classifier, err := stance.NewClassifier(embedder, cfg.Stance.References)
	if err != nil {
		return nil, err
	}
	return &Bundle{
		Transcriber:        transcriber,
		Diarizer:           diarizer,
		Classifier:         classifier,
		TranscriptionModel: cfg.Transcription.Model,
		DiarizationModel:   diarizationModel,
		StanceModel:        cfg.Stance.Model,
	}, nil
}

func newTranscriber(cfg *config.Config, run services.CommandRunner) (Transcriber, error) {
	t := cfg.Transcription
	switch t.Backend {
	case config.BackendWhisperX:
		return whisperx.NewService(whisperx.Config{
			Model:       t.Model,
			Language:    t.Language,
			CUDAEnabled: t.CUDAEnabled,
		}, run), nil
	case config.BackendOpenAI:
		return openaiapi.NewTranscriber(openaiapi.Config{
			APIKey:     t.OpenAIAPIKey,
			BaseURL:    t.OpenAIBaseURL,
			Model:      t.Model,
			Language:   t.Language,
			MaxRetries: 2,
		})
	default:
		return nil, unknownBackend("transcription", t.Backend)
	}
}

func newDiarizer(cfg *config.Config, run services.CommandRunner) (Diarizer, string, error) {
	d := cfg.Diarization
	switch d.Backend {
	case config.BackendPyannote:
		return pyannote.NewService(pyannote.Config{
			Model:       d.Model,
			HFToken:     d.HFToken,
			CUDAEnabled: d.CUDAEnabled,
		}, run), d.Model, nil
	case config.BackendNone:
		return NoDiarizer{}, config.BackendNone, nil
	default:
		return nil, "", unknownBackend("diarization", d.Backend)
	}
}

func newEmbedder(cfg *config.Config) (stance.Embedder, error) {
	s := cfg.Stance
	switch s.Backend {
	case config.BackendOllama:
		return ollama.New(ollama.Config{URL: s.OllamaURL, Model: s.Model, Timeout: 2 * time.Minute})
	case config.BackendOpenAI:
		return openaiapi.NewEmbedder(openaiapi.Config{
			APIKey:     s.OpenAIAPIKey,
			BaseURL:    s.OpenAIBaseURL,
			Model:      s.Model,
			MaxRetries: 2,
		})
	default:
		return nil, unknownBackend("stance", s.Backend)
	}
}

func unknownBackend(section, name string) error {
	return services.Wrap(services.ErrConfiguration, "analysis", section, fmt.Sprintf("unknown backend %q", name), nil)
}
