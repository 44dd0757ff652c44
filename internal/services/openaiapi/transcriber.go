package openaiapi

import (
	"context"
	"math"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/tidwall/gjson"

	"debatelens/internal/debate"
	"debatelens/internal/services"
	"debatelens/internal/textutil"
)

// Transcriber sends chunk audio to the OpenAI transcription endpoint.
type Transcriber struct {
	client   openai.Client
	model    string
	language string
}

// NewTranscriber validates cfg and builds a Transcriber.
func NewTranscriber(cfg Config) (*Transcriber, error) {
	client, err := newClient("transcribe", cfg)
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultTranscriptionModel
	}
	return &Transcriber{client: client, model: model, language: strings.TrimSpace(cfg.Language)}, nil
}

// Model reports the transcription model name.
func (t *Transcriber) Model() string {
	return t.model
}

// Transcribe uploads the chunk and returns chunk-relative segments.
func (t *Transcriber) Transcribe(ctx context.Context, chunk debate.Chunk) ([]debate.TranscriptSegment, error) {
	file, err := os.Open(chunk.Path)
	if err != nil {
		return nil, services.Wrap(services.ErrMissingInput, "transcribe", "openai", chunk.Name(), err)
	}
	defer file.Close()

	params := openai.AudioTranscriptionNewParams{
		File:           file,
		Model:          openai.AudioModel(t.model),
		ResponseFormat: openai.AudioResponseFormatVerboseJSON,
	}
	if t.language != "" {
		params.Language = openai.String(t.language)
	}
	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrExternalTool, "transcribe", "openai", chunk.Name(), err)
	}
	return ParseVerbose(resp.RawJSON(), chunk.Length)
}

// ParseVerbose converts a verbose_json transcription body into segments.
// Bodies without a segments array become one segment spanning the chunk.
func ParseVerbose(raw string, length float64) ([]debate.TranscriptSegment, error) {
	if !gjson.Valid(raw) {
		return nil, services.Wrap(services.ErrMalformed, "transcribe", "openai", "response is not json", nil)
	}
	body := gjson.Parse(raw)
	segments := body.Get("segments")
	if !segments.IsArray() || len(segments.Array()) == 0 {
		text := textutil.CollapseSpace(body.Get("text").String())
		if text == "" {
			return nil, nil
		}
		return []debate.TranscriptSegment{{Start: 0, End: length, Text: text}}, nil
	}

	out := make([]debate.TranscriptSegment, 0, len(segments.Array()))
	segments.ForEach(func(_, seg gjson.Result) bool {
		text := textutil.CollapseSpace(seg.Get("text").String())
		if text == "" {
			return true
		}
		start := math.Max(0, seg.Get("start").Float())
		end := math.Max(start, seg.Get("end").Float())
		if length > 0 {
			start = math.Min(start, length)
			end = math.Min(end, length)
		}
		confidence := 0.0
		if lp := seg.Get("avg_logprob"); lp.Exists() {
			confidence = math.Min(1, math.Exp(lp.Float()))
		}
		out = append(out, debate.TranscriptSegment{Start: start, End: end, Text: text, Confidence: confidence})
		return true
	})
	return out, nil
}
