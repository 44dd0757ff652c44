package whisperx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"debatelens/internal/debate"
	"debatelens/internal/services"
	"debatelens/internal/textutil"
)

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg Config
	run services.CommandRunner
}

// NewService creates a WhisperX service. A nil runner uses services.ExecRunner.
func NewService(cfg Config, run services.CommandRunner) *Service {
	if run == nil {
		run = services.ExecRunner
	}
	return &Service{cfg: cfg, run: run}
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// Transcribe runs WhisperX on the chunk audio and returns chunk-relative segments.
func (s *Service) Transcribe(ctx context.Context, chunk debate.Chunk) ([]debate.TranscriptSegment, error) {
	if strings.TrimSpace(chunk.Path) == "" {
		return nil, services.Wrap(services.ErrMissingInput, "transcribe", "whisperx", chunk.Name()+" has no audio path", nil)
	}
	if _, err := os.Stat(chunk.Path); err != nil {
		return nil, services.Wrap(services.ErrMissingInput, "transcribe", "whisperx", chunk.Name(), err)
	}

	outputDir := filepath.Join(filepath.Dir(chunk.Path), ".whisperx")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("whisperx: ensure output dir: %w", err)
	}

	cmd := services.Command{Name: UVXCommand, Args: s.buildArgs(chunk.Path, outputDir)}
	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = []string{"TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1"}
	}
	if _, err := s.run(ctx, cmd); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrExternalTool, "transcribe", "whisperx", chunk.Name(), err)
	}

	baseName := strings.TrimSuffix(filepath.Base(chunk.Path), filepath.Ext(chunk.Path))
	raw, err := LoadSegments(filepath.Join(outputDir, baseName+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrMalformed, "transcribe", "whisperx", chunk.Name()+" produced no json output", err)
		}
		return nil, services.Wrap(services.ErrMalformed, "transcribe", "whisperx", chunk.Name(), err)
	}
	return ToTranscript(raw, chunk.Length), nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 32)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
		"--vad_method", VADMethod,
	)

	if lang := strings.TrimSpace(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}

	return args
}

// Word represents a single aligned word from WhisperX output.
type Word struct {
	Word  string   `json:"word"`
	Start float64  `json:"start"`
	End   float64  `json:"end"`
	Score *float64 `json:"score"`
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words"`
}

type whisperXPayload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload.Segments, nil
}

// ToTranscript converts WhisperX segments to chunk-relative transcript
// segments, dropping blank text and clamping times to [0, length].
func ToTranscript(segments []Segment, length float64) []debate.TranscriptSegment {
	out := make([]debate.TranscriptSegment, 0, len(segments))
	for _, seg := range segments {
		text := textutil.CollapseSpace(seg.Text)
		if text == "" {
			continue
		}
		start := clamp(seg.Start, 0, length)
		end := clamp(seg.End, start, length)
		out = append(out, debate.TranscriptSegment{
			Start:      start,
			End:        end,
			Text:       text,
			Confidence: meanWordScore(seg.Words),
		})
	}
	return out
}

func meanWordScore(words []Word) float64 {
	total := 0.0
	count := 0
	for _, word := range words {
		if word.Score == nil {
			continue
		}
		total += *word.Score
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func clamp(value, lo, hi float64) float64 {
	if hi > 0 && value > hi {
		value = hi
	}
	if value < lo {
		value = lo
	}
	return value
}
