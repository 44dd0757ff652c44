package pyannote

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"debatelens/internal/debate"
	"debatelens/internal/rttm"
	"debatelens/internal/services"
)

// Defaults for the diarization run.
const (
	DefaultModel = "pyannote/speaker-diarization-3.1"
	UVXCommand   = "uvx"
	CUDAIndexURL = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL = "https://pypi.org/simple"
)

// diarizeScript loads audio with torchaudio to avoid torchcodec decoding
// problems, runs the pipeline and writes RTTM to stdout.
const diarizeScript = `#!/usr/bin/env python3
import argparse
import os
import sys
import warnings

warnings.filterwarnings("ignore")

import torch
import torchaudio
from pyannote.audio import Pipeline


def load_audio(path, sample_rate=16000):
    waveform, sr = torchaudio.load(path)
    if sr != sample_rate:
        waveform = torchaudio.transforms.Resample(sr, sample_rate)(waveform)
    if waveform.shape[0] > 1:
        waveform = waveform.mean(dim=0, keepdim=True)
    return {"waveform": waveform, "sample_rate": sample_rate}


def main():
    parser = argparse.ArgumentParser()
    parser.add_argument("audio")
    parser.add_argument("--model", required=True)
    parser.add_argument("--name", default="recording")
    args = parser.parse_args()

    token = os.environ.get("HF_TOKEN")
    device = torch.device("cuda" if torch.cuda.is_available() else "cpu")
    pipeline = Pipeline.from_pretrained(args.model, token=token).to(device)
    result = pipeline(load_audio(args.audio))
    diarization = result.speaker_diarization if hasattr(result, "speaker_diarization") else result
    for turn, _, speaker in diarization.itertracks(yield_label=True):
        sys.stdout.write(
            f"SPEAKER {args.name} 1 {turn.start:.3f} {turn.duration:.3f} <NA> <NA> {speaker} <NA> <NA>\n"
        )


if __name__ == "__main__":
    main()
`

// Config holds diarization settings.
type Config struct {
	Model       string
	HFToken     string
	CUDAEnabled bool
	// ScriptDir receives the helper script; empty uses the system temp dir.
	ScriptDir string
}

// Service diarizes recordings with pyannote.audio.
type Service struct {
	cfg Config
	run services.CommandRunner
}

// NewService builds a Service. A nil runner uses services.ExecRunner.
func NewService(cfg Config, run services.CommandRunner) *Service {
	if run == nil {
		run = services.ExecRunner
	}
	return &Service{cfg: cfg, run: run}
}

// Model returns the pipeline name.
func (s *Service) Model() string {
	if model := strings.TrimSpace(s.cfg.Model); model != "" {
		return model
	}
	return DefaultModel
}

// Diarize runs the pipeline over the recording and returns speaker intervals
// ordered by start time.
func (s *Service) Diarize(ctx context.Context, rec debate.Recording) ([]debate.SpeakerInterval, error) {
	if _, err := os.Stat(rec.Path); err != nil {
		return nil, services.Wrap(services.ErrMissingInput, "diarize", "pyannote", filepath.Base(rec.Path), err)
	}
	token := strings.TrimSpace(s.cfg.HFToken)
	if token == "" {
		return nil, services.Wrap(services.ErrConfiguration, "diarize", "pyannote", "hugging face token required (set HF_TOKEN)", nil)
	}

	scriptDir, err := os.MkdirTemp(s.cfg.ScriptDir, "debatelens-diarize-")
	if err != nil {
		return nil, fmt.Errorf("pyannote: create script dir: %w", err)
	}
	defer os.RemoveAll(scriptDir)
	scriptPath := filepath.Join(scriptDir, "diarize.py")
	if err := os.WriteFile(scriptPath, []byte(diarizeScript), 0o644); err != nil {
		return nil, fmt.Errorf("pyannote: write script: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(rec.Path), filepath.Ext(rec.Path))
	cmd := services.Command{
		Name: UVXCommand,
		Args: s.buildArgs(scriptPath, rec.Path, name),
		Env:  []string{"HF_TOKEN=" + token},
	}
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(cmd.Env, "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	out, err := s.run(ctx, cmd)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrExternalTool, "diarize", "pyannote", hint(err), err)
	}
	turns, err := rttm.Parse(bytes.NewReader(out))
	if err != nil {
		return nil, services.Wrap(services.ErrMalformed, "diarize", "pyannote", "parse rttm output", err)
	}
	return debate.IntervalsFromTurns(turns), nil
}

func (s *Service) buildArgs(scriptPath, audioPath, name string) []string {
	// torchaudio and soundfile are the audio decoder fallback when torchcodec fails.
	args := []string{
		"--quiet",
		"--with", "pyannote.audio",
		"--with", "torchaudio",
		"--with", "soundfile",
	}
	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	}
	return append(args, "python", scriptPath, audioPath, "--model", s.Model(), "--name", name)
}

func hint(err error) string {
	msg := err.Error()
	if strings.Contains(msg, "GatedRepoError") || strings.Contains(msg, "401") {
		return "hugging face model access denied; accept the terms at https://hf.co/pyannote/speaker-diarization-3.1 and https://hf.co/pyannote/segmentation-3.0"
	}
	return "diarization failed"
}
