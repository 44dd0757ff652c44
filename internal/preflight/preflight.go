package preflight

import (
	"context"

	"debatelens/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks that apply to the configured backends.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Work root", cfg.Paths.WorkRoot),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	if cfg.Transcription.Backend == config.BackendOpenAI {
		results = append(results, CheckCredential("OpenAI transcription key", cfg.Transcription.OpenAIAPIKey, "OPENAI_API_KEY"))
	}
	if cfg.Diarization.Backend == config.BackendPyannote {
		results = append(results, CheckCredential("Hugging Face token", cfg.Diarization.HFToken, "HF_TOKEN"))
	}

	switch cfg.Stance.Backend {
	case config.BackendOllama:
		results = append(results, CheckOllama(ctx, cfg.Stance.OllamaURL, cfg.Stance.Model))
	case config.BackendOpenAI:
		results = append(results, CheckCredential("OpenAI embedding key", cfg.Stance.OpenAIAPIKey, "OPENAI_API_KEY"))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
