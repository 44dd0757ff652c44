package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSegmenter(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateDiarization(); err != nil {
		return err
	}
	if err := c.validateStance(); err != nil {
		return err
	}
	if err := c.validateAggregation(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSegmenter() error {
	if c.Segmenter.ChunkSeconds <= 0 {
		return errors.New("segmenter.chunk_seconds must be positive")
	}
	if c.Segmenter.OverlapSeconds < 0 {
		return errors.New("segmenter.overlap_seconds must be non-negative")
	}
	if c.Segmenter.OverlapSeconds >= c.Segmenter.ChunkSeconds {
		return fmt.Errorf("segmenter.overlap_seconds (%g) must be less than segmenter.chunk_seconds (%g)", c.Segmenter.OverlapSeconds, c.Segmenter.ChunkSeconds)
	}
	if c.Segmenter.SampleRate <= 0 {
		return errors.New("segmenter.sample_rate must be positive")
	}
	return nil
}

func (c *Config) validateDownload() error {
	if c.Download.TimeoutSeconds <= 0 {
		return errors.New("download.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Backend {
	case BackendWhisperX:
	case BackendOpenAI:
		if c.Transcription.OpenAIAPIKey == "" {
			return missingKeyError("transcription.openai_api_key", "OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("transcription.backend %q is not supported (use %q or %q)", c.Transcription.Backend, BackendWhisperX, BackendOpenAI)
	}
	return nil
}

func (c *Config) validateDiarization() error {
	switch c.Diarization.Backend {
	case BackendPyannote, BackendNone:
		return nil
	default:
		return fmt.Errorf("diarization.backend %q is not supported (use %q or %q)", c.Diarization.Backend, BackendPyannote, BackendNone)
	}
}

func (c *Config) validateStance() error {
	switch c.Stance.Backend {
	case BackendOllama:
		if c.Stance.OllamaURL == "" {
			return errors.New("stance.ollama_url must be set when stance.backend is ollama")
		}
	case BackendOpenAI:
		if c.Stance.OpenAIAPIKey == "" {
			return missingKeyError("stance.openai_api_key", "OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("stance.backend %q is not supported (use %q or %q)", c.Stance.Backend, BackendOllama, BackendOpenAI)
	}
	if len(c.Stance.References) < 2 {
		return errors.New("stance.references must define at least two categories")
	}
	for _, category := range sortedKeys(c.Stance.References) {
		if len(c.Stance.References[category]) == 0 {
			return fmt.Errorf("stance.references.%s must list at least one statement", category)
		}
	}
	return nil
}

func (c *Config) validateAggregation() error {
	if c.Aggregation.MinOverlapFraction < 0 || c.Aggregation.MinOverlapFraction >= 1 {
		return errors.New("aggregation.min_overlap_fraction must be in [0, 1)")
	}
	switch c.Aggregation.SpeakerPolicy {
	case SpeakerPolicyMajority, SpeakerPolicyFirst:
	default:
		return fmt.Errorf("aggregation.speaker_policy %q is not supported (use %q or %q)", c.Aggregation.SpeakerPolicy, SpeakerPolicyMajority, SpeakerPolicyFirst)
	}
	switch c.Aggregation.Dedup {
	case DedupConfidence, DedupNone:
	default:
		return fmt.Errorf("aggregation.dedup %q is not supported (use %q or %q)", c.Aggregation.Dedup, DedupConfidence, DedupNone)
	}
	if strings.ContainsAny(c.Aggregation.OutputName, `/\`) {
		return errors.New("aggregation.output_name must be a file name, not a path")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	return nil
}

func missingKeyError(field, env string) error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("%s is required. Set %s env var or edit %s (create with 'debatelens config init')", field, env, defaultPath)
}
