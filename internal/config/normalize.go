package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSegmenter(); err != nil {
		return err
	}
	c.normalizeDownload()
	c.normalizeTranscription()
	c.normalizeDiarization()
	c.normalizeStance()
	c.normalizeAggregation()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkRoot) == "" {
		c.Paths.WorkRoot = defaultWorkRoot
	}
	if c.Paths.WorkRoot, err = expandPath(c.Paths.WorkRoot); err != nil {
		return fmt.Errorf("paths.work_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSegmenter() error {
	if value, ok := lookupTrimmed("DEBATELENS_CHUNK_SECONDS"); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("DEBATELENS_CHUNK_SECONDS: invalid number %q", value)
		}
		c.Segmenter.ChunkSeconds = parsed
	}
	if value, ok := lookupTrimmed("DEBATELENS_OVERLAP_SECONDS"); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("DEBATELENS_OVERLAP_SECONDS: invalid number %q", value)
		}
		c.Segmenter.OverlapSeconds = parsed
	}
	c.Segmenter.FFmpegBinary = strings.TrimSpace(c.Segmenter.FFmpegBinary)
	if c.Segmenter.FFmpegBinary == "" {
		c.Segmenter.FFmpegBinary = defaultFFmpegBinary
	}
	c.Segmenter.FFprobeBinary = strings.TrimSpace(c.Segmenter.FFprobeBinary)
	if c.Segmenter.FFprobeBinary == "" {
		c.Segmenter.FFprobeBinary = defaultFFprobeBinary
	}
	return nil
}

func (c *Config) normalizeDownload() {
	c.Download.Binary = strings.TrimSpace(c.Download.Binary)
	if c.Download.Binary == "" {
		c.Download.Binary = defaultDownloadBinary
	}
}

func (c *Config) normalizeTranscription() {
	if value, ok := lookupTrimmed("DEBATELENS_TRANSCRIBE_BACKEND"); ok {
		c.Transcription.Backend = value
	}
	if value, ok := lookupTrimmed("DEBATELENS_TRANSCRIBE_MODEL"); ok {
		c.Transcription.Model = value
	}
	c.Transcription.Backend = strings.ToLower(strings.TrimSpace(c.Transcription.Backend))
	if c.Transcription.Backend == "" {
		c.Transcription.Backend = BackendWhisperX
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		if c.Transcription.Backend == BackendOpenAI {
			c.Transcription.Model = defaultOpenAITranscribeModel
		} else {
			c.Transcription.Model = defaultTranscriptionModel
		}
	}
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
	if c.Transcription.Concurrency <= 0 {
		c.Transcription.Concurrency = 1
	}
	c.Transcription.OpenAIAPIKey = strings.TrimSpace(c.Transcription.OpenAIAPIKey)
	if c.Transcription.OpenAIAPIKey == "" {
		if value, ok := lookupTrimmed("OPENAI_API_KEY"); ok {
			c.Transcription.OpenAIAPIKey = value
		}
	}
	c.Transcription.OpenAIBaseURL = strings.TrimSpace(c.Transcription.OpenAIBaseURL)
}

func (c *Config) normalizeDiarization() {
	if value, ok := lookupTrimmed("DEBATELENS_DIARIZE_MODEL"); ok {
		c.Diarization.Model = value
	}
	c.Diarization.Backend = strings.ToLower(strings.TrimSpace(c.Diarization.Backend))
	if c.Diarization.Backend == "" {
		c.Diarization.Backend = BackendPyannote
	}
	c.Diarization.Model = strings.TrimSpace(c.Diarization.Model)
	if c.Diarization.Model == "" {
		c.Diarization.Model = defaultDiarizationModel
	}
	c.Diarization.HFToken = strings.TrimSpace(c.Diarization.HFToken)
	if c.Diarization.HFToken == "" {
		if value, ok := lookupTrimmed("HUGGING_FACE_HUB_TOKEN"); ok {
			c.Diarization.HFToken = value
		} else if value, ok := lookupTrimmed("HF_TOKEN"); ok {
			c.Diarization.HFToken = value
		}
	}
}

func (c *Config) normalizeStance() {
	if value, ok := lookupTrimmed("DEBATELENS_STANCE_BACKEND"); ok {
		c.Stance.Backend = value
	}
	if value, ok := lookupTrimmed("DEBATELENS_STANCE_MODEL"); ok {
		c.Stance.Model = value
	}
	c.Stance.Backend = strings.ToLower(strings.TrimSpace(c.Stance.Backend))
	if c.Stance.Backend == "" {
		c.Stance.Backend = BackendOllama
	}
	c.Stance.Model = strings.TrimSpace(c.Stance.Model)
	if c.Stance.Model == "" || (c.Stance.Backend == BackendOpenAI && c.Stance.Model == defaultOllamaEmbeddingModel) {
		if c.Stance.Backend == BackendOpenAI {
			c.Stance.Model = defaultOpenAIEmbeddingModel
		} else {
			c.Stance.Model = defaultOllamaEmbeddingModel
		}
	}
	if value, ok := lookupTrimmed("OLLAMA_HOST"); ok {
		if !strings.Contains(value, "://") {
			value = "http://" + value
		}
		c.Stance.OllamaURL = value
	}
	c.Stance.OllamaURL = strings.TrimRight(strings.TrimSpace(c.Stance.OllamaURL), "/")
	if c.Stance.OllamaURL == "" {
		c.Stance.OllamaURL = defaultOllamaURL
	}
	c.Stance.OpenAIAPIKey = strings.TrimSpace(c.Stance.OpenAIAPIKey)
	if c.Stance.OpenAIAPIKey == "" {
		if value, ok := lookupTrimmed("OPENAI_API_KEY"); ok {
			c.Stance.OpenAIAPIKey = value
		}
	}
	c.Stance.OpenAIBaseURL = strings.TrimSpace(c.Stance.OpenAIBaseURL)
	if c.Stance.Concurrency <= 0 {
		c.Stance.Concurrency = 1
	}

	if len(c.Stance.References) == 0 {
		c.Stance.References = DefaultStanceReferences()
		return
	}
	cleaned := make(map[string][]string, len(c.Stance.References))
	for category, statements := range c.Stance.References {
		name := strings.ToLower(strings.TrimSpace(category))
		if name == "" {
			continue
		}
		for _, statement := range statements {
			if trimmed := strings.TrimSpace(statement); trimmed != "" {
				cleaned[name] = append(cleaned[name], trimmed)
			}
		}
		if _, ok := cleaned[name]; !ok {
			cleaned[name] = nil
		}
	}
	c.Stance.References = cleaned
}

func (c *Config) normalizeAggregation() {
	c.Aggregation.SpeakerPolicy = strings.ToLower(strings.TrimSpace(c.Aggregation.SpeakerPolicy))
	if c.Aggregation.SpeakerPolicy == "" {
		c.Aggregation.SpeakerPolicy = SpeakerPolicyMajority
	}
	c.Aggregation.Dedup = strings.ToLower(strings.TrimSpace(c.Aggregation.Dedup))
	if c.Aggregation.Dedup == "" {
		c.Aggregation.Dedup = DedupConfidence
	}
	c.Aggregation.OutputName = strings.TrimSpace(c.Aggregation.OutputName)
	if c.Aggregation.OutputName == "" {
		c.Aggregation.OutputName = defaultOutputName
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}
