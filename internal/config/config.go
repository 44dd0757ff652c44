package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// WorkRoot holds one working directory per run when no --dir is given.
	WorkRoot string `toml:"work_root"`
	// StateDir holds the run ledger database.
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Segmenter contains chunking parameters and the audio tools used to cut chunks.
type Segmenter struct {
	ChunkSeconds   float64 `toml:"chunk_seconds"`
	OverlapSeconds float64 `toml:"overlap_seconds"`
	SampleRate     int     `toml:"sample_rate"`
	FFmpegBinary   string  `toml:"ffmpeg_binary"`
	FFprobeBinary  string  `toml:"ffprobe_binary"`
}

// Download contains settings for resolving video URLs to audio.
type Download struct {
	Binary         string `toml:"binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Transcription selects and configures the speech-to-text backend.
type Transcription struct {
	Backend       string `toml:"backend"`
	Model         string `toml:"model"`
	Language      string `toml:"language"`
	CUDAEnabled   bool   `toml:"cuda_enabled"`
	Concurrency   int    `toml:"concurrency"`
	OpenAIAPIKey  string `toml:"openai_api_key"`
	OpenAIBaseURL string `toml:"openai_base_url"`
}

// Diarization selects and configures the speaker diarization backend.
type Diarization struct {
	Backend     string `toml:"backend"`
	Model       string `toml:"model"`
	HFToken     string `toml:"hf_token"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
}

// Stance configures the embedding backend and the reference statements that
// define each stance category.
type Stance struct {
	Backend       string `toml:"backend"`
	Model         string `toml:"model"`
	OllamaURL     string `toml:"ollama_url"`
	OpenAIAPIKey  string `toml:"openai_api_key"`
	OpenAIBaseURL string `toml:"openai_base_url"`
	Concurrency   int    `toml:"concurrency"`
	// References maps a category name to its reference statements. When empty,
	// the built-in liberal/conservative/moderate set is used.
	References map[string][]string `toml:"references"`
}

// Aggregation configures how transcript, speaker, and stance data are joined.
type Aggregation struct {
	// MinOverlapFraction is the share of a transcript segment a speaker interval
	// must exceed to be attached.
	MinOverlapFraction float64 `toml:"min_overlap_fraction"`
	SpeakerPolicy      string  `toml:"speaker_policy"`
	Dedup              string  `toml:"dedup"`
	OutputName         string  `toml:"output_name"`
}

// Pipeline contains cross-stage behaviour.
type Pipeline struct {
	// KeepGoing records failed items and continues instead of halting.
	KeepGoing bool `toml:"keep_going"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for debatelens.
//
// Configuration sections by subsystem:
//   - Paths: run working directories, ledger state, logs
//   - Segmenter: chunk length/overlap and ffmpeg/ffprobe binaries
//   - Download: video URL resolution via yt-dlp
//   - Transcription: whisperx or OpenAI speech-to-text
//   - Diarization: pyannote speaker diarization
//   - Stance: embedding backend and category reference statements
//   - Aggregation: speaker attachment, tie-break and de-duplication policies
//   - Pipeline: failure handling across stages
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Segmenter     Segmenter     `toml:"segmenter"`
	Download      Download      `toml:"download"`
	Transcription Transcription `toml:"transcription"`
	Diarization   Diarization   `toml:"diarization"`
	Stance        Stance        `toml:"stance"`
	Aggregation   Aggregation   `toml:"aggregation"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("debatelens.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state, log, and work root directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Paths.WorkRoot} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the SQLite run ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "runs.db")
}

// LogFilePath returns the file the CLI mirrors log output to.
func (c *Config) LogFilePath() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "debatelens.log")
}

// StanceCategories returns the configured category names in sorted order.
func (c *Config) StanceCategories() []string {
	return sortedKeys(c.Stance.References)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
