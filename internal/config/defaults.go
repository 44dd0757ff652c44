package config

import "sort"

const (
	defaultConfigPath             = "~/.config/debatelens/config.toml"
	defaultWorkRoot               = "~/.local/share/debatelens/runs"
	defaultStateDir               = "~/.local/share/debatelens"
	defaultLogDir                 = "~/.local/share/debatelens/logs"
	defaultChunkSeconds           = 10.0
	defaultOverlapSeconds         = 1.0
	defaultSampleRate             = 16000
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
	defaultDownloadBinary         = "yt-dlp"
	defaultDownloadTimeoutSeconds = 1800
	defaultTranscriptionModel     = "large-v3"
	defaultTranscriptionLanguage  = "en"
	defaultOpenAITranscribeModel  = "whisper-1"
	defaultDiarizationModel       = "pyannote/speaker-diarization-3.1"
	defaultOllamaEmbeddingModel   = "nomic-embed-text"
	defaultOpenAIEmbeddingModel   = "text-embedding-3-small"
	defaultOllamaURL              = "http://127.0.0.1:11434"
	defaultMinOverlapFraction     = 0.10
	defaultOutputName             = "debate_data.json"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Backend and policy names accepted in configuration.
const (
	BackendWhisperX = "whisperx"
	BackendOpenAI   = "openai"
	BackendPyannote = "pyannote"
	BackendOllama   = "ollama"
	BackendNone     = "none"

	SpeakerPolicyMajority = "majority"
	SpeakerPolicyFirst    = "first"

	DedupConfidence = "confidence"
	DedupNone       = "none"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkRoot: defaultWorkRoot,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Segmenter: Segmenter{
			ChunkSeconds:   defaultChunkSeconds,
			OverlapSeconds: defaultOverlapSeconds,
			SampleRate:     defaultSampleRate,
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
		},
		Download: Download{
			Binary:         defaultDownloadBinary,
			TimeoutSeconds: defaultDownloadTimeoutSeconds,
		},
		Transcription: Transcription{
			Backend:     BackendWhisperX,
			Model:       defaultTranscriptionModel,
			Language:    defaultTranscriptionLanguage,
			Concurrency: 1,
		},
		Diarization: Diarization{
			Backend: BackendPyannote,
			Model:   defaultDiarizationModel,
		},
		Stance: Stance{
			Backend:     BackendOllama,
			Model:       defaultOllamaEmbeddingModel,
			OllamaURL:   defaultOllamaURL,
			Concurrency: 1,
		},
		Aggregation: Aggregation{
			MinOverlapFraction: defaultMinOverlapFraction,
			SpeakerPolicy:      SpeakerPolicyMajority,
			Dedup:              DedupConfidence,
			OutputName:         defaultOutputName,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// DefaultStanceReferences returns the built-in reference statements per category.
func DefaultStanceReferences() map[string][]string {
	return map[string][]string{
		"liberal": {
			"Government should play a larger role in addressing social inequality",
			"We need stronger environmental regulations to combat climate change",
			"Healthcare is a human right that should be guaranteed by government",
			"Tax the wealthy more to fund social programs",
			"Immigration enriches our society and should be encouraged",
		},
		"conservative": {
			"Free markets and minimal government intervention drive prosperity",
			"Individual responsibility is more important than government assistance",
			"Traditional values and institutions should be preserved",
			"Lower taxes stimulate economic growth and job creation",
			"Strong national defense and border security are essential",
		},
		"moderate": {
			"We need balanced solutions that consider multiple perspectives",
			"Both government and private sector have important roles to play",
			"Compromise and bipartisan cooperation are essential for progress",
			"Evidence-based policies should guide decision making",
			"We should focus on what unites us rather than what divides us",
		},
	}
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
