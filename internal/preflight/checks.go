package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"debatelens/internal/config"
	"debatelens/internal/deps"
	"debatelens/internal/services/ollama"
	"debatelens/internal/services/whisperx"
)

const ollamaCheckTimeout = 5 * time.Second

// CheckOllama verifies that the Ollama server answers and already has the
// embedding model pulled.
func CheckOllama(ctx context.Context, url, model string) Result {
	const name = "Ollama"

	emb, err := ollama.New(ollama.Config{URL: url, Model: model, Timeout: ollamaCheckTimeout})
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	checkCtx, cancel := context.WithTimeout(ctx, ollamaCheckTimeout)
	defer cancel()

	if err := emb.CheckModel(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeNetworkError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (model %s ready)", url, emb.Model())}
}

// CheckCredential reports whether a required secret is configured. The value
// itself is never echoed.
func CheckCredential(name, value, env string) Result {
	if value == "" {
		return Result{Name: name, Detail: fmt.Sprintf("missing (set %s)", env)}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// SystemRequirements lists the binaries the configured backends shell out to.
func SystemRequirements(cfg *config.Config) []deps.Requirement {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Segmenter.FFmpegBinary,
			Description: "Required for audio normalization and chunk extraction",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Segmenter.FFprobeBinary,
			Description: "Required for recording duration probing",
		},
	}
	if cfg.Transcription.Backend == config.BackendWhisperX || cfg.Diarization.Backend == config.BackendPyannote {
		requirements = append(requirements, deps.Requirement{
			Name:        "uvx",
			Command:     whisperx.UVXCommand,
			Description: "Required for WhisperX transcription and pyannote diarization",
		})
	}
	requirements = append(requirements, deps.Requirement{
		Name:        "yt-dlp",
		Command:     cfg.Download.Binary,
		Description: "Needed only when the source is a URL",
		Optional:    true,
	})
	return requirements
}

// CheckSystemDeps evaluates SystemRequirements against PATH.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(SystemRequirements(cfg))
}

func summarizeNetworkError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (server unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (server unreachable)"
	}
	return err.Error()
}
