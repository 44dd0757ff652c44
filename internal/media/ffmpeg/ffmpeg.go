// Package ffmpeg builds and runs the ffmpeg invocations that turn recordings
// into mono PCM WAV audio for the speech models.
package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"debatelens/internal/services"
)

// DefaultSampleRate matches what the speech and diarization models expect.
const DefaultSampleRate = 16000

// Window selects a time range of the source. A zero Length means the whole file.
type Window struct {
	Start  float64
	Length float64
}

// Args returns ffmpeg arguments that write the selected window of source to
// dest as mono signed 16-bit PCM at sampleRate.
func Args(source, dest string, window Window, sampleRate int) []string {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if window.Start > 0 {
		args = append(args, "-ss", seconds(window.Start))
	}
	if window.Length > 0 {
		args = append(args, "-t", seconds(window.Length))
	}
	args = append(args,
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		dest,
	)
	return args
}

// Extract runs ffmpeg for one window.
func Extract(ctx context.Context, run services.CommandRunner, binary, source, dest string, window Window, sampleRate int) error {
	if strings.TrimSpace(source) == "" || strings.TrimSpace(dest) == "" {
		return fmt.Errorf("ffmpeg extract: source and destination required")
	}
	if window.Start < 0 || window.Length < 0 {
		return fmt.Errorf("ffmpeg extract: invalid window %+v", window)
	}
	if binary == "" {
		binary = "ffmpeg"
	}
	if run == nil {
		run = services.ExecRunner
	}
	if _, err := run(ctx, services.Command{Name: binary, Args: Args(source, dest, window, sampleRate)}); err != nil {
		return fmt.Errorf("ffmpeg extract: %w", err)
	}
	return nil
}

func seconds(value float64) string {
	return strconv.FormatFloat(value, 'f', 3, 64)
}
