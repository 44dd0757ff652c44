// Package ytdlp resolves video URLs to audio with yt-dlp and normalises the
// result to the mono WAV the rest of the pipeline reads.
package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"debatelens/internal/media/ffmpeg"
	"debatelens/internal/services"
)

const (
	DefaultBinary  = "yt-dlp"
	DefaultTimeout = 30 * time.Minute
	downloadStem   = "download"
)

// Config controls the download and normalisation commands.
type Config struct {
	Binary       string
	FFmpegBinary string
	SampleRate   int
	Timeout      time.Duration
}

// Downloader fetches remote recordings.
type Downloader struct {
	cfg Config
	run services.CommandRunner
}

// New builds a Downloader. A nil runner uses services.ExecRunner.
func New(cfg Config, run services.CommandRunner) *Downloader {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if run == nil {
		run = services.ExecRunner
	}
	return &Downloader{cfg: cfg, run: run}
}

// Args returns the yt-dlp arguments that extract audio from url into dir.
func Args(url, dir string) []string {
	return []string{
		"--no-playlist",
		"--no-progress",
		"--extract-audio",
		"--audio-format", "wav",
		"--output", filepath.Join(dir, downloadStem+".%(ext)s"),
		url,
	}
}

// Fetch downloads url into dir and writes the normalised audio to dest.
func (d *Downloader) Fetch(ctx context.Context, url, dir, dest string) error {
	if strings.TrimSpace(url) == "" {
		return services.Wrap(services.ErrValidation, "fetch", "yt-dlp", "url required", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fetch: ensure dir: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()
	if _, err := d.run(runCtx, services.Command{Name: d.cfg.Binary, Args: Args(url, dir)}); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrExternalTool, "fetch", "yt-dlp", fmt.Sprintf("timed out after %s", d.cfg.Timeout), err)
		}
		return services.Wrap(services.ErrExternalTool, "fetch", "yt-dlp", url, err)
	}

	downloaded, err := findDownload(dir)
	if err != nil {
		return err
	}
	defer os.Remove(downloaded)

	if err := ffmpeg.Extract(ctx, d.run, d.cfg.FFmpegBinary, downloaded, dest, ffmpeg.Window{}, d.cfg.SampleRate); err != nil {
		return services.Wrap(services.ErrExternalTool, "fetch", "ffmpeg", "normalise audio", err)
	}
	return nil
}

func findDownload(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, downloadStem+".*"))
	if err != nil {
		return "", fmt.Errorf("fetch: glob download: %w", err)
	}
	for _, match := range matches {
		if strings.HasSuffix(match, ".part") {
			continue
		}
		if info, err := os.Stat(match); err == nil && info.Size() > 0 {
			return match, nil
		}
	}
	return "", services.Wrap(services.ErrMissingInput, "fetch", "yt-dlp", "no audio file was produced", nil)
}
