package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"debatelens/internal/services"
)

func TestFetchDownloadsAndNormalises(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "source.wav")
	var names []string
	runner := func(_ context.Context, cmd services.Command) ([]byte, error) {
		names = append(names, cmd.Name)
		switch cmd.Name {
		case "yt-dlp":
			return nil, os.WriteFile(filepath.Join(dir, "download.wav"), []byte("RIFF"), 0o644)
		case "ffmpeg":
			if cmd.Args[len(cmd.Args)-1] != dest {
				t.Errorf("unexpected ffmpeg destination %v", cmd.Args)
			}
			return nil, os.WriteFile(dest, []byte("RIFF"), 0o644)
		}
		return nil, nil
	}

	d := New(Config{FFmpegBinary: "ffmpeg"}, runner)
	if err := d.Fetch(context.Background(), "https://www.youtube.com/watch?v=abc", dir, dest); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(names) != 2 || names[0] != "yt-dlp" || names[1] != "ffmpeg" {
		t.Fatalf("unexpected command order %v", names)
	}
	if _, err := os.Stat(filepath.Join(dir, "download.wav")); !os.IsNotExist(err) {
		t.Fatalf("expected intermediate download removed, stat err=%v", err)
	}
}

func TestFetchToolFailure(t *testing.T) {
	runner := func(context.Context, services.Command) ([]byte, error) {
		return nil, errors.New("exit status 1: ERROR: Unsupported URL")
	}
	err := New(Config{}, runner).Fetch(context.Background(), "https://example.com/x", t.TempDir(), "out.wav")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestFetchNoOutput(t *testing.T) {
	runner := func(context.Context, services.Command) ([]byte, error) { return nil, nil }
	err := New(Config{}, runner).Fetch(context.Background(), "https://example.com/x", t.TempDir(), "out.wav")
	if !errors.Is(err, services.ErrMissingInput) {
		t.Fatalf("expected missing input error, got %v", err)
	}
}

func TestFetchRequiresURL(t *testing.T) {
	err := New(Config{}, nil).Fetch(context.Background(), " ", t.TempDir(), "out.wav")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
