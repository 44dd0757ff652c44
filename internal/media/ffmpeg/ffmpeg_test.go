package ffmpeg_test

import (
	"context"
	"strings"
	"testing"

	"debatelens/internal/media/ffmpeg"
	"debatelens/internal/services"
)

func TestArgsForWindow(t *testing.T) {
	args := ffmpeg.Args("in.mp3", "out.wav", ffmpeg.Window{Start: 18, Length: 7}, 16000)
	joined := strings.Join(args, " ")
	for _, want := range []string{"-ss 18.000", "-t 7.000", "-i in.mp3", "-ac 1", "-ar 16000", "-c:a pcm_s16le"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in %q", want, joined)
		}
	}
	if args[len(args)-1] != "out.wav" {
		t.Fatalf("expected destination last, got %q", args[len(args)-1])
	}
	if strings.Index(joined, "-ss") > strings.Index(joined, "-i ") {
		t.Fatal("expected input seeking before -i")
	}
}

func TestArgsWholeFileOmitsSeek(t *testing.T) {
	joined := strings.Join(ffmpeg.Args("in.mp4", "out.wav", ffmpeg.Window{}, 0), " ")
	if strings.Contains(joined, "-ss") || strings.Contains(joined, "-t ") {
		t.Fatalf("did not expect window flags: %q", joined)
	}
	if !strings.Contains(joined, "-ar 16000") {
		t.Fatalf("expected default sample rate: %q", joined)
	}
}

func TestExtractUsesRunner(t *testing.T) {
	var calls []services.Command
	runner := func(_ context.Context, cmd services.Command) ([]byte, error) {
		calls = append(calls, cmd)
		return nil, nil
	}
	err := ffmpeg.Extract(context.Background(), runner, "/opt/ffmpeg", "in.wav", "out.wav", ffmpeg.Window{Start: 9, Length: 10}, 8000)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(calls) != 1 || calls[0].Name != "/opt/ffmpeg" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
}

func TestExtractRejectsNegativeWindow(t *testing.T) {
	err := ffmpeg.Extract(context.Background(), nil, "", "in.wav", "out.wav", ffmpeg.Window{Start: -1}, 0)
	if err == nil {
		t.Fatal("expected error")
	}
}
