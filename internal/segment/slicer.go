package segment

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"debatelens/internal/debate"
	"debatelens/internal/fileutil"
	"debatelens/internal/logging"
	"debatelens/internal/media/ffmpeg"
	"debatelens/internal/media/ffprobe"
	"debatelens/internal/services"
	"debatelens/internal/workdir"
)

// Slicer probes a recording and writes its chunks into a work directory.
type Slicer struct {
	Options       Options
	SampleRate    int
	FFmpegBinary  string
	FFprobeBinary string
	Runner        services.CommandRunner
	Logger        *slog.Logger
}

// Result is what Slice leaves behind in the work directory.
type Result struct {
	Recording debate.Recording
	Chunks    []debate.Chunk
}

// Probe inspects audioPath. Absent, empty, or zero-length recordings yield
// services.ErrMissingInput.
func (s *Slicer) Probe(ctx context.Context, audioPath string) (debate.Recording, error) {
	if err := fileutil.RequireNonEmpty(audioPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fileutil.ErrEmptyFile) {
			return debate.Recording{}, services.Wrap(services.ErrMissingInput, "slice", "probe", "recording unavailable", err)
		}
		return debate.Recording{}, services.Wrap(services.ErrMissingInput, "slice", "probe", "", err)
	}
	abs, err := filepath.Abs(audioPath)
	if err != nil {
		return debate.Recording{}, fmt.Errorf("resolve recording path: %w", err)
	}

	probe, err := ffprobe.Inspect(ctx, s.Runner, s.FFprobeBinary, abs)
	if err != nil {
		return debate.Recording{}, services.Wrap(services.ErrExternalTool, "slice", "probe", filepath.Base(abs), err)
	}
	duration := probe.DurationSeconds()
	if duration <= 0 {
		return debate.Recording{}, services.Wrap(services.ErrMissingInput, "slice", "probe", filepath.Base(abs)+" has zero duration", nil)
	}
	return debate.Recording{
		Path:       abs,
		Duration:   duration,
		SampleRate: probe.SampleRate(),
	}, nil
}

// Slice probes audioPath, plans chunks, extracts every chunk as WAV into dir,
// and saves recording.json and chunks.json. Nothing is written when the
// recording is missing or empty or the options are invalid.
func (s *Slicer) Slice(ctx context.Context, audioPath string, dir workdir.Dir) (Result, error) {
	logger := logging.NewComponentLogger(s.Logger, "segment")
	if err := s.Options.Validate(); err != nil {
		return Result{}, err
	}

	rec, err := s.Probe(ctx, audioPath)
	if err != nil {
		return Result{}, err
	}
	if source, ok := services.SourceFromContext(ctx); ok {
		rec.Source = source
	}
	chunks, err := Plan(rec.Duration, s.Options)
	if err != nil {
		return Result{}, err
	}

	if err := dir.Ensure(); err != nil {
		return Result{}, err
	}
	if err := s.removeStaleChunks(dir); err != nil {
		return Result{}, err
	}

	sampleRate := s.SampleRate
	if sampleRate <= 0 {
		sampleRate = ffmpeg.DefaultSampleRate
	}
	for i := range chunks {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		chunk := &chunks[i]
		chunk.Path = dir.ChunkAudioPath(chunk.Index)
		window := ffmpeg.Window{Start: chunk.Start, Length: chunk.Length}
		if err := ffmpeg.Extract(ctx, s.Runner, s.FFmpegBinary, rec.Path, chunk.Path, window, sampleRate); err != nil {
			return Result{}, services.Wrap(services.ErrExternalTool, "slice", "extract", chunk.Name(), err)
		}
		logger.Debug("chunk extracted",
			logging.String(logging.FieldItem, chunk.Name()),
			logging.Float64("start", chunk.Start),
			logging.Float64("length", chunk.Length),
		)
	}

	if err := debate.SaveRecording(dir.RecordingPath(), rec); err != nil {
		return Result{}, err
	}
	manifest := debate.ChunkManifest{
		Recording:      rec.Path,
		Duration:       rec.Duration,
		ChunkSeconds:   s.Options.ChunkSeconds,
		OverlapSeconds: s.Options.OverlapSeconds,
		SampleRate:     sampleRate,
		Chunks:         chunks,
	}
	if err := debate.SaveChunks(dir.ChunksPath(), manifest); err != nil {
		return Result{}, err
	}

	logger.Info("recording sliced",
		logging.String("recording", filepath.Base(rec.Path)),
		logging.Float64("duration_seconds", rec.Duration),
		logging.Int("chunks", len(chunks)),
	)
	return Result{Recording: rec, Chunks: chunks}, nil
}

func (s *Slicer) removeStaleChunks(dir workdir.Dir) error {
	stale, err := dir.ChunkAudioFiles()
	if err != nil {
		return fmt.Errorf("list chunk files: %w", err)
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale chunk %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}
