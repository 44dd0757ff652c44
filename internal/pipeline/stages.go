package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"debatelens/internal/aggregate"
	"debatelens/internal/debate"
	"debatelens/internal/logging"
	"debatelens/internal/segment"
	"debatelens/internal/services"
	"debatelens/internal/services/ytdlp"
	"debatelens/internal/workdir"
)

// Fetch downloads url into dir and returns the normalised source audio path.
func (p *Pipeline) Fetch(ctx context.Context, url string, dir workdir.Dir) (string, error) {
	var path string
	err := p.execute(ctx, StageFetch, dir, url, func(ctx context.Context, logger *slog.Logger) ([]debate.Failure, error) {
		var err error
		path, err = p.fetch(ctx, logger, url, dir)
		return nil, err
	})
	return path, err
}

// Slice cuts audioPath into chunks inside dir.
func (p *Pipeline) Slice(ctx context.Context, audioPath string, dir workdir.Dir) (segment.Result, error) {
	var result segment.Result
	err := p.execute(ctx, StageSlice, dir, audioPath, func(ctx context.Context, logger *slog.Logger) ([]debate.Failure, error) {
		var err error
		result, err = p.slice(ctx, logger, audioPath, dir)
		return nil, err
	})
	return result, err
}

// Transcribe runs speech-to-text over every chunk listed in chunks.json. It
// and the later stage entry points never create dir.
func (p *Pipeline) Transcribe(ctx context.Context, dir workdir.Dir) (debate.TranscriptArtifact, error) {
	if err := dir.RequireExisting(); err != nil {
		return debate.TranscriptArtifact{}, err
	}
	var artifact debate.TranscriptArtifact
	err := p.execute(ctx, StageTranscribe, dir, "", func(ctx context.Context, logger *slog.Logger) ([]debate.Failure, error) {
		var err error
		artifact, err = p.transcribe(ctx, logger, dir)
		return artifact.Failures, err
	})
	return artifact, err
}

// Diarize labels speakers over the recording listed in recording.json.
func (p *Pipeline) Diarize(ctx context.Context, dir workdir.Dir) ([]debate.SpeakerInterval, error) {
	if err := dir.RequireExisting(); err != nil {
		return nil, err
	}
	var intervals []debate.SpeakerInterval
	err := p.execute(ctx, StageDiarize, dir, "", func(ctx context.Context, logger *slog.Logger) ([]debate.Failure, error) {
		var (
			failures []debate.Failure
			err      error
		)
		intervals, failures, err = p.diarize(ctx, logger, dir)
		return failures, err
	})
	return intervals, err
}

// Stance scores every transcript segment.
func (p *Pipeline) Stance(ctx context.Context, dir workdir.Dir) (debate.StanceArtifact, error) {
	if err := dir.RequireExisting(); err != nil {
		return debate.StanceArtifact{}, err
	}
	var artifact debate.StanceArtifact
	err := p.execute(ctx, StageStance, dir, "", func(ctx context.Context, logger *slog.Logger) ([]debate.Failure, error) {
		var err error
		artifact, err = p.stance(ctx, logger, dir)
		return artifact.Failures, err
	})
	return artifact, err
}

// Merge joins the stage artifacts into the final document.
func (p *Pipeline) Merge(ctx context.Context, dir workdir.Dir) (debate.Document, error) {
	if err := dir.RequireExisting(); err != nil {
		return debate.Document{}, err
	}
	var doc debate.Document
	err := p.execute(ctx, StageMerge, dir, "", func(ctx context.Context, logger *slog.Logger) ([]debate.Failure, error) {
		var err error
		doc, err = p.merge(ctx, logger, dir)
		return nil, err
	})
	return doc, err
}

// Run executes every stage in order for a local recording or a video URL.
func (p *Pipeline) Run(ctx context.Context, source string, dir workdir.Dir) (debate.Document, error) {
	if err := p.requireModels(StageRun); err != nil {
		return debate.Document{}, err
	}
	var doc debate.Document
	err := p.execute(ctx, StageRun, dir, source, func(ctx context.Context, _ *slog.Logger) ([]debate.Failure, error) {
		audioPath := source
		if workdir.IsURL(source) {
			if _, err := p.step(ctx, StageFetch, func(ctx context.Context, logger *slog.Logger) ([]debate.Failure, error) {
				var err error
				audioPath, err = p.fetch(ctx, logger, source, dir)
				return nil, err
			}); err != nil {
				return nil, err
			}
		}

		if _, err := p.step(ctx, StageSlice, func(ctx context.Context, logger *slog.Logger) ([]debate.Failure, error) {
			_, err := p.slice(ctx, logger, audioPath, dir)
			return nil, err
		}); err != nil {
			return nil, err
		}

		var failures []debate.Failure
		stages := []struct {
			name string
			fn   stageFunc
		}{
			{StageTranscribe, func(ctx context.Context, logger *slog.Logger) ([]debate.Failure, error) {
				artifact, err := p.transcribe(ctx, logger, dir)
				return artifact.Failures, err
			}},
			{StageDiarize, func(ctx context.Context, logger *slog.Logger) ([]debate.Failure, error) {
				_, diarizeFailures, err := p.diarize(ctx, logger, dir)
				return diarizeFailures, err
			}},
			{StageStance, func(ctx context.Context, logger *slog.Logger) ([]debate.Failure, error) {
				artifact, err := p.stance(ctx, logger, dir)
				return artifact.Failures, err
			}},
			{StageMerge, func(ctx context.Context, logger *slog.Logger) ([]debate.Failure, error) {
				var err error
				doc, err = p.merge(ctx, logger, dir)
				return nil, err
			}},
		}
		for _, stage := range stages {
			stageFailures, err := p.step(ctx, stage.name, stage.fn)
			failures = append(failures, stageFailures...)
			if err != nil {
				return failures, err
			}
		}
		return failures, nil
	})
	return doc, err
}

func (p *Pipeline) fetch(ctx context.Context, logger *slog.Logger, url string, dir workdir.Dir) (string, error) {
	downloader := ytdlp.New(ytdlp.Config{
		Binary:       p.cfg.Download.Binary,
		FFmpegBinary: p.cfg.Segmenter.FFmpegBinary,
		SampleRate:   p.cfg.Segmenter.SampleRate,
		Timeout:      time.Duration(p.cfg.Download.TimeoutSeconds) * time.Second,
	}, p.run)
	dest := dir.SourceAudioPath()
	if err := downloader.Fetch(ctx, url, dir.Root, dest); err != nil {
		return "", err
	}
	logger.Info("recording downloaded", logging.String("path", dest))
	return dest, nil
}

func (p *Pipeline) slice(ctx context.Context, logger *slog.Logger, audioPath string, dir workdir.Dir) (segment.Result, error) {
	if _, ok := services.SourceFromContext(ctx); !ok {
		ctx = services.WithSource(ctx, audioPath)
	}
	slicer := &segment.Slicer{
		Options: segment.Options{
			ChunkSeconds:   p.cfg.Segmenter.ChunkSeconds,
			OverlapSeconds: p.cfg.Segmenter.OverlapSeconds,
		},
		SampleRate:    p.cfg.Segmenter.SampleRate,
		FFmpegBinary:  p.cfg.Segmenter.FFmpegBinary,
		FFprobeBinary: p.cfg.Segmenter.FFprobeBinary,
		Runner:        p.run,
		Logger:        logger,
	}
	return slicer.Slice(ctx, audioPath, dir)
}

func (p *Pipeline) transcribe(ctx context.Context, logger *slog.Logger, dir workdir.Dir) (debate.TranscriptArtifact, error) {
	if err := p.requireModels(StageTranscribe); err != nil {
		return debate.TranscriptArtifact{}, err
	}
	manifest, err := debate.LoadChunks(dir.ChunksPath())
	if err != nil {
		return debate.TranscriptArtifact{}, err
	}

	chunks := manifest.Chunks
	results := make([][]debate.TranscriptSegment, len(chunks))
	itemErrs := make([]error, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency(p.cfg.Transcription.Concurrency))
	for i := range chunks {
		chunk := chunks[i]
		chunk.Path = dir.ChunkAudioPath(chunk.Index)
		g.Go(func() error {
			itemCtx := services.WithItem(gctx, chunk.Name())
			segments, err := p.models.Transcribe(itemCtx, chunk)
			if err != nil {
				if !p.keepGoing() || gctx.Err() != nil {
					return itemError(StageTranscribe, chunk.Name(), err)
				}
				itemErrs[i] = err
				return nil
			}
			results[i] = absolutize(chunk, segments)
			logger.Debug("chunk transcribed",
				logging.String(logging.FieldItem, chunk.Name()),
				logging.Int("segments", len(segments)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return debate.TranscriptArtifact{}, err
	}

	artifact := debate.TranscriptArtifact{Model: p.models.TranscriptionModel}
	for i, chunk := range chunks {
		if itemErrs[i] != nil {
			artifact.Failures = append(artifact.Failures, recordFailure(logger, StageTranscribe, chunk.Name(), itemErrs[i]))
			continue
		}
		if err := debate.SaveChunkText(dir.ChunkTextPath(chunk.Index), results[i]); err != nil {
			return debate.TranscriptArtifact{}, err
		}
		artifact.Segments = append(artifact.Segments, results[i]...)
	}
	if err := debate.SaveTranscript(dir.TranscriptPath(), artifact); err != nil {
		return debate.TranscriptArtifact{}, err
	}
	logger.Info("transcript written",
		logging.Int("chunks", len(chunks)),
		logging.Int("segments", len(artifact.Segments)),
		logging.Int("failed_chunks", len(artifact.Failures)),
	)
	return artifact, nil
}

// absolutize offsets chunk-relative segments by the chunk start and assigns ids.
func absolutize(chunk debate.Chunk, segments []debate.TranscriptSegment) []debate.TranscriptSegment {
	out := make([]debate.TranscriptSegment, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		start := chunk.Start + seg.Start
		end := chunk.Start + seg.End
		if end < start {
			end = start
		}
		out = append(out, debate.TranscriptSegment{
			ID:         debate.SegmentID(chunk.Index, len(out)+1),
			ChunkIndex: chunk.Index,
			Start:      start,
			End:        end,
			Text:       text,
			Confidence: seg.Confidence,
		})
	}
	return out
}

func (p *Pipeline) diarize(ctx context.Context, logger *slog.Logger, dir workdir.Dir) ([]debate.SpeakerInterval, []debate.Failure, error) {
	if err := p.requireModels(StageDiarize); err != nil {
		return nil, nil, err
	}
	rec, err := debate.LoadRecording(dir.RecordingPath())
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(rec.Path) == "" {
		rec.Path = dir.SourceAudioPath()
	}

	item := filepath.Base(rec.Path)
	var failures []debate.Failure
	intervals, err := p.models.Diarize(services.WithItem(ctx, item), rec)
	if err != nil {
		if !p.keepGoing() || ctx.Err() != nil {
			return nil, nil, itemError(StageDiarize, item, err)
		}
		failures = append(failures, recordFailure(logger, StageDiarize, item, err))
		intervals = nil
	}

	name := strings.TrimSuffix(item, filepath.Ext(item))
	if err := debate.SaveSpeakers(dir.SpeakersPath(), name, intervals); err != nil {
		return nil, nil, err
	}
	speakerCount := countSpeakers(intervals)
	if err := debate.SaveDiarization(dir.DiarizationPath(), debate.DiarizationArtifact{
		Model:        p.models.DiarizationModel,
		SpeakerCount: speakerCount,
		Failures:     failures,
	}); err != nil {
		return nil, nil, err
	}
	logger.Info("speakers written",
		logging.Int("intervals", len(intervals)),
		logging.Int("speakers", speakerCount),
	)
	return intervals, failures, nil
}

func countSpeakers(intervals []debate.SpeakerInterval) int {
	seen := make(map[string]struct{}, len(intervals))
	for _, iv := range intervals {
		seen[iv.Speaker] = struct{}{}
	}
	return len(seen)
}

func (p *Pipeline) stance(ctx context.Context, logger *slog.Logger, dir workdir.Dir) (debate.StanceArtifact, error) {
	if err := p.requireModels(StageStance); err != nil {
		return debate.StanceArtifact{}, err
	}
	transcript, err := debate.LoadTranscript(dir.TranscriptPath())
	if err != nil {
		return debate.StanceArtifact{}, err
	}

	segments := transcript.Segments
	scores := make([]debate.StanceScore, len(segments))
	itemErrs := make([]error, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency(p.cfg.Stance.Concurrency))
	for i := range segments {
		seg := segments[i]
		g.Go(func() error {
			score, err := p.models.Classify(services.WithItem(gctx, seg.ID), seg.Text)
			if err != nil {
				if !p.keepGoing() || gctx.Err() != nil {
					return itemError(StageStance, seg.ID, err)
				}
				itemErrs[i] = err
				return nil
			}
			score.SegmentID = seg.ID
			scores[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return debate.StanceArtifact{}, err
	}

	artifact := debate.StanceArtifact{
		Model:      p.models.StanceModel,
		Categories: p.models.Categories(),
	}
	for i, seg := range segments {
		if itemErrs[i] != nil {
			artifact.Failures = append(artifact.Failures, recordFailure(logger, StageStance, seg.ID, itemErrs[i]))
			continue
		}
		artifact.Scores = append(artifact.Scores, scores[i])
	}
	if err := debate.SaveStance(dir.StancePath(), artifact); err != nil {
		return debate.StanceArtifact{}, err
	}
	logger.Info("stance scores written",
		logging.Int("segments", len(segments)),
		logging.Int("scored", len(artifact.Scores)),
		logging.Int("failed_segments", len(artifact.Failures)),
	)
	return artifact, nil
}

func (p *Pipeline) merge(ctx context.Context, logger *slog.Logger, dir workdir.Dir) (debate.Document, error) {
	rec, err := debate.LoadRecording(dir.RecordingPath())
	if err != nil {
		return debate.Document{}, err
	}
	manifest, err := debate.LoadChunks(dir.ChunksPath())
	if err != nil {
		return debate.Document{}, err
	}
	transcript, err := debate.LoadTranscript(dir.TranscriptPath())
	if err != nil {
		return debate.Document{}, err
	}
	intervals, err := debate.LoadSpeakers(dir.SpeakersPath())
	if err != nil {
		return debate.Document{}, err
	}
	diarization, err := debate.LoadDiarization(dir.DiarizationPath())
	if err != nil && !errors.Is(err, services.ErrMissingInput) {
		return debate.Document{}, err
	}
	stanceArtifact, err := debate.LoadStance(dir.StancePath())
	if err != nil {
		return debate.Document{}, err
	}

	var failures []debate.Failure
	failures = append(failures, transcript.Failures...)
	failures = append(failures, diarization.Failures...)
	failures = append(failures, stanceArtifact.Failures...)

	result, err := aggregate.Merge(aggregate.Input{
		Segments:   transcript.Segments,
		Intervals:  intervals,
		Scores:     stanceArtifact.Scores,
		Categories: stanceArtifact.Categories,
		Failures:   failures,
	}, aggregate.Options{
		MinOverlapFraction: p.cfg.Aggregation.MinOverlapFraction,
		SpeakerPolicy:      aggregate.SpeakerPolicy(p.cfg.Aggregation.SpeakerPolicy),
		Dedup:              aggregate.DedupPolicy(p.cfg.Aggregation.Dedup),
		KeepGoing:          p.keepGoing(),
	})
	if err != nil {
		return debate.Document{}, err
	}

	source := rec.Source
	if source == "" {
		source = rec.Path
	}
	runID, _ := services.RunIDFromContext(ctx)
	doc := debate.Document{
		Metadata: debate.Metadata{
			Source:         source,
			Duration:       rec.Duration,
			ChunkSeconds:   manifest.ChunkSeconds,
			OverlapSeconds: manifest.OverlapSeconds,
			ChunkCount:     len(manifest.Chunks),
			Categories:     stanceArtifact.Categories,
			CreatedAt:      p.now().UTC().Format(time.RFC3339),
			RunID:          runID,
		},
		Statistics: result.Statistics,
		Segments:   result.Segments,
		Missing:    result.Missing,
	}
	outPath := dir.DocumentPath(p.cfg.Aggregation.OutputName)
	if err := debate.SaveDocument(outPath, doc); err != nil {
		return debate.Document{}, err
	}
	logger.Info("document written",
		logging.String("path", outPath),
		logging.Int("segments", len(doc.Segments)),
		logging.Int("duplicates_dropped", result.Dropped),
		logging.Int("missing", len(doc.Missing)),
	)
	return doc, nil
}

func recordFailure(logger *slog.Logger, stage, item string, err error) debate.Failure {
	logging.WarnWithContext(logger, fmt.Sprintf("%s failed", item), "item_failure",
		logging.String(logging.FieldItem, item),
		logging.Error(err),
	)
	return debate.Failure{Stage: stage, Item: item, Error: err.Error()}
}
