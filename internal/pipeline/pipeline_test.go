package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"debatelens/internal/analysis"
	"debatelens/internal/config"
	"debatelens/internal/debate"
	"debatelens/internal/pipeline"
	"debatelens/internal/runstore"
	"debatelens/internal/services"
	"debatelens/internal/testsupport"
	"debatelens/internal/workdir"
)

type fakeTranscriber struct {
	mu      sync.Mutex
	failOn  map[int]bool
	calls   []int
	results map[int][]debate.TranscriptSegment
}

func (f *fakeTranscriber) Transcribe(_ context.Context, chunk debate.Chunk) ([]debate.TranscriptSegment, error) {
	f.mu.Lock()
	f.calls = append(f.calls, chunk.Index)
	f.mu.Unlock()
	if _, err := os.Stat(chunk.Path); err != nil {
		return nil, err
	}
	if f.failOn[chunk.Index] {
		return nil, services.Wrap(services.ErrExternalTool, "transcribe", "fake", chunk.Name(), errors.New("model crashed"))
	}
	if segs, ok := f.results[chunk.Index]; ok {
		return segs, nil
	}
	return []debate.TranscriptSegment{{Start: 0.5, End: 4, Text: fmt.Sprintf("statement %d", chunk.Index), Confidence: 0.8}}, nil
}

type fakeDiarizer struct {
	intervals []debate.SpeakerInterval
	err       error
}

func (f fakeDiarizer) Diarize(context.Context, debate.Recording) ([]debate.SpeakerInterval, error) {
	return f.intervals, f.err
}

type fakeClassifier struct {
	failOn string
}

func (f fakeClassifier) Classify(_ context.Context, text string) (debate.StanceScore, error) {
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return debate.StanceScore{}, errors.New("embedding server unavailable")
	}
	return debate.StanceScore{
		Scores:     map[string]float64{"conservative": 0.25, "liberal": 0.75},
		Dominant:   "liberal",
		Confidence: 0.75,
	}, nil
}

func (fakeClassifier) Categories() []string { return []string{"conservative", "liberal"} }

type fakeTools struct {
	duration string
}

func (f fakeTools) run(_ context.Context, cmd services.Command) ([]byte, error) {
	switch cmd.Name {
	case "ffprobe":
		return []byte(fmt.Sprintf(`{"streams":[{"codec_type":"audio","sample_rate":"16000"}],"format":{"duration":%q}}`, f.duration)), nil
	case "ffmpeg":
		dest := cmd.Args[len(cmd.Args)-1]
		return nil, os.WriteFile(dest, []byte("RIFF"), 0o644)
	}
	return nil, fmt.Errorf("unexpected command %s", cmd.Name)
}

type fixture struct {
	cfg         *config.Config
	dir         workdir.Dir
	audio       string
	transcriber *fakeTranscriber
	bundle      *analysis.Bundle
	store       *runstore.Store
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	opts = append([]testsupport.ConfigOption{testsupport.WithChunking(10, 1)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Transcription.Concurrency = 3
	cfg.Stance.Concurrency = 2

	dir, err := workdir.New(filepath.Join(testsupport.BaseDir(cfg), "work"))
	if err != nil {
		t.Fatal(err)
	}
	audio := filepath.Join(testsupport.BaseDir(cfg), "debate.wav")
	testsupport.WriteSilentWAV(t, audio, 1, 16000)

	transcriber := &fakeTranscriber{failOn: map[int]bool{}, results: map[int][]debate.TranscriptSegment{
		0: {
			{Start: 0.5, End: 4, Text: "statement 0", Confidence: 0.8},
			{Start: 9.1, End: 10, Text: "words in the overlap", Confidence: 0.9},
		},
		1: {
			{Start: 0.05, End: 1, Text: "words in the overlap", Confidence: 0.4},
			{Start: 2, End: 6, Text: "statement 1", Confidence: 0.7},
		},
	}}
	bundle := &analysis.Bundle{
		Transcriber: transcriber,
		Diarizer: fakeDiarizer{intervals: []debate.SpeakerInterval{
			{Start: 0, End: 12, Speaker: "SPEAKER_00"},
			{Start: 12, End: 25, Speaker: "SPEAKER_01"},
		}},
		Classifier:         fakeClassifier{},
		TranscriptionModel: "fake-asr",
		DiarizationModel:   "fake-diarizer",
		StanceModel:        "fake-embed",
	}
	return &fixture{
		cfg:         cfg,
		dir:         dir,
		audio:       audio,
		transcriber: transcriber,
		bundle:      bundle,
		store:       testsupport.MustOpenStore(t, cfg),
	}
}

func (f *fixture) pipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(f.cfg, pipeline.Options{
		Models: f.bundle,
		Runner: fakeTools{duration: "25.0"}.run,
		Store:  f.store,
		Now:    func() time.Time { return time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return p
}

func TestRunProducesOrderedDocument(t *testing.T) {
	f := newFixture(t)
	doc, err := f.pipeline(t).Run(context.Background(), f.audio, f.dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if doc.Metadata.ChunkCount != 3 || doc.Metadata.Duration != 25 {
		t.Fatalf("unexpected metadata %+v", doc.Metadata)
	}
	if doc.Metadata.Source != f.audio {
		t.Fatalf("expected source %q, got %q", f.audio, doc.Metadata.Source)
	}
	if doc.Metadata.CreatedAt != "2024-10-01T12:00:00Z" {
		t.Fatalf("unexpected created_at %q", doc.Metadata.CreatedAt)
	}
	if doc.Metadata.RunID == "" {
		t.Fatal("expected run id stamped on metadata")
	}

	// statement 0, overlap (chunk 0 wins), statement 1, statement 2
	if len(doc.Segments) != 4 {
		t.Fatalf("expected 4 segments after de-duplication, got %d: %+v", len(doc.Segments), doc.Segments)
	}
	for i := 1; i < len(doc.Segments); i++ {
		if doc.Segments[i].Start < doc.Segments[i-1].Start {
			t.Fatalf("segments out of order at %d: %+v", i, doc.Segments)
		}
	}
	overlap := doc.Segments[1]
	if overlap.ID != "c0000-s002" || overlap.Start != 9.1 {
		t.Fatalf("expected chunk 0 copy of the overlap kept, got %+v", overlap)
	}
	last := doc.Segments[3]
	if last.ID != "c0002-s001" || last.Start != 18.5 || last.Speaker != "SPEAKER_01" {
		t.Fatalf("unexpected last segment %+v", last)
	}
	if doc.Segments[0].Speaker != "SPEAKER_00" {
		t.Fatalf("expected first speaker SPEAKER_00, got %+v", doc.Segments[0])
	}
	if doc.Statistics.SpeakerCount != 2 || doc.Statistics.StanceDistribution["liberal"] != 4 {
		t.Fatalf("unexpected statistics %+v", doc.Statistics)
	}

	saved, err := debate.LoadDocument(f.dir.DocumentPath(f.cfg.Aggregation.OutputName))
	if err != nil {
		t.Fatalf("load saved document: %v", err)
	}
	if len(saved.Segments) != len(doc.Segments) {
		t.Fatalf("saved document differs from returned document")
	}
	for _, name := range []string{"chunk_0000.txt", "chunk_0002.txt", workdir.SpeakersFile, workdir.StanceFile} {
		if _, err := os.Stat(f.dir.Path(name)); err != nil {
			t.Fatalf("expected artifact %s: %v", name, err)
		}
	}

	runs, err := f.store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 || runs[0].Stage != pipeline.StageRun || runs[0].Status != runstore.StatusSucceeded {
		t.Fatalf("unexpected ledger %+v", runs)
	}
	if runs[0].ID != doc.Metadata.RunID {
		t.Fatalf("ledger id %q does not match document run id %q", runs[0].ID, doc.Metadata.RunID)
	}
}

func TestStagesRunSeparately(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t)
	ctx := context.Background()

	result, err := p.Slice(ctx, f.audio, f.dir)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	starts := []float64{}
	for _, chunk := range result.Chunks {
		starts = append(starts, chunk.Start)
	}
	if fmt.Sprint(starts) != "[0 9 18]" {
		t.Fatalf("unexpected chunk starts %v", starts)
	}

	transcript, err := p.Transcribe(ctx, f.dir)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(transcript.Segments) != 5 || transcript.Model != "fake-asr" {
		t.Fatalf("unexpected transcript %+v", transcript)
	}
	if transcript.Segments[0].ChunkIndex != 0 || transcript.Segments[4].ChunkIndex != 2 {
		t.Fatalf("transcript not in chunk order: %+v", transcript.Segments)
	}

	if _, err := p.Diarize(ctx, f.dir); err != nil {
		t.Fatalf("Diarize: %v", err)
	}
	stanceArtifact, err := p.Stance(ctx, f.dir)
	if err != nil {
		t.Fatalf("Stance: %v", err)
	}
	for i, score := range stanceArtifact.Scores {
		if score.SegmentID != transcript.Segments[i].ID {
			t.Fatalf("stance score %d has id %q, want %q", i, score.SegmentID, transcript.Segments[i].ID)
		}
	}
	doc, err := p.Merge(ctx, f.dir)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(doc.Segments) != 4 || len(doc.Metadata.Categories) != 2 {
		t.Fatalf("unexpected document %+v", doc)
	}

	runs, err := f.store.List(ctx, 0)
	if err != nil || len(runs) != 5 {
		t.Fatalf("expected one ledger row per stage, got %d (err=%v)", len(runs), err)
	}
}

func TestTranscribeHaltsOnFailure(t *testing.T) {
	f := newFixture(t)
	f.transcriber.failOn[1] = true
	p := f.pipeline(t)
	if _, err := p.Slice(context.Background(), f.audio, f.dir); err != nil {
		t.Fatal(err)
	}
	_, err := p.Transcribe(context.Background(), f.dir)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "chunk_0001") {
		t.Fatalf("expected chunk name in error, got %v", err)
	}
	if _, statErr := os.Stat(f.dir.TranscriptPath()); !os.IsNotExist(statErr) {
		t.Fatalf("transcript must not be written on halt, stat err=%v", statErr)
	}

	runs, err := f.store.List(context.Background(), 1)
	if err != nil || len(runs) != 1 || runs[0].Status != runstore.StatusFailed {
		t.Fatalf("expected failed ledger row, got %+v err=%v", runs, err)
	}
}

func TestKeepGoingCarriesFailuresIntoDocument(t *testing.T) {
	f := newFixture(t, testsupport.WithKeepGoing(true))
	f.transcriber.failOn[2] = true
	f.bundle.Classifier = fakeClassifier{failOn: "statement 1"}

	doc, err := f.pipeline(t).Run(context.Background(), f.audio, f.dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(doc.Missing) != 2 {
		t.Fatalf("expected 2 missing items, got %+v", doc.Missing)
	}
	if doc.Missing[0].Stage != pipeline.StageTranscribe || doc.Missing[0].Item != "chunk_0002" {
		t.Fatalf("unexpected first missing item %+v", doc.Missing[0])
	}
	if doc.Missing[1].Stage != pipeline.StageStance || doc.Missing[1].Item != "c0001-s002" {
		t.Fatalf("unexpected second missing item %+v", doc.Missing[1])
	}
	for _, seg := range doc.Segments {
		if seg.ID == "c0001-s002" || seg.ChunkIndex == 2 {
			t.Fatalf("failed item leaked into segments: %+v", seg)
		}
	}
	if doc.Statistics.FailureCount != 2 {
		t.Fatalf("expected failure count 2, got %d", doc.Statistics.FailureCount)
	}

	runs, err := f.store.List(context.Background(), 0)
	if err != nil || len(runs) != 1 || runs[0].Status != runstore.StatusPartial || runs[0].FailureCount != 2 {
		t.Fatalf("expected partial ledger row, got %+v err=%v", runs, err)
	}
}

func TestDiarizeKeepGoingWritesEmptySpeakers(t *testing.T) {
	f := newFixture(t, testsupport.WithKeepGoing(true))
	f.bundle.Diarizer = fakeDiarizer{err: errors.New("gated model")}
	p := f.pipeline(t)
	if _, err := p.Slice(context.Background(), f.audio, f.dir); err != nil {
		t.Fatal(err)
	}
	intervals, err := p.Diarize(context.Background(), f.dir)
	if err != nil {
		t.Fatalf("Diarize: %v", err)
	}
	if len(intervals) != 0 {
		t.Fatalf("expected no intervals, got %v", intervals)
	}
	artifact, err := debate.LoadDiarization(f.dir.DiarizationPath())
	if err != nil {
		t.Fatalf("LoadDiarization: %v", err)
	}
	if len(artifact.Failures) != 1 || artifact.Failures[0].Item != "debate.wav" {
		t.Fatalf("unexpected diarization failures %+v", artifact.Failures)
	}
}

func TestStageRejectsLockedDirectory(t *testing.T) {
	f := newFixture(t)
	lock, err := f.dir.Lock()
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer lock.Unlock()

	_, err = f.pipeline(t).Slice(context.Background(), f.audio, f.dir)
	if !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy error, got %v", err)
	}
}

func TestSliceMissingRecordingWritesNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipeline(t).Slice(context.Background(), filepath.Join(t.TempDir(), "absent.wav"), f.dir)
	if !errors.Is(err, services.ErrMissingInput) {
		t.Fatalf("expected missing input, got %v", err)
	}
	chunks, err := f.dir.ChunkAudioFiles()
	if err != nil || len(chunks) != 0 {
		t.Fatalf("expected no chunk files, got %v err=%v", chunks, err)
	}
}

func TestMergeRequiresEarlierArtifacts(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t)
	if _, err := p.Slice(context.Background(), f.audio, f.dir); err != nil {
		t.Fatal(err)
	}
	_, err := p.Merge(context.Background(), f.dir)
	if !errors.Is(err, services.ErrMissingInput) {
		t.Fatalf("expected missing input, got %v", err)
	}
}

func TestStagesDoNotCreateAbsentDirectory(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t)
	ctx := context.Background()
	if _, err := p.Transcribe(ctx, f.dir); !errors.Is(err, services.ErrMissingInput) {
		t.Fatalf("transcribe: expected missing input, got %v", err)
	}
	if _, err := p.Merge(ctx, f.dir); !errors.Is(err, services.ErrMissingInput) {
		t.Fatalf("merge: expected missing input, got %v", err)
	}
	if _, err := os.Stat(f.dir.Root); !os.IsNotExist(err) {
		t.Fatalf("expected work dir to stay absent, stat err %v", err)
	}
}

func TestModelStagesRequireBackends(t *testing.T) {
	f := newFixture(t)
	p, err := pipeline.New(f.cfg, pipeline.Options{Runner: fakeTools{duration: "25.0"}.run})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Slice(context.Background(), f.audio, f.dir); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Transcribe(context.Background(), f.dir); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
