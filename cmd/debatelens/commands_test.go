package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"debatelens/internal/config"
	"debatelens/internal/debate"
	"debatelens/internal/runstore"
	"debatelens/internal/services"
	"debatelens/internal/testsupport"
	"debatelens/internal/workdir"
)

func seedWorkDir(t *testing.T, root string) workdir.Dir {
	t.Helper()
	dir, err := workdir.New(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := dir.Ensure(); err != nil {
		t.Fatal(err)
	}
	rec := debate.Recording{Path: "/audio/debate.wav", Duration: 19, SampleRate: 16000}
	if err := debate.SaveRecording(dir.RecordingPath(), rec); err != nil {
		t.Fatal(err)
	}
	manifest := debate.ChunkManifest{
		Recording:      rec.Path,
		Duration:       rec.Duration,
		ChunkSeconds:   10,
		OverlapSeconds: 1,
		SampleRate:     16000,
		Chunks: []debate.Chunk{
			{Index: 0, Start: 0, Length: 10, Overlap: 1, Path: dir.ChunkAudioPath(0)},
			{Index: 1, Start: 9, Length: 10, Path: dir.ChunkAudioPath(1)},
		},
	}
	if err := debate.SaveChunks(dir.ChunksPath(), manifest); err != nil {
		t.Fatal(err)
	}
	transcript := debate.TranscriptArtifact{
		Model: "fake",
		Segments: []debate.TranscriptSegment{
			{ID: "c0001-s001", ChunkIndex: 1, Start: 11, End: 15, Text: "Lower taxes <grow> jobs", Confidence: 0.9},
			{ID: "c0000-s001", ChunkIndex: 0, Start: 1, End: 5, Text: "Healthcare is a right", Confidence: 0.8},
		},
	}
	if err := debate.SaveTranscript(dir.TranscriptPath(), transcript); err != nil {
		t.Fatal(err)
	}
	speakers := []debate.SpeakerInterval{
		{Start: 0, End: 6, Speaker: "SPEAKER_00"},
		{Start: 10, End: 16, Speaker: "SPEAKER_01"},
	}
	if err := debate.SaveSpeakers(dir.SpeakersPath(), "debate", speakers); err != nil {
		t.Fatal(err)
	}
	stance := debate.StanceArtifact{
		Model:      "fake",
		Categories: []string{"conservative", "liberal", "moderate"},
		Scores: []debate.StanceScore{
			{SegmentID: "c0000-s001", Scores: map[string]float64{"conservative": 0.1, "liberal": 0.7, "moderate": 0.2}, Dominant: "liberal", Confidence: 0.7},
			{SegmentID: "c0001-s001", Scores: map[string]float64{"conservative": 0.6, "liberal": 0.1, "moderate": 0.3}, Dominant: "conservative", Confidence: 0.6},
		},
	}
	if err := debate.SaveStance(dir.StancePath(), stance); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestMergeThenSummary(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	dir := seedWorkDir(t, filepath.Join(env.baseDir, "work"))

	out, _, err := runCLI(t, []string{"merge", dir.Root, "--output", "merged.json"}, env.configPath)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	requireContains(t, out, "Wrote 2 segment(s)")

	doc, err := debate.LoadDocument(dir.DocumentPath("merged.json"))
	if err != nil {
		t.Fatalf("load merged document: %v", err)
	}
	if len(doc.Segments) != 2 || doc.Segments[0].ID != "c0000-s001" || doc.Segments[1].Speaker != "SPEAKER_01" {
		t.Fatalf("unexpected segments %+v", doc.Segments)
	}
	if doc.Metadata.RunID == "" {
		t.Fatal("expected merge to stamp the ledger run id")
	}

	out, _, err = runCLI(t, []string{"summary", dir.DocumentPath("merged.json"), "--segments"}, env.configPath)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	requireContains(t, out, "== Debate ==")
	requireContains(t, out, "Liberal")
	requireContains(t, out, "SPEAKER_00")
	requireContains(t, out, "c0001-s001")

	out, _, err = runCLI(t, []string{"--json", "summary", dir.DocumentPath("merged.json")}, env.configPath)
	if err != nil {
		t.Fatalf("summary --json: %v", err)
	}
	var stats debate.Statistics
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode summary json: %v\n%s", err, out)
	}
	if stats.TotalSegments != 2 || stats.StanceDistribution["conservative"] != 1 {
		t.Fatalf("unexpected statistics %+v", stats)
	}
}

func TestMergeJSONKeepsTranscriptText(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	dir := seedWorkDir(t, filepath.Join(env.baseDir, "work"))

	out, _, err := runCLI(t, []string{"--json", "merge", dir.Root}, env.configPath)
	if err != nil {
		t.Fatalf("merge --json: %v", err)
	}
	requireContains(t, out, "Lower taxes <grow> jobs")
}

func TestSummaryReadsWorkDirectory(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	dir := seedWorkDir(t, filepath.Join(env.baseDir, "work"))
	if _, _, err := runCLI(t, []string{"merge", dir.Root}, env.configPath); err != nil {
		t.Fatalf("merge: %v", err)
	}

	out, _, err := runCLI(t, []string{"summary", dir.Root}, env.configPath)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	requireContains(t, out, "/audio/debate.wav")
}

func TestDemoWritesDocumentReadBySummary(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	root := filepath.Join(env.baseDir, "demo")

	out, _, err := runCLI(t, []string{"demo", root, "--seed", "3"}, env.configPath)
	if err != nil {
		t.Fatalf("demo: %v", err)
	}
	requireContains(t, out, "Wrote demo document")

	out, _, err = runCLI(t, []string{"--json", "summary", root}, env.configPath)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	var stats debate.Statistics
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	if stats.TotalSegments != 10 || stats.SpeakerCount != 2 {
		t.Fatalf("unexpected statistics %+v", stats)
	}
	if stats.StanceDistribution["moderate"] != 3 {
		t.Fatalf("unexpected distribution %v", stats.StanceDistribution)
	}
}

func TestMergeMissingArtifactsFails(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	root := filepath.Join(env.baseDir, "empty")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}

	_, _, err := runCLI(t, []string{"merge", root}, env.configPath)
	if !errors.Is(err, services.ErrMissingInput) {
		t.Fatalf("expected missing input without stage artifacts, got %v", err)
	}
}

func TestStageCommandsRejectAbsentDirectory(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	for _, stage := range []string{"transcribe", "diarize", "stance", "merge"} {
		t.Run(stage, func(t *testing.T) {
			root := filepath.Join(env.baseDir, "typo-"+stage)
			_, _, err := runCLI(t, []string{stage, root}, env.configPath)
			if !errors.Is(err, services.ErrMissingInput) {
				t.Fatalf("expected missing input, got %v", err)
			}
			if _, statErr := os.Stat(root); !os.IsNotExist(statErr) {
				t.Fatalf("expected %s not to be created, stat err %v", root, statErr)
			}
		})
	}
}

func TestRunsListsLedger(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	store := testsupport.MustOpenStore(t, env.cfg)
	ctx := context.Background()
	first, err := store.Begin(ctx, "slice", "/audio/first.wav", "/work/first")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Finish(ctx, first.ID, runstore.StatusSucceeded, ""); err != nil {
		t.Fatal(err)
	}
	second, err := store.Begin(ctx, "transcribe", "", "/work/second")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Finish(ctx, second.ID, runstore.StatusFailed, "boom"); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"runs"}, env.configPath)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "transcribe")
	requireContains(t, out, "failed")
	requireContains(t, out, "/work/second")

	out, _, err = runCLI(t, []string{"--json", "runs", "--limit", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("runs --json: %v", err)
	}
	var views []runView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode runs json: %v", err)
	}
	if len(views) != 1 || views[0].ID != second.ID || views[0].Error != "boom" {
		t.Fatalf("unexpected runs %+v", views)
	}
}

func TestRunsEmptyLedger(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	out, _, err := runCLI(t, []string{"runs"}, env.configPath)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}

func offlineBackends(cfg *config.Config) {
	cfg.Transcription.Backend = config.BackendOpenAI
	cfg.Transcription.Model = "whisper-1"
	cfg.Transcription.OpenAIAPIKey = "sk-test"
	cfg.Stance.Backend = config.BackendOpenAI
	cfg.Stance.Model = "text-embedding-3-small"
	cfg.Stance.OpenAIAPIKey = "sk-test"
}

func TestDoctorReportsReady(t *testing.T) {
	env := setupCLITestEnv(t, offlineBackends, testsupport.WithStubbedBinaries("ffmpeg", "ffprobe"))

	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "== Environment ==")
	requireContains(t, out, "Work root:")
	requireContains(t, out, "FFprobe:")
	if strings.Contains(out, "uvx") {
		t.Fatalf("uvx should not be listed for remote backends:\n%s", out)
	}
}

func TestDoctorFailsOnMissingBinary(t *testing.T) {
	env := setupCLITestEnv(t, func(cfg *config.Config) {
		offlineBackends(cfg)
		cfg.Segmenter.FFmpegBinary = "debatelens-missing-ffmpeg"
	}, testsupport.WithStubbedBinaries("ffprobe"))

	out, _, err := runCLI(t, []string{"--json", "doctor"}, env.configPath)
	if err == nil {
		t.Fatal("expected doctor to fail")
	}
	var report doctorReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode doctor json: %v", err)
	}
	if report.Ready {
		t.Fatal("report should not be ready")
	}
	for _, status := range report.Dependencies {
		if status.Name == "FFmpeg" && status.Available {
			t.Fatal("missing ffmpeg reported available")
		}
	}
}

func TestWorkdirsListAndPrune(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	dir := seedWorkDir(t, filepath.Join(env.cfg.Paths.WorkRoot, "debate"))

	out, _, err := runCLI(t, []string{"workdirs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("workdirs list: %v", err)
	}
	requireContains(t, out, "debate")
	requireContains(t, out, "recording, chunks, transcript, speakers, stance")

	out, _, err = runCLI(t, []string{"workdirs", "prune", "--older-than", "1h"}, env.configPath)
	if err != nil {
		t.Fatalf("workdirs prune: %v", err)
	}
	requireContains(t, out, "Nothing to prune")
	if _, err := os.Stat(dir.Root); err != nil {
		t.Fatalf("recent work dir should remain: %v", err)
	}
}
