package workdir_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"debatelens/internal/logging"
	"debatelens/internal/workdir"
)

func makeAgedDir(t *testing.T, root, name string, age time.Duration, files ...string) string {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	for _, file := range files {
		if err := os.WriteFile(filepath.Join(path, file), []byte("{}"), 0o644); err != nil {
			t.Fatalf("write %s: %v", file, err)
		}
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	return path
}

func TestListReportsArtifactsNewestFirst(t *testing.T) {
	root := t.TempDir()
	makeAgedDir(t, root, "older", 3*time.Hour, workdir.RecordingFile)
	makeAgedDir(t, root, "newer", time.Hour, workdir.RecordingFile, workdir.ChunksFile, workdir.DefaultDocumentFile)
	if err := os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	dirs, err := workdir.List(root)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(dirs) != 2 || dirs[0].Name != "newer" || dirs[1].Name != "older" {
		t.Fatalf("unexpected listing %+v", dirs)
	}
	want := []string{"recording", "chunks", "debate_data"}
	if len(dirs[0].Artifacts) != len(want) {
		t.Fatalf("artifacts = %v, want %v", dirs[0].Artifacts, want)
	}
	for i := range want {
		if dirs[0].Artifacts[i] != want[i] {
			t.Fatalf("artifacts = %v, want %v", dirs[0].Artifacts, want)
		}
	}
	if dirs[0].Size != 6 {
		t.Fatalf("size = %d, want 6", dirs[0].Size)
	}
}

func TestListMissingRoot(t *testing.T) {
	dirs, err := workdir.List(filepath.Join(t.TempDir(), "absent"))
	if err != nil || len(dirs) != 0 {
		t.Fatalf("expected empty listing, got %v %v", dirs, err)
	}
}

func TestPruneRemovesOldUnlockedDirectories(t *testing.T) {
	root := t.TempDir()
	old := makeAgedDir(t, root, "old", 48*time.Hour, workdir.RecordingFile)
	busy := makeAgedDir(t, root, "busy", 48*time.Hour)
	recent := makeAgedDir(t, root, "recent", time.Minute)

	busyDir, err := workdir.New(busy)
	if err != nil {
		t.Fatal(err)
	}
	lock, err := busyDir.Lock()
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer lock.Unlock()
	stamp := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(busy, stamp, stamp); err != nil {
		t.Fatal(err)
	}

	result := workdir.Prune(context.Background(), root, 24*time.Hour, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors %+v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != old {
		t.Fatalf("removed = %v, want [%s]", result.Removed, old)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != busy {
		t.Fatalf("skipped = %v, want [%s]", result.Skipped, busy)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("old directory should be gone")
	}
	for _, keep := range []string{busy, recent} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("%s should remain: %v", keep, err)
		}
	}
}
