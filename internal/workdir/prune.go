package workdir

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"debatelens/internal/logging"
	"debatelens/internal/services"
)

// Info describes one work directory under the work root.
type Info struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
	// Artifacts lists the stage outputs present, in pipeline order.
	Artifacts []string
}

// PruneResult reports what Prune removed and what it could not.
type PruneResult struct {
	Removed []string
	Skipped []string
	Errors  []PruneError
}

// PruneError pairs a directory with the reason it was not removed.
type PruneError struct {
	Path  string
	Error error
}

var artifactOrder = []string{RecordingFile, ChunksFile, TranscriptFile, SpeakersFile, StanceFile, DefaultDocumentFile}

// List returns the directories under workRoot, newest first. A missing root
// yields an empty list.
func List(workRoot string) ([]Info, error) {
	workRoot = strings.TrimSpace(workRoot)
	if workRoot == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(workRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(workRoot, entry.Name())
		size, _ := dirSize(path)
		dirs = append(dirs, Info{
			Name:      entry.Name(),
			Path:      path,
			ModTime:   info.ModTime(),
			Size:      size,
			Artifacts: presentArtifacts(path),
		})
	}
	sort.SliceStable(dirs, func(i, j int) bool { return dirs[i].ModTime.After(dirs[j].ModTime) })
	return dirs, nil
}

// Prune removes work directories whose modification time is older than
// maxAge. Directories locked by a running stage are skipped.
func Prune(ctx context.Context, workRoot string, maxAge time.Duration, logger *slog.Logger) PruneResult {
	var result PruneResult
	if logger == nil {
		logger = logging.NewNop()
	}
	dirs, err := List(workRoot)
	if err != nil {
		result.Errors = append(result.Errors, PruneError{Path: workRoot, Error: err})
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, info := range dirs {
		if ctx.Err() != nil {
			break
		}
		if !info.ModTime.Before(cutoff) {
			continue
		}
		if err := removeUnlocked(Dir{Root: info.Path}); err != nil {
			if errors.Is(err, services.ErrBusy) {
				result.Skipped = append(result.Skipped, info.Path)
				logger.Info("skipping busy work directory",
					logging.String("path", info.Path),
					logging.String(logging.FieldEventType, "workdir_prune_skipped"),
				)
				continue
			}
			result.Errors = append(result.Errors, PruneError{Path: info.Path, Error: err})
			logger.Warn("failed to remove work directory",
				logging.String("path", info.Path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "workdir_prune_failed"),
				logging.String(logging.FieldErrorHint, "check paths.work_root permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, info.Path)
		logger.Info("removed work directory",
			logging.String("path", info.Path),
			logging.Duration("age", time.Since(info.ModTime)),
			logging.String(logging.FieldEventType, "workdir_prune"),
		)
	}
	return result
}

func removeUnlocked(d Dir) error {
	lock, err := d.Lock()
	if err != nil {
		return err
	}
	removeErr := os.RemoveAll(d.Root)
	_ = lock.Unlock()
	return removeErr
}

func presentArtifacts(path string) []string {
	var present []string
	for _, name := range artifactOrder {
		if _, err := os.Stat(filepath.Join(path, name)); err == nil {
			present = append(present, strings.TrimSuffix(name, filepath.Ext(name)))
		}
	}
	return present
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, entry os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		if info, infoErr := entry.Info(); infoErr == nil {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
