// Package workdir fixes the layout of a run's working directory and guards it
// with an exclusive file lock so two runs never write the same artifacts.
package workdir

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	"debatelens/internal/debate"
	"debatelens/internal/services"
	"debatelens/internal/textutil"
)

// Artifact file names.
const (
	RecordingFile       = "recording.json"
	ChunksFile          = "chunks.json"
	TranscriptFile      = "transcript.json"
	SpeakersFile        = "speakers.rttm"
	DiarizationFile     = "diarization.json"
	StanceFile          = "stance.json"
	DefaultDocumentFile = "debate_data.json"
	SourceAudioFile     = "source.wav"
	LockFile            = ".debatelens.lock"
)

// Dir is a run working directory.
type Dir struct {
	Root string
}

// New returns the Dir rooted at root, made absolute.
func New(root string) (Dir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return Dir{}, services.Wrap(services.ErrValidation, "", "workdir", "directory required", nil)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Dir{}, fmt.Errorf("resolve work dir %q: %w", root, err)
	}
	return Dir{Root: abs}, nil
}

// ForSource derives a directory under workRoot named after a recording path or URL.
func ForSource(workRoot, source string) (Dir, error) {
	return New(filepath.Join(workRoot, sourceSlug(source)))
}

func sourceSlug(source string) string {
	source = strings.TrimSpace(source)
	if IsURL(source) {
		if parsed, err := url.Parse(source); err == nil {
			name := parsed.Query().Get("v")
			if name == "" {
				name = strings.Trim(parsed.Path, "/")
			}
			if name == "" {
				name = parsed.Host
			}
			return textutil.SanitizeToken(name)
		}
	}
	base := filepath.Base(source)
	return textutil.SanitizeToken(strings.TrimSuffix(base, filepath.Ext(base)))
}

// IsURL reports whether source looks like an http(s) URL rather than a path.
func IsURL(source string) bool {
	lower := strings.ToLower(strings.TrimSpace(source))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Ensure creates the directory.
func (d Dir) Ensure() error {
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	return nil
}

// RequireExisting fails with a missing-input error when the directory is absent.
func (d Dir) RequireExisting() error {
	info, err := os.Stat(d.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrMissingInput, "", "workdir", d.Root+" does not exist", nil)
		}
		return fmt.Errorf("stat work dir: %w", err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrMissingInput, "", "workdir", d.Root+" is not a directory", nil)
	}
	return nil
}

// Path returns name joined onto the directory root. Every artifact path is
// built through it so the layout lives in one place.
func (d Dir) Path(name string) string { return filepath.Join(d.Root, name) }

// RecordingPath returns the recording.json path.
func (d Dir) RecordingPath() string { return d.Path(RecordingFile) }

// ChunksPath returns the chunks.json manifest path.
func (d Dir) ChunksPath() string { return d.Path(ChunksFile) }

// TranscriptPath returns the transcript.json path.
func (d Dir) TranscriptPath() string { return d.Path(TranscriptFile) }

// SpeakersPath returns the speakers.rttm path.
func (d Dir) SpeakersPath() string { return d.Path(SpeakersFile) }

// DiarizationPath returns the diarization.json failure sidecar path.
func (d Dir) DiarizationPath() string { return d.Path(DiarizationFile) }

// StancePath returns the stance.json path.
func (d Dir) StancePath() string { return d.Path(StanceFile) }

// SourceAudioPath returns where fetched audio is stored.
func (d Dir) SourceAudioPath() string { return d.Path(SourceAudioFile) }

// DocumentPath returns the final document path; an empty name uses the default.
func (d Dir) DocumentPath(name string) string {
	if strings.TrimSpace(name) == "" {
		name = DefaultDocumentFile
	}
	return d.Path(name)
}

// ChunkAudioPath returns chunk_0000.wav style paths.
func (d Dir) ChunkAudioPath(index int) string {
	return d.Path(debate.ChunkName(index) + ".wav")
}

// ChunkTextPath returns chunk_0000.txt style paths.
func (d Dir) ChunkTextPath(index int) string {
	return d.Path(debate.ChunkName(index) + ".txt")
}

// ChunkAudioFiles lists chunk WAV files currently present, in index order.
// Indexes past chunk_9999 are matched too.
func (d Dir) ChunkAudioFiles() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(d.Root, "chunk_*.wav"))
	if err != nil {
		return nil, err
	}
	type indexed struct {
		index int
		path  string
	}
	chunks := make([]indexed, 0, len(matches))
	for _, path := range matches {
		if index, ok := chunkIndex(filepath.Base(path)); ok {
			chunks = append(chunks, indexed{index: index, path: path})
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].index < chunks[j].index })
	files := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		files = append(files, chunk.path)
	}
	return files, nil
}

// chunkIndex parses chunk_<digits>.wav.
func chunkIndex(name string) (int, bool) {
	digits := strings.TrimSuffix(strings.TrimPrefix(name, "chunk_"), ".wav")
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	index, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return index, true
}

// Lock is a held work directory lock.
type Lock struct {
	lock *flock.Flock
}

// Lock acquires the directory lock without blocking. A directory already
// locked by another process yields services.ErrBusy.
func (d Dir) Lock() (*Lock, error) {
	if err := d.Ensure(); err != nil {
		return nil, err
	}
	lock := flock.New(d.Path(LockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrBusy, "", "lock", "another debatelens run is using "+d.Root, nil)
	}
	return &Lock{lock: lock}, nil
}

// Unlock releases the lock. Safe on a nil receiver.
func (l *Lock) Unlock() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
