package debate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"debatelens/internal/fileutil"
	"debatelens/internal/rttm"
	"debatelens/internal/services"
)

// ChunkManifest is the content of chunks.json.
type ChunkManifest struct {
	Recording      string  `json:"recording"`
	Duration       float64 `json:"duration"`
	ChunkSeconds   float64 `json:"chunk_seconds"`
	OverlapSeconds float64 `json:"overlap_seconds"`
	SampleRate     int     `json:"sample_rate"`
	Chunks         []Chunk `json:"chunks"`
}

// TranscriptArtifact is the content of transcript.json.
type TranscriptArtifact struct {
	Model    string              `json:"model,omitempty"`
	Segments []TranscriptSegment `json:"segments"`
	Failures []Failure           `json:"failures"`
}

// DiarizationArtifact is the content of diarization.json, written next to
// speakers.rttm because RTTM has no place for failures.
type DiarizationArtifact struct {
	Model        string    `json:"model,omitempty"`
	SpeakerCount int       `json:"speaker_count"`
	Failures     []Failure `json:"failures"`
}

// StanceArtifact is the content of stance.json.
type StanceArtifact struct {
	Model      string        `json:"model,omitempty"`
	Categories []string      `json:"categories"`
	Scores     []StanceScore `json:"scores"`
	Failures   []Failure     `json:"failures"`
}

// SaveRecording writes recording.json.
func SaveRecording(path string, rec Recording) error {
	return save(path, rec)
}

// LoadRecording reads recording.json.
func LoadRecording(path string) (Recording, error) {
	var rec Recording
	if err := load(path, &rec); err != nil {
		return Recording{}, err
	}
	if rec.Path == "" || rec.Duration <= 0 {
		return Recording{}, malformed(path, errors.New("recording path and positive duration required"))
	}
	return rec, nil
}

// SaveChunks writes chunks.json.
func SaveChunks(path string, manifest ChunkManifest) error {
	return save(path, manifest)
}

// LoadChunks reads chunks.json. Chunks are returned in index order.
func LoadChunks(path string) (ChunkManifest, error) {
	var manifest ChunkManifest
	if err := load(path, &manifest); err != nil {
		return ChunkManifest{}, err
	}
	if len(manifest.Chunks) == 0 {
		return ChunkManifest{}, malformed(path, errors.New("manifest lists no chunks"))
	}
	sort.SliceStable(manifest.Chunks, func(i, j int) bool {
		return manifest.Chunks[i].Index < manifest.Chunks[j].Index
	})
	for i, chunk := range manifest.Chunks {
		if chunk.Index != i {
			return ChunkManifest{}, malformed(path, fmt.Errorf("chunk indexes not contiguous at %d", chunk.Index))
		}
	}
	return manifest, nil
}

// SaveTranscript writes transcript.json.
func SaveTranscript(path string, artifact TranscriptArtifact) error {
	if artifact.Segments == nil {
		artifact.Segments = []TranscriptSegment{}
	}
	if artifact.Failures == nil {
		artifact.Failures = []Failure{}
	}
	return save(path, artifact)
}

// LoadTranscript reads transcript.json.
func LoadTranscript(path string) (TranscriptArtifact, error) {
	var artifact TranscriptArtifact
	if err := load(path, &artifact); err != nil {
		return TranscriptArtifact{}, err
	}
	for _, seg := range artifact.Segments {
		if seg.ID == "" {
			return TranscriptArtifact{}, malformed(path, errors.New("segment without id"))
		}
		if seg.End < seg.Start {
			return TranscriptArtifact{}, malformed(path, fmt.Errorf("segment %s ends before it starts", seg.ID))
		}
	}
	return artifact, nil
}

// SaveChunkText writes the plain-text transcript of one chunk, one segment per line.
func SaveChunkText(path string, segments []TranscriptSegment) error {
	var buf bytes.Buffer
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		buf.WriteString(text)
		buf.WriteByte('\n')
	}
	return fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// SaveSpeakers writes speaker intervals as RTTM.
func SaveSpeakers(path string, name string, intervals []SpeakerInterval) error {
	turns := make([]rttm.Turn, 0, len(intervals))
	for _, iv := range intervals {
		turns = append(turns, rttm.Turn{
			File:     name,
			Channel:  1,
			Onset:    iv.Start,
			Duration: iv.End - iv.Start,
			Speaker:  iv.Speaker,
		})
	}
	var buf bytes.Buffer
	if err := rttm.Write(&buf, turns); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// LoadSpeakers reads an RTTM file into speaker intervals ordered by start time.
func LoadSpeakers(path string) ([]SpeakerInterval, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, missingOrRead(path, err)
	}
	defer file.Close()

	turns, err := rttm.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return IntervalsFromTurns(turns), nil
}

// IntervalsFromTurns converts RTTM turns to speaker intervals ordered by start time.
func IntervalsFromTurns(turns []rttm.Turn) []SpeakerInterval {
	intervals := make([]SpeakerInterval, 0, len(turns))
	for _, turn := range turns {
		intervals = append(intervals, SpeakerInterval{
			Start:   turn.Onset,
			End:     turn.End(),
			Speaker: turn.Speaker,
		})
	}
	sort.SliceStable(intervals, func(i, j int) bool {
		return intervals[i].Start < intervals[j].Start
	})
	return intervals
}

// SaveDiarization writes diarization.json.
func SaveDiarization(path string, artifact DiarizationArtifact) error {
	if artifact.Failures == nil {
		artifact.Failures = []Failure{}
	}
	return save(path, artifact)
}

// LoadDiarization reads diarization.json.
func LoadDiarization(path string) (DiarizationArtifact, error) {
	var artifact DiarizationArtifact
	if err := load(path, &artifact); err != nil {
		return DiarizationArtifact{}, err
	}
	return artifact, nil
}

// SaveStance writes stance.json.
func SaveStance(path string, artifact StanceArtifact) error {
	if artifact.Scores == nil {
		artifact.Scores = []StanceScore{}
	}
	if artifact.Failures == nil {
		artifact.Failures = []Failure{}
	}
	return save(path, artifact)
}

// LoadStance reads stance.json.
func LoadStance(path string) (StanceArtifact, error) {
	var artifact StanceArtifact
	if err := load(path, &artifact); err != nil {
		return StanceArtifact{}, err
	}
	for _, score := range artifact.Scores {
		if score.SegmentID == "" || len(score.Scores) == 0 {
			return StanceArtifact{}, malformed(path, errors.New("stance score without segment id or distribution"))
		}
	}
	return artifact, nil
}

// SaveDocument writes the final document.
func SaveDocument(path string, doc Document) error {
	if doc.Segments == nil {
		doc.Segments = []AnnotatedSegment{}
	}
	if doc.Missing == nil {
		doc.Missing = []Failure{}
	}
	return save(path, doc)
}

// LoadDocument reads a final document.
func LoadDocument(path string) (Document, error) {
	var doc Document
	if err := load(path, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func save(path string, v any) error {
	if err := fileutil.WriteJSON(path, v); err != nil {
		return fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	return nil
}

func load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return missingOrRead(path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return services.Wrap(services.ErrMissingInput, "", "load artifact", filepath.Base(path)+" is empty", nil)
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return malformed(path, err)
	}
	return nil
}

func missingOrRead(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrMissingInput, "", "load artifact", filepath.Base(path)+" not found", nil)
	}
	return fmt.Errorf("read %s: %w", filepath.Base(path), err)
}

func malformed(path string, err error) error {
	return services.Wrap(services.ErrMalformed, "", "load artifact", filepath.Base(path), err)
}
