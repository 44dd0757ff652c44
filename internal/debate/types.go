package debate

import (
	"fmt"
	"math"
)

// Recording is the audio file a run operates on. It is probed once per run.
type Recording struct {
	Path       string  `json:"path"`
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sample_rate"`
	// Source is the URL or original path the recording was derived from.
	Source string `json:"source,omitempty"`
}

// Chunk is one fixed-length window of the recording.
type Chunk struct {
	Index  int     `json:"index"`
	Start  float64 `json:"start"`
	Length float64 `json:"length"`
	// Overlap is the overlap with the next chunk; zero for the last chunk.
	Overlap float64 `json:"overlap"`
	Path    string  `json:"path"`
}

// End returns the absolute end time of the chunk.
func (c Chunk) End() float64 {
	return c.Start + c.Length
}

// Name is the identifier used for the chunk in logs, failures, and file names.
func (c Chunk) Name() string {
	return ChunkName(c.Index)
}

// ChunkName formats a chunk index as chunk_0000.
func ChunkName(index int) string {
	return fmt.Sprintf("chunk_%04d", index)
}

// TranscriptSegment is a span of recognised text with absolute times.
type TranscriptSegment struct {
	ID         string  `json:"id"`
	ChunkIndex int     `json:"chunk_index"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Duration returns End-Start, never negative.
func (s TranscriptSegment) Duration() float64 {
	return math.Max(0, s.End-s.Start)
}

// SegmentID formats the identifier of the seq-th segment (1-based) of a chunk.
func SegmentID(chunkIndex, seq int) string {
	return fmt.Sprintf("c%04d-s%03d", chunkIndex, seq)
}

// SpeakerInterval is a diarization result. Labels are only meaningful within one run.
type SpeakerInterval struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// StanceScore is a probability distribution over stance categories for one segment.
type StanceScore struct {
	SegmentID  string             `json:"segment_id"`
	Scores     map[string]float64 `json:"scores"`
	Dominant   string             `json:"dominant"`
	Confidence float64            `json:"confidence"`
}

// AnnotatedSegment joins one transcript span with its speakers and stance.
type AnnotatedSegment struct {
	ID         string             `json:"id"`
	ChunkIndex int                `json:"chunk_index"`
	Start      float64            `json:"start"`
	End        float64            `json:"end"`
	Speaker    string             `json:"speaker,omitempty"`
	Speakers   []string           `json:"speakers"`
	Text       string             `json:"text"`
	Stance     map[string]float64 `json:"stance"`
	Dominant   string             `json:"dominant"`
	Confidence float64            `json:"confidence"`
}

// Failure identifies an item a stage could not process.
type Failure struct {
	Stage string `json:"stage"`
	Item  string `json:"item"`
	Error string `json:"error"`
}

// Metadata describes how a Document was produced.
type Metadata struct {
	Source         string   `json:"source"`
	Duration       float64  `json:"duration"`
	ChunkSeconds   float64  `json:"chunk_seconds"`
	OverlapSeconds float64  `json:"overlap_seconds"`
	ChunkCount     int      `json:"chunk_count"`
	Categories     []string `json:"categories"`
	CreatedAt      string   `json:"created_at"`
	RunID          string   `json:"run_id,omitempty"`
}

// Statistics summarises a Document.
type Statistics struct {
	TotalSegments       int            `json:"total_segments"`
	TotalDuration       float64        `json:"total_duration"`
	SegmentsWithSpeaker int            `json:"segments_with_speaker"`
	Speakers            []string       `json:"speakers"`
	SpeakerCount        int            `json:"speaker_count"`
	StanceDistribution  map[string]int `json:"stance_distribution"`
	TotalTextLength     int            `json:"total_text_length"`
	FailureCount        int            `json:"failure_count"`
}

// Document is the final pipeline output. Segments are ordered by start time.
type Document struct {
	Metadata   Metadata           `json:"metadata"`
	Statistics Statistics         `json:"statistics"`
	Segments   []AnnotatedSegment `json:"segments"`
	Missing    []Failure          `json:"missing"`
}
