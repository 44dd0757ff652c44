// Package demo builds a synthetic annotated document so viewers and the
// summary command can be exercised without audio or model backends.
package demo

import (
	"math/rand/v2"
	"time"

	"debatelens/internal/aggregate"
	"debatelens/internal/debate"
	"debatelens/internal/stance"
)

const (
	chunkSeconds   = 10.0
	overlapSeconds = 1.0
	speechSeconds  = 8.5
	source         = "demo"
)

// Categories are the stance categories the demo document is scored over.
var Categories = []string{"conservative", "liberal", "moderate"}

type line struct {
	speaker string
	stance  string
	text    string
}

var script = []line{
	{"SPEAKER_00", "liberal", "I believe we need stronger environmental regulations to combat climate change and protect our planet for future generations."},
	{"SPEAKER_01", "moderate", "While I agree we need to protect the environment, we must also consider the economic impact on businesses and jobs in traditional industries."},
	{"SPEAKER_00", "liberal", "Healthcare is a fundamental human right, and we should expand Medicare to cover all Americans regardless of their ability to pay."},
	{"SPEAKER_01", "conservative", "Free market solutions and competition between insurance providers will naturally drive down costs and improve quality of care."},
	{"SPEAKER_00", "liberal", "We need to increase taxes on the wealthy and corporations to fund critical social programs and infrastructure investments."},
	{"SPEAKER_01", "conservative", "Lower taxes and reduced government spending will stimulate economic growth and create more opportunities for all Americans."},
	{"SPEAKER_00", "liberal", "Immigration has always been a source of strength for our country, bringing diverse perspectives and valuable skills to our communities."},
	{"SPEAKER_01", "conservative", "We need secure borders and a merit-based immigration system that prioritizes the skills our economy needs most."},
	{"SPEAKER_00", "moderate", "I think we can find common ground on infrastructure spending, it's something that benefits everyone regardless of political affiliation."},
	{"SPEAKER_01", "moderate", "Absolutely, investing in roads, bridges, and broadband is essential for our economic competitiveness and should be a bipartisan priority."},
}

// Options configures Document.
type Options struct {
	// Seed makes the generated scores reproducible.
	Seed uint64
	Now  time.Time
}

// Document returns a debate of alternating speakers, one segment per chunk,
// with stance scores drawn around each line's intended stance. The document
// goes through the same merge as a real run, so its statistics are consistent.
func Document(opts Options) (debate.Document, error) {
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	step := chunkSeconds - overlapSeconds

	segments := make([]debate.TranscriptSegment, 0, len(script))
	intervals := make([]debate.SpeakerInterval, 0, len(script))
	scores := make([]debate.StanceScore, 0, len(script))
	for i, l := range script {
		start := float64(i) * step
		id := debate.SegmentID(i, 1)
		segments = append(segments, debate.TranscriptSegment{
			ID:         id,
			ChunkIndex: i,
			Start:      start,
			End:        start + speechSeconds,
			Text:       l.text,
			Confidence: between(rng, 0.7, 0.95),
		})
		intervals = append(intervals, debate.SpeakerInterval{Start: start, End: start + speechSeconds, Speaker: l.speaker})
		score := stance.Distribution(Categories, leaning(rng, l.stance))
		score.SegmentID = id
		scores = append(scores, score)
	}

	result, err := aggregate.Merge(aggregate.Input{
		Segments:   segments,
		Intervals:  intervals,
		Scores:     scores,
		Categories: Categories,
	}, aggregate.DefaultOptions())
	if err != nil {
		return debate.Document{}, err
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	return debate.Document{
		Metadata: debate.Metadata{
			Source:         source,
			Duration:       float64(len(script)-1)*step + chunkSeconds,
			ChunkSeconds:   chunkSeconds,
			OverlapSeconds: overlapSeconds,
			ChunkCount:     len(script),
			Categories:     append([]string(nil), Categories...),
			CreatedAt:      now.UTC().Format(time.RFC3339),
		},
		Statistics: result.Statistics,
		Segments:   result.Segments,
		Missing:    result.Missing,
	}, nil
}

// leaning draws raw similarities in Categories order. The intended stance
// always draws from a range above every other category's range.
func leaning(rng *rand.Rand, intended string) []float64 {
	switch intended {
	case "liberal":
		return []float64{between(rng, 0.05, 0.25), between(rng, 0.6, 0.9), between(rng, 0.1, 0.3)}
	case "conservative":
		return []float64{between(rng, 0.6, 0.9), between(rng, 0.05, 0.25), between(rng, 0.1, 0.3)}
	default:
		return []float64{between(rng, 0.2, 0.4), between(rng, 0.2, 0.4), between(rng, 0.45, 0.7)}
	}
}

func between(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
