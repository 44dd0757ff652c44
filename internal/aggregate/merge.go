package aggregate

import (
	"fmt"
	"math"
	"sort"

	"debatelens/internal/debate"
	"debatelens/internal/services"
)

const stageName = "merge"

// Input holds everything the earlier stages produced.
type Input struct {
	Segments  []debate.TranscriptSegment
	Intervals []debate.SpeakerInterval
	Scores    []debate.StanceScore

	// Categories seeds the stance distribution so every category has a count.
	Categories []string

	// Failures recorded by earlier stages; carried into Result.Missing.
	Failures []debate.Failure
}

// Result is the merged output.
type Result struct {
	Segments   []debate.AnnotatedSegment
	Missing    []debate.Failure
	Statistics debate.Statistics
	// Dropped counts segments removed as duplicates.
	Dropped int
}

// Merge joins segments with speakers and stance scores. The output is ordered
// by (start, end, chunk index) so start times never decrease.
func Merge(in Input, opts Options) (Result, error) {
	if err := opts.validate(); err != nil {
		return Result{}, err
	}

	segments := append([]debate.TranscriptSegment(nil), in.Segments...)
	sortSegments(segments)

	scores := make(map[string]debate.StanceScore, len(in.Scores))
	for _, score := range in.Scores {
		scores[score.SegmentID] = score
	}

	dropped := 0
	if opts.Dedup == DedupConfidence {
		before := len(segments)
		segments = dedupByConfidence(segments, scores)
		dropped = before - len(segments)
	}
	failed := make(map[string]struct{}, len(in.Failures))
	for _, failure := range in.Failures {
		failed[failure.Item] = struct{}{}
	}

	intervals := append([]debate.SpeakerInterval(nil), in.Intervals...)
	sort.SliceStable(intervals, func(i, j int) bool { return intervals[i].Start < intervals[j].Start })

	missing := append([]debate.Failure(nil), in.Failures...)
	annotated := make([]debate.AnnotatedSegment, 0, len(segments))
	for _, seg := range segments {
		score, ok := scores[seg.ID]
		if !ok {
			if _, known := failed[seg.ID]; known {
				continue
			}
			if !opts.KeepGoing {
				return Result{}, services.Wrap(services.ErrMalformed, stageName, "join stance", fmt.Sprintf("segment %s has no stance score", seg.ID), nil)
			}
			missing = append(missing, debate.Failure{Stage: stageName, Item: seg.ID, Error: "no stance score"})
			continue
		}

		speakers := attachSpeakers(seg, intervals, opts)
		out := debate.AnnotatedSegment{
			ID:         seg.ID,
			ChunkIndex: seg.ChunkIndex,
			Start:      seg.Start,
			End:        seg.End,
			Speakers:   speakers,
			Text:       seg.Text,
			Stance:     score.Scores,
			Dominant:   score.Dominant,
			Confidence: score.Confidence,
		}
		if len(speakers) > 0 {
			out.Speaker = speakers[0]
		}
		annotated = append(annotated, out)
	}

	sort.SliceStable(annotated, func(i, j int) bool {
		a, b := annotated[i], annotated[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		if a.ChunkIndex != b.ChunkIndex {
			return a.ChunkIndex < b.ChunkIndex
		}
		return a.ID < b.ID
	})

	return Result{
		Segments:   annotated,
		Missing:    missing,
		Statistics: Summarize(annotated, intervals, in.Categories, len(missing)),
		Dropped:    dropped,
	}, nil
}

func sortSegments(segments []debate.TranscriptSegment) {
	sort.SliceStable(segments, func(i, j int) bool {
		a, b := segments[i], segments[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		if a.ChunkIndex != b.ChunkIndex {
			return a.ChunkIndex < b.ChunkIndex
		}
		return a.ID < b.ID
	})
}

// dedupByConfidence keeps one segment of every cross-chunk duplicate pair. A
// copy with a stance score beats one without; otherwise the more confident one
// wins, or the one from the earlier chunk on a tie.
func dedupByConfidence(segments []debate.TranscriptSegment, scores map[string]debate.StanceScore) []debate.TranscriptSegment {
	kept := make([]debate.TranscriptSegment, 0, len(segments))
	for _, seg := range segments {
		rival := -1
		for j := len(kept) - 1; j >= 0; j-- {
			if kept[j].ChunkIndex != seg.ChunkIndex && duplicates(kept[j], seg) {
				rival = j
				break
			}
		}
		if rival < 0 {
			kept = append(kept, seg)
			continue
		}
		if prefer(seg, kept[rival], scores) {
			kept[rival] = seg
		}
	}
	sortSegments(kept)
	return kept
}

func duplicates(a, b debate.TranscriptSegment) bool {
	shorter := math.Min(a.Duration(), b.Duration())
	ov := overlap(a.Start, a.End, b.Start, b.End)
	if shorter == 0 {
		return a.Start == b.Start && a.End == b.End
	}
	return ov > 0 && ov >= shorter/2
}

// prefer reports whether candidate should replace incumbent.
func prefer(candidate, incumbent debate.TranscriptSegment, scores map[string]debate.StanceScore) bool {
	_, candidateScored := scores[candidate.ID]
	_, incumbentScored := scores[incumbent.ID]
	if candidateScored != incumbentScored {
		return candidateScored
	}
	if candidate.Confidence != incumbent.Confidence {
		return candidate.Confidence > incumbent.Confidence
	}
	return candidate.ChunkIndex < incumbent.ChunkIndex
}

type labelWeight struct {
	label    string
	overlap  float64
	earliest float64
}

func attachSpeakers(seg debate.TranscriptSegment, intervals []debate.SpeakerInterval, opts Options) []string {
	duration := seg.Duration()
	weights := map[string]*labelWeight{}
	order := make([]string, 0, 2)
	for _, iv := range intervals {
		if iv.Start > seg.End {
			break
		}
		var attached bool
		ov := overlap(seg.Start, seg.End, iv.Start, iv.End)
		if duration == 0 {
			attached = iv.Start <= seg.Start && seg.Start < iv.End
		} else {
			attached = ov/duration > opts.MinOverlapFraction
		}
		if !attached {
			continue
		}
		w, ok := weights[iv.Speaker]
		if !ok {
			w = &labelWeight{label: iv.Speaker, earliest: iv.Start}
			weights[iv.Speaker] = w
			order = append(order, iv.Speaker)
		}
		w.overlap += ov
		if iv.Start < w.earliest {
			w.earliest = iv.Start
		}
	}

	ranked := make([]*labelWeight, 0, len(order))
	for _, label := range order {
		ranked = append(ranked, weights[label])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if opts.SpeakerPolicy == SpeakerMajority && a.overlap != b.overlap {
			return a.overlap > b.overlap
		}
		if a.earliest != b.earliest {
			return a.earliest < b.earliest
		}
		return a.label < b.label
	})

	labels := make([]string, 0, len(ranked))
	for _, w := range ranked {
		labels = append(labels, w.label)
	}
	return labels
}

func overlap(aStart, aEnd, bStart, bEnd float64) float64 {
	return math.Max(0, math.Min(aEnd, bEnd)-math.Max(aStart, bStart))
}
