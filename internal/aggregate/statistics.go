package aggregate

import (
	"sort"
	"unicode/utf8"

	"debatelens/internal/debate"
)

// Summarize computes document statistics. Speakers are all labels present in
// the diarization, whether or not they were attached to a segment. Every entry
// of categories appears in the stance distribution, with zero when no segment
// was dominated by it.
func Summarize(segments []debate.AnnotatedSegment, intervals []debate.SpeakerInterval, categories []string, failures int) debate.Statistics {
	stats := debate.Statistics{
		TotalSegments:      len(segments),
		StanceDistribution: map[string]int{},
		Speakers:           []string{},
		FailureCount:       failures,
	}
	for _, category := range categories {
		stats.StanceDistribution[category] = 0
	}
	labels := map[string]struct{}{}
	for _, iv := range intervals {
		labels[iv.Speaker] = struct{}{}
	}
	for _, seg := range segments {
		if seg.End > stats.TotalDuration {
			stats.TotalDuration = seg.End
		}
		if len(seg.Speakers) > 0 {
			stats.SegmentsWithSpeaker++
		}
		for _, label := range seg.Speakers {
			labels[label] = struct{}{}
		}
		if seg.Dominant != "" {
			stats.StanceDistribution[seg.Dominant]++
		}
		stats.TotalTextLength += utf8.RuneCountInString(seg.Text)
	}
	for label := range labels {
		stats.Speakers = append(stats.Speakers, label)
	}
	sort.Strings(stats.Speakers)
	stats.SpeakerCount = len(stats.Speakers)
	return stats
}
