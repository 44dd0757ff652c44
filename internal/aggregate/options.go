package aggregate

import (
	"fmt"

	"debatelens/internal/services"
)

// SpeakerPolicy orders the labels attached to one segment.
type SpeakerPolicy string

const (
	// SpeakerMajority orders labels by total overlap, largest first.
	SpeakerMajority SpeakerPolicy = "majority"
	// SpeakerFirst orders labels by their earliest overlapping interval.
	SpeakerFirst SpeakerPolicy = "first"
)

// DedupPolicy decides what happens to text repeated in a chunk overlap region.
type DedupPolicy string

const (
	// DedupConfidence keeps the more confident of two segments from different
	// chunks that overlap by at least half of the shorter one.
	DedupConfidence DedupPolicy = "confidence"
	// DedupNone keeps every segment.
	DedupNone DedupPolicy = "none"
)

// DefaultMinOverlapFraction is the share of a segment a speaker interval must exceed.
const DefaultMinOverlapFraction = 0.10

// Options configures Merge.
type Options struct {
	MinOverlapFraction float64
	SpeakerPolicy      SpeakerPolicy
	Dedup              DedupPolicy
	// KeepGoing records segments without a stance score as missing instead of failing.
	KeepGoing bool
}

// DefaultOptions returns the standard merge behaviour.
func DefaultOptions() Options {
	return Options{
		MinOverlapFraction: DefaultMinOverlapFraction,
		SpeakerPolicy:      SpeakerMajority,
		Dedup:              DedupConfidence,
	}
}

func (o Options) validate() error {
	if o.MinOverlapFraction < 0 || o.MinOverlapFraction >= 1 {
		return services.Wrap(services.ErrValidation, "merge", "options", fmt.Sprintf("min overlap fraction %g outside [0, 1)", o.MinOverlapFraction), nil)
	}
	switch o.SpeakerPolicy {
	case SpeakerMajority, SpeakerFirst:
	default:
		return services.Wrap(services.ErrValidation, "merge", "options", fmt.Sprintf("unknown speaker policy %q", o.SpeakerPolicy), nil)
	}
	switch o.Dedup {
	case DedupConfidence, DedupNone:
	default:
		return services.Wrap(services.ErrValidation, "merge", "options", fmt.Sprintf("unknown dedup policy %q", o.Dedup), nil)
	}
	return nil
}
