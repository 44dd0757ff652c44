// Package segment splits a recording into fixed-length overlapping chunks and
// cuts the chunk audio files.
package segment

import (
	"fmt"
	"math"

	"debatelens/internal/debate"
	"debatelens/internal/services"
)

// Default chunking parameters in seconds.
const (
	DefaultChunkSeconds   = 10.0
	DefaultOverlapSeconds = 1.0
)

// planEpsilon absorbs float error when D-O is an exact multiple of the step.
const planEpsilon = 1e-9

// Options holds chunk length and overlap in seconds.
type Options struct {
	ChunkSeconds   float64
	OverlapSeconds float64
}

// DefaultOptions returns 10 s chunks overlapping by 1 s.
func DefaultOptions() Options {
	return Options{ChunkSeconds: DefaultChunkSeconds, OverlapSeconds: DefaultOverlapSeconds}
}

// Validate rejects non-positive lengths and overlaps outside [0, length).
func (o Options) Validate() error {
	switch {
	case math.IsNaN(o.ChunkSeconds) || o.ChunkSeconds <= 0:
		return services.Wrap(services.ErrValidation, "slice", "plan", fmt.Sprintf("chunk length must be positive, got %g", o.ChunkSeconds), nil)
	case math.IsNaN(o.OverlapSeconds) || o.OverlapSeconds < 0:
		return services.Wrap(services.ErrValidation, "slice", "plan", fmt.Sprintf("overlap must be non-negative, got %g", o.OverlapSeconds), nil)
	case o.OverlapSeconds >= o.ChunkSeconds:
		return services.Wrap(services.ErrValidation, "slice", "plan", fmt.Sprintf("overlap %g must be less than chunk length %g", o.OverlapSeconds, o.ChunkSeconds), nil)
	}
	return nil
}

// Count returns the number of chunks for a recording of the given duration:
// ceil((D-O)/(L-O)), at least 1.
func Count(duration float64, opts Options) int {
	step := opts.ChunkSeconds - opts.OverlapSeconds
	n := int(math.Ceil((duration-opts.OverlapSeconds)/step - planEpsilon))
	if n < 1 {
		return 1
	}
	return n
}

// Plan computes chunk boundaries. Chunk i starts at i*(L-O) and is L seconds
// long, except the last, which ends at the recording end. Chunk ranges cover
// [0, D) exactly and every chunk but the last overlaps its successor by O.
// Plan has no side effects and returns equal results for equal inputs.
func Plan(duration float64, opts Options) ([]debate.Chunk, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return nil, services.Wrap(services.ErrMissingInput, "slice", "plan", fmt.Sprintf("recording duration must be positive, got %g", duration), nil)
	}

	step := opts.ChunkSeconds - opts.OverlapSeconds
	n := Count(duration, opts)
	chunks := make([]debate.Chunk, 0, n)
	for i := 0; i < n; i++ {
		start := float64(i) * step
		chunk := debate.Chunk{
			Index:   i,
			Start:   start,
			Length:  opts.ChunkSeconds,
			Overlap: opts.OverlapSeconds,
		}
		if i == n-1 {
			chunk.Length = duration - start
			chunk.Overlap = 0
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}
