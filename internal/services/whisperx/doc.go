// Package whisperx transcribes chunk audio by running WhisperX through uvx and
// reading its JSON output.
//
// Segment times in the results are relative to the chunk start. Segment
// confidence is the mean of the aligned word scores.
package whisperx
