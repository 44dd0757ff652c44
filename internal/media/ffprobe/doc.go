// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual stream properties
//   - Format: container-level metadata (duration, size)
//
// Inspect executes ffprobe through a services.CommandRunner so tests can
// substitute canned JSON.
package ffprobe
