// Package services defines shared utilities consumed by the pipeline stages
// and the external model integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and item identifiers
//     (chunk or segment IDs) for logging.
//   - Structured error markers plus the Wrap helper that classify failures as
//     missing input, external tool failure, malformed intermediate data, or
//     invalid configuration.
//   - A CommandRunner abstraction so subprocess-driven backends (ffmpeg,
//     whisperx, pyannote, yt-dlp) can be faked in tests.
//
// Use these helpers when wiring new stage logic so error reporting and
// observability stay uniform across the pipeline.
package services
