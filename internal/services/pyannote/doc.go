// Package pyannote runs pyannote.audio speaker diarization through uvx.
//
// An embedded Python script loads the configured pipeline, diarizes the whole
// recording and prints RTTM records on stdout, which are parsed into speaker
// intervals. A Hugging Face token with access to the gated pyannote models is
// required.
package pyannote
