// Package debate defines the records that flow between pipeline stages and the
// load/save functions for the artifacts each stage leaves in a work directory.
//
// All times are seconds from the start of the recording. Stages never read or
// write artifact files directly; they go through the functions in
// artifacts.go so the on-disk shape has a single owner.
package debate
