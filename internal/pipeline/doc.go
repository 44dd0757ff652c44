// Package pipeline runs the debatelens stages against a work directory.
//
// Each stage reads the artifacts of the stages before it, writes its own
// artifact and can therefore run on its own. Run chains every stage in-process
// under one work directory lock. Every public entry point holds the lock for
// its whole duration, logs stage_start/stage_complete/stage_failure events and
// records a row in the run ledger when one is configured.
//
// Per-item model calls (chunks for transcription, segments for stance) run
// with bounded parallelism; results are assembled by index so output order
// never depends on scheduling. With keep_going an item failure is recorded in
// the stage artifact instead of halting the stage.
package pipeline
