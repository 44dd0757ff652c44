// Package main hosts the debatelens CLI entrypoint and command graph.
//
// Each pipeline stage is its own subcommand operating on a work directory, so
// a run can be resumed or repeated one stage at a time; "run" chains them.
// Configuration, the run ledger and logging are resolved once per invocation
// in commandContext; the stages themselves live in internal/pipeline.
package main
