// Package preflight checks that the directories, credentials, services and
// binaries a configured pipeline needs are in place before any stage runs.
//
// The doctor command renders RunAll and CheckSystemDeps side by side. Checks
// for backends that are not selected are skipped.
package preflight
