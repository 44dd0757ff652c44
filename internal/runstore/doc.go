// Package runstore keeps the run ledger: one SQLite row per stage execution
// plus the items each execution could not process.
//
// The database lives under the configured state directory and is opened in WAL
// mode so concurrent CLI invocations against different work directories can
// record their runs without blocking each other for long. Writes retry briefly
// on SQLITE_BUSY.
package runstore
