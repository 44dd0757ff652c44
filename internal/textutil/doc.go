// Package textutil provides small text helpers shared by the CLI and stages:
// filesystem-safe tokens for work directory names, display casing for
// category names, whitespace normalization for transcript text, and
// rune-aware truncation for table cells.
package textutil
