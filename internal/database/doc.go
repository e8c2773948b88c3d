// Package database provides SQLite-based storage for tbrscan.
//
// This package implements the HistoryDB, which stores:
//   - One row per finished scan (tally, template, outcome counts)
//   - One row per scan point (parameters, final state, tally value)
//
// Points are indexed by the canonical key of their parameters, so results
// from earlier scans can be found for a given parameter set.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because the
// history is a single local file and the CGO-free driver keeps the binary
// easy to cross-compile.
package database
