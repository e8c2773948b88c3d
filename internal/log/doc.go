// Package log provides the slog loggers used by tbrscan.
//
// Solver failures carry the tail of the solver's output, which can run to
// several kilobytes. The TruncatingHandler shortens long string attributes
// so a failing point logs a readable line:
//   - Strings longer than the limit keep their last runes, prefixed by a
//     marker with the number of dropped bytes
//   - Groups are handled recursively
//   - Every other kind of value passes through untouched
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, true) // verbose=true
//
//	logger.Warn("scan point failed",
//	    "point", 3,
//	    "output", outcome.OutputTail, // shortened to DefaultMaxLen
//	)
//
//	slog.SetDefault(logger)
package log
