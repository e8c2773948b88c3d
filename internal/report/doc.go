// Package report provides scan summary output.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - JSONWriter: Structured JSON output for tool integration
//   - MarkdownWriter: Markdown for lab notebooks and pull requests
//   - CSVWriter: One row per scan point for spreadsheets and plotting
//
// Design decision: We separate report writing from report data structures
// (which are in the model package) so new output formats never touch the
// scan types.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
