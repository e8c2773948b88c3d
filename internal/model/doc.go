// Package model defines the core data structures used throughout tbrscan.
//
// This package contains the following main types:
//   - ScanParameters: The immutable named numeric inputs of one scan point
//   - RunConfig: A fully concrete solver input (materials, geometry, settings, tallies)
//   - ProcessOutcome: What a finished solver subprocess left behind
//   - RunResult: Aggregated tally values extracted from a solver artifact
//   - ScanReport: The per-point record that flows through the pipeline
//   - ScanSummary: The ordered collection of reports for a whole scan
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The builder, solver, extract, pipeline, database and report
// packages all need these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
