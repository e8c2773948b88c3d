// Package main provides the entry point for the tbrscan CLI.
//
// tbrscan runs parametric studies of a tritium breeding blanket. Every scan
// point is rendered from a geometry template into solver input files, run
// through the transport solver in its own working directory and reduced to
// the tritium breeding ratio with its statistical uncertainty.
//
// Usage:
//
//	tbrscan scan --param inner_radius=50 --sweep outer_radius=100:200:5
//	tbrscan history
//
// See --help for all available options.
package main

// main is the entry point for tbrscan.
func main() {
	Execute()
}
