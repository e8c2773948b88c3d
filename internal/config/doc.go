// Package config provides configuration structures and utilities for tbrscan.
// It defines the solver invocation settings, the scan layout and report
// preferences, and resolves them from defaults, the .tbrscan YAML file,
// TBRSCAN_* environment variables and command line flags, in that order of
// increasing precedence.
package config
