package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for tbrscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tbrscan",
		Short: "Parametric tritium breeding ratio scans",
		Long: `tbrscan runs parametric studies of a tritium breeding blanket.

Each scan point is built from a geometry template, simulated by the
transport solver (OpenMC by default) in its own working directory, and
reduced to the tritium breeding ratio and its standard deviation.
Finished scans are kept in a history database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewTemplateCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
