package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/tbrscan/internal/config"
	"github.com/nao1215/tbrscan/internal/database"
	"github.com/nao1215/tbrscan/internal/model"
	"github.com/spf13/cobra"
)

// historyTimeFormat is the timestamp layout of history listings.
const historyTimeFormat = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
// This command shows scans stored in the history database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [scan-id]",
		Short: "Show stored scans and their results",
		Long: `History displays scans saved by 'tbrscan scan'.

Without arguments every stored scan is listed, newest first. With a scan
ID (or a unique prefix of one) the points of that scan are shown with their
results. With --params the results of every stored point evaluated at
exactly that parameter set are shown, across all scans.

Examples:
  # List all scans
  tbrscan history

  # Show the points of one scan
  tbrscan history 3f2a9c1e

  # Find earlier results for a parameter set
  tbrscan history --params enrichment_fraction=0.6 --params inner_radius=500 \
    --params outer_radius=600

  # Output in JSON format
  tbrscan history --json 3f2a9c1e`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringArray("params", nil,
		"Find stored results for the parameter set name=value (repeatable)")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	assignments, err := cmd.Flags().GetStringArray("params")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database
	if len(args) > 0 && len(assignments) > 0 {
		return errors.New("give either a scan ID or --params, not both")
	}
	var params model.ScanParameters
	if len(assignments) > 0 {
		values := make(map[string]float64, len(assignments))
		for _, a := range assignments {
			name, value, err := model.ParseAssignment(a)
			if err != nil {
				return fmt.Errorf("invalid --params: %w", err)
			}
			values[name] = value
		}
		params = model.NewScanParameters(values)
	}

	dbDir, err := historyDBDir(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(filepath.Join(dbDir, database.FileName)); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(out, "No scan history found.")
		fmt.Fprintln(out, "\nUse 'tbrscan scan' to run a scan.")
		return nil
	}

	db, err := database.Open(dbDir, database.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	switch {
	case len(args) == 1:
		scan, err := db.GetScan(ctx, args[0])
		if err != nil {
			return err
		}
		if scan == nil {
			return fmt.Errorf("no scan with ID %q", args[0])
		}
		points, err := db.GetScanPoints(ctx, scan.ID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeHistoryJSON(out, struct {
				Scan   database.ScanRecord    `json:"scan"`
				Points []database.PointRecord `json:"points"`
			}{*scan, points})
		}
		printScanPoints(out, scan, points)
		return nil

	case params.Len() > 0:
		points, err := db.FindResults(ctx, params)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeHistoryJSON(out, points)
		}
		printResults(out, params, points)
		return nil

	default:
		scans, err := db.ListScans(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeHistoryJSON(out, scans)
		}
		printScans(out, scans)
		return nil
	}
}

// historyDBDir resolves the database directory from the flag, the
// environment and the XDG default, in decreasing precedence.
func historyDBDir(cmd *cobra.Command) (string, error) {
	dir, err := cmd.Flags().GetString("db-dir")
	if err != nil || dir != "" {
		return dir, err
	}
	cfg := config.NewConfig()
	env, err := config.LoadEnv()
	if err != nil {
		return "", err
	}
	env.Apply(cfg)
	return cfg.DBDir, nil
}

// printScans lists stored scans.
func printScans(out io.Writer, scans []database.ScanRecord) {
	if len(scans) == 0 {
		fmt.Fprintln(out, "No scan history found.")
		return
	}

	fmt.Fprintf(out, "Stored scans (%d):\n\n", len(scans))
	fmt.Fprintf(out, "  %-8s  %-19s  %-20s  %-6s  %s\n", "ID", "Started", "Template", "Tally", "Points")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 76))

	for _, s := range scans {
		fmt.Fprintf(out, "  %-8s  %-19s  %-20s  %-6s  %d (%d failed)\n",
			shortID(s.ID),
			s.StartedAt.Local().Format(historyTimeFormat),
			s.Template,
			s.Tally,
			s.Total(),
			s.Failed,
		)
	}

	fmt.Fprintln(out, "\nUse 'tbrscan history <id>' to show the points of a scan.")
}

// printScanPoints lists the points of one scan.
func printScanPoints(out io.Writer, scan *database.ScanRecord, points []database.PointRecord) {
	fmt.Fprintf(out, "Scan %s\n", scan.ID)
	fmt.Fprintf(out, "  Template: %s\n", scan.Template)
	fmt.Fprintf(out, "  Started:  %s\n", scan.StartedAt.Local().Format(historyTimeFormat))
	fmt.Fprintf(out, "  Duration: %s\n", scan.FinishedAt.Sub(scan.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(out, "  Points:   %d (%d succeeded, %d failed)\n\n", scan.Total(), scan.Succeeded, scan.Failed)

	for _, p := range points {
		fmt.Fprintf(out, "  %3d  %-50s  %s\n", p.Index, p.Parameters.Key(), pointOutcome(p))
	}
}

// printResults lists stored results for one parameter set.
func printResults(out io.Writer, params model.ScanParameters, points []database.PointRecord) {
	if len(points) == 0 {
		fmt.Fprintf(out, "No stored results for %s\n", params.Key())
		return
	}

	fmt.Fprintf(out, "Stored results for %s (%d):\n\n", params.Key(), len(points))
	for _, p := range points {
		fmt.Fprintf(out, "  %-8s  %-19s  %s\n",
			shortID(p.ScanID),
			p.StartedAt.Local().Format(historyTimeFormat),
			pointOutcome(p),
		)
	}
}

// pointOutcome describes a stored point's result or failure.
func pointOutcome(p database.PointRecord) string {
	switch {
	case p.Value != nil:
		return fmt.Sprintf("%s = %s ± %s", p.Tally, model.FormatFloat(p.Value.Mean), model.FormatFloat(p.Value.StdDev))
	case p.Cancelled:
		return "cancelled"
	default:
		return "failed: " + p.Error
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeHistoryJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
