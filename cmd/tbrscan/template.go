package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/nao1215/tbrscan/internal/builder"
	"github.com/nao1215/tbrscan/internal/model"
	"github.com/spf13/cobra"
)

// NewTemplateCmd creates the template command.
func NewTemplateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template [path]",
		Short: "Show the parameters of a geometry template",
		Long: `Template parses a geometry template and prints the parameters a scan
point must provide, their declared ranges, and the tallies the template
requests. Without a path the built-in spherical blanket is shown.

Examples:
  # Show the built-in template
  tbrscan template

  # Check a custom template
  tbrscan template blanket.hcl`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			tmpl, err := loadTemplate(path)
			if err != nil {
				return err
			}
			printTemplate(cmd.OutOrStdout(), tmpl)
			return nil
		},
	}
}

func printTemplate(out io.Writer, tmpl *builder.Template) {
	fmt.Fprintf(out, "Template %s\n\n", tmpl.Name())

	fmt.Fprintln(out, "Parameters:")
	declared := map[string]bool{}
	for _, p := range tmpl.Parameters() {
		declared[p.Name] = true
		fmt.Fprintf(out, "  %-24s %-16s %s\n", p.Name, parameterRange(p), p.Description)
	}
	for _, name := range tmpl.Placeholders() {
		if !declared[name] {
			fmt.Fprintf(out, "  %-24s (undeclared)\n", name)
		}
	}

	fmt.Fprintln(out, "\nTallies:")
	tallies := tmpl.Tallies()
	slices.Sort(tallies)
	for _, name := range tallies {
		fmt.Fprintf(out, "  %s\n", name)
	}
}

// parameterRange formats the declared bounds of a parameter, e.g. "[0, 1]".
func parameterRange(p builder.ParameterSpec) string {
	lo, hi := "-inf", "+inf"
	if p.Min != nil {
		lo = model.FormatFloat(*p.Min)
	}
	if p.Max != nil {
		hi = model.FormatFloat(*p.Max)
	}
	return fmt.Sprintf("[%s, %s]", lo, hi)
}
