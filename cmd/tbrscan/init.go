package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/tbrscan/internal/builder"
	"github.com/nao1215/tbrscan/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/tbrscan.yaml
var configTemplate embed.FS

// configFileName is the default configuration file name.
const configFileName = config.DefaultConfigFile

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new tbrscan configuration file",
		Long: `Initialize creates a new .tbrscan configuration file in the current directory.

The generated file includes:
- Default solver settings (binary, threads, timeout)
- The scan layout (tally, result file, working directory)
- An example sweep over enrichment and blanket thickness

With --template-out the built-in spherical blanket geometry template is
written too, as a starting point for custom geometries.

Examples:
  # Create .tbrscan in current directory
  tbrscan init

  # Create config file at a specific path
  tbrscan init -o myscan.yaml

  # Also write the default geometry template
  tbrscan init --template-out blanket.hcl

  # Force overwrite existing files
  tbrscan init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing files")
	cmd.Flags().String("template-out", "",
		"Also write the default geometry template to this path")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	templateOut, err := cmd.Flags().GetString("template-out")
	if err != nil {
		return err
	}

	// Read template from embedded filesystem
	content, err := configTemplate.ReadFile("templates/tbrscan.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if err := writeNewFile(outputPath, content, force); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)

	if templateOut != "" {
		if err := writeNewFile(templateOut, builder.DefaultTemplateSource(), force); err != nil {
			return err
		}
		fmt.Fprintf(out, "Created geometry template: %s\n", templateOut)
		fmt.Fprintf(out, "Set 'template: %s' in the configuration to use it.\n", templateOut)
	}

	fmt.Fprintln(out, "\nEdit the configuration to set:")
	fmt.Fprintln(out, "  - The solver binary and its cross section library")
	fmt.Fprintln(out, "  - Fixed parameters and sweeps")
	fmt.Fprintln(out, "  - Threads per solver run and the batch size")

	return nil
}

// writeNewFile writes content to path, creating parent directories. An
// existing file is only replaced when force is set.
func writeNewFile(path string, content []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("file already exists: %s (use -f to overwrite)", path)
		}
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
