package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/deskmaster/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/deskmaster.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new DeskMaster configuration file",
		Long: `Initialize creates a new .deskmaster.yaml configuration file in the current directory.

The generated file includes:
- Default review range, tab budget and dwell times
- Preset, CAPTCHA and internal-mall signal settings
- Commented examples for tool servers (vision solver and OCR)

Examples:
  # Create .deskmaster.yaml in current directory
  deskmaster init

  # Create config file at a specific path
  deskmaster init -o myconfig.yaml

  # Force overwrite existing file
  deskmaster init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

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

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/deskmaster.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure settings such as:")
	fmt.Fprintln(out, "  - Review range and tab budget")
	fmt.Fprintln(out, "  - Internal mall signals and domains")
	fmt.Fprintln(out, "  - Tool servers for CAPTCHA solving and OCR (API keys go in .env)")

	return nil
}
