package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/credaudit/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/credaudit.yaml
var configTemplate embed.FS

// configFileName is the default policy file name.
const configFileName = config.DefaultConfigFile

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new credaudit policy file",
		Long: `Initialize creates a new .credaudit policy file in the current directory.

The generated file documents every policy setting:
- Wordlists and precomputed hash lists
- The linked identity check (suffix and lookup timeout)
- Identifier exclude patterns
- Cleartext exposure in reports

Examples:
  # Create .credaudit in current directory
  credaudit init

  # Create the policy file at a specific path
  credaudit init -o ~/.config/credaudit/config.yaml

  # Force overwrite existing file
  credaudit init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName,
		"Output file path for the policy file")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing policy file")

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
			return fmt.Errorf("policy file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/credaudit.yaml")
	if err != nil {
		return fmt.Errorf("failed to read policy template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write policy file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created policy file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure:")
	fmt.Fprintln(out, "  - Wordlists and breach hash lists")
	fmt.Fprintln(out, "  - The linked account suffix")
	fmt.Fprintln(out, "  - Accounts to leave out of the audit")

	return nil
}
