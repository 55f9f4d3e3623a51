package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for credaudit.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credaudit",
		Short: "Audit directory credential hashes against weak password lists",
		Long: `credaudit audits the NT hashes of directory service accounts against lists
of known-weak passwords and precomputed breach hashes.

It reports accounts with weak or blank passwords, accounts without a
credential, and privileged twin accounts (e.g. "alice" and "alice-a") that
share the same weak credential. Every run is recorded in a local history
database so that remediation can be tracked between audits.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging and per-account report detail")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
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
