package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nao1215/credaudit/internal/config"
	"github.com/nao1215/credaudit/internal/database"
	"github.com/nao1215/credaudit/internal/model"
	"github.com/nao1215/credaudit/internal/report"
	"github.com/spf13/cobra"
)

// fingerprintDisplayLen is how much of an index fingerprint is shown in tables.
const fingerprintDisplayLen = 8

// NewHistoryCmd creates the history command.
// This command reads past audit runs stored in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [account-dump]",
		Short: "Show past audits and weak account changes",
		Long: `History displays audit runs recorded by 'credaudit scan'.

Without arguments it lists every audited account dump. With an account
dump it lists the runs for that dump, newest first. With --diff it compares
the two most recent successful runs and shows:
- Accounts that became weak since the previous audit
- Accounts whose weak credential was remediated
- Accounts that are still weak

If the weak password lists changed between the two runs, the comparison
says so: a change may then come from the lists rather than the accounts.
Failed runs hold no results; newer ones are listed but not compared.

Stored reports never contain cleartext passwords.

Examples:
  # List audited account dumps
  credaudit history

  # List the runs of one dump
  credaudit history corp.ntds

  # Compare the two latest runs
  credaudit history --diff corp.ntds

  # Show a stored report by ID (use 'credaudit history <dump>' to see IDs)
  credaudit history --show 5

  # Output the comparison in JSON format
  credaudit history --diff --json corp.ntds`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("diff", "d", false,
		"Compare the two most recent audits of the account dump")
	cmd.Flags().Int64P("show", "s", 0,
		"Show the stored report with the given run ID")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output a stored report in Markdown format (with --show)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	diff, err := cmd.Flags().GetBool("diff")
	if err != nil {
		return err
	}
	showID, err := cmd.Flags().GetInt64("show")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}
	if showID < 0 {
		return fmt.Errorf("invalid run ID: %d", showID)
	}

	var target string
	if len(args) == 1 {
		target, err = historyTarget(args[0])
		if err != nil {
			return err
		}
	} else if diff {
		return errors.New("account dump is required for --diff")
	}

	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case showID > 0:
		return showAuditRun(ctx, out, db, showID, jsonOutput, markdownOutput)
	case target == "":
		return listAuditedTargets(ctx, out, db)
	case diff:
		return showWeakDiff(ctx, out, db, target, jsonOutput)
	default:
		return listAuditHistory(ctx, out, db, target, jsonOutput)
	}
}

// historyTarget resolves an account dump argument the same way scan
// records it. The file itself may no longer exist.
func historyTarget(arg string) (string, error) {
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("invalid account dump %q: %w", arg, err)
	}
	return abs, nil
}

// listAuditedTargets lists every account dump with stored runs.
func listAuditedTargets(ctx context.Context, out io.Writer, db *database.AuditDB) error {
	targets, err := db.ListAuditedTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list audited targets: %w", err)
	}

	if len(targets) == 0 {
		fmt.Fprintln(out, "No audited account dumps found in the database.")
		fmt.Fprintln(out, "\nUse 'credaudit scan <account-dump>' to run an audit.")
		return nil
	}

	fmt.Fprintf(out, "Audited account dumps (%d):\n\n", len(targets))
	for _, target := range targets {
		fmt.Fprintf(out, "  • %s\n", target)
	}
	fmt.Fprintln(out, "\nUse 'credaudit history <account-dump>' to see the runs of a dump.")

	return nil
}

// listAuditHistory lists the stored runs of target, newest first.
func listAuditHistory(ctx context.Context, out io.Writer, db *database.AuditDB, target string, jsonOutput bool) error {
	runs, err := db.GetAuditHistory(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to get audit history: %w", err)
	}

	if jsonOutput {
		return writeIndentedJSON(out, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No audit history found for %s\n", target)
		fmt.Fprintln(out, "\nUse 'credaudit scan' to audit this account dump.")
		return nil
	}

	fmt.Fprintf(out, "Audit history for %s (%d runs):\n\n", target, len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-8s  %-28s  %s\n", "ID", "Date", "Index", "Findings", "Status")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 78))

	for _, run := range runs {
		status := "ok"
		if run.Error != "" {
			status = "error"
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-8s  %-28s  %s\n",
			run.ID,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			shortFingerprint(run.IndexFingerprint),
			formatFindings(run.Counters),
			status,
		)
	}

	fmt.Fprintln(out, "\nUse 'credaudit history --diff <account-dump>' to compare the latest two runs.")
	fmt.Fprintln(out, "Use 'credaudit history --show <id>' to display a stored report.")

	return nil
}

// formatFindings formats the account counters of a run for a table cell.
func formatFindings(c model.Counters) string {
	var parts []string
	if c.Weak > 0 {
		parts = append(parts, fmt.Sprintf("W:%d", c.Weak))
	}
	if c.LinkedDuplicates > 0 {
		parts = append(parts, fmt.Sprintf("L:%d", c.LinkedDuplicates))
	}
	if c.NullCredential > 0 {
		parts = append(parts, fmt.Sprintf("N:%d", c.NullCredential))
	}
	if c.Malformed > 0 {
		parts = append(parts, fmt.Sprintf("M:%d", c.Malformed))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("none (%d accounts)", c.AccountsScanned)
	}
	return fmt.Sprintf("%s (%d accounts)", strings.Join(parts, " "), c.AccountsScanned)
}

func shortFingerprint(fp string) string {
	if len(fp) > fingerprintDisplayLen {
		return fp[:fingerprintDisplayLen]
	}
	return fp
}

// showWeakDiff compares the two most recent runs of target.
func showWeakDiff(ctx context.Context, out io.Writer, db *database.AuditDB, target string, jsonOutput bool) error {
	diff, err := db.DiffLatest(ctx, target)
	if err != nil {
		if errors.Is(err, database.ErrNotEnoughHistory) {
			return fmt.Errorf("at least 2 successful audits are required for comparison: %w", err)
		}
		return fmt.Errorf("failed to compare audits: %w", err)
	}

	if jsonOutput {
		return writeIndentedJSON(out, diff)
	}
	writeWeakDiffText(out, target, diff)
	return nil
}

// writeWeakDiffText outputs the comparison in human-readable text format.
func writeWeakDiffText(out io.Writer, target string, diff *database.WeakDiff) {
	fmt.Fprintf(out, "Weak account comparison: %s\n", target)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nPrevious audit: %s (ID %d)\n",
		diff.Previous.Timestamp.Local().Format("2006-01-02 15:04:05"), diff.Previous.ID)
	fmt.Fprintf(out, "Current audit:  %s (ID %d)\n",
		diff.Current.Timestamp.Local().Format("2006-01-02 15:04:05"), diff.Current.ID)

	prev, cur := diff.Previous.Counters, diff.Current.Counters
	fmt.Fprintf(out, "\n  %-18s  %-10s  %-10s  %-10s\n", "Finding", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 54))
	fmt.Fprintf(out, "  %-18s  %-10d  %-10d  %-10s\n", "Weak",
		prev.Weak, cur.Weak, formatDelta(cur.Weak-prev.Weak))
	fmt.Fprintf(out, "  %-18s  %-10d  %-10d  %-10s\n", "Linked duplicate",
		prev.LinkedDuplicates, cur.LinkedDuplicates, formatDelta(cur.LinkedDuplicates-prev.LinkedDuplicates))
	fmt.Fprintf(out, "  %-18s  %-10d  %-10d  %-10s\n", "Null credential",
		prev.NullCredential, cur.NullCredential, formatDelta(cur.NullCredential-prev.NullCredential))
	fmt.Fprintf(out, "  %-18s  %-10d  %-10d  %-10s\n", "Malformed",
		prev.Malformed, cur.Malformed, formatDelta(cur.Malformed-prev.Malformed))

	if diff.IndexChanged {
		fmt.Fprintln(out, "\nNote: the weak password lists changed between these audits.")
	}

	if len(diff.SkippedFailed) > 0 {
		fmt.Fprintf(out, "\nWarning: %d newer audit(s) failed and were not compared:\n", len(diff.SkippedFailed))
		for _, run := range diff.SkippedFailed {
			fmt.Fprintf(out, "  [!] ID %d at %s: %s\n",
				run.ID, run.Timestamp.Local().Format("2006-01-02 15:04:05"), run.Error)
		}
	}

	if len(diff.NewlyWeak) > 0 {
		fmt.Fprintf(out, "\nNewly weak (%d):\n", len(diff.NewlyWeak))
		for _, id := range diff.NewlyWeak {
			fmt.Fprintf(out, "  [+] %s\n", id)
		}
	}

	if len(diff.Resolved) > 0 {
		fmt.Fprintf(out, "\nResolved (%d):\n", len(diff.Resolved))
		for _, id := range diff.Resolved {
			fmt.Fprintf(out, "  [-] %s\n", id)
		}
	}

	if len(diff.StillWeak) > 0 {
		fmt.Fprintf(out, "\nStill weak: %d accounts\n", len(diff.StillWeak))
	}
}

// showAuditRun renders a stored report.
func showAuditRun(ctx context.Context, out io.Writer, db *database.AuditDB, id int64, jsonOutput, markdownOutput bool) error {
	stored, err := db.GetAuditReportByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get audit run %d: %w", id, err)
	}
	if stored == nil {
		return fmt.Errorf("audit run %d not found", id)
	}

	var w report.Writer
	switch {
	case jsonOutput:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case markdownOutput:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out)
	}

	_, err = w.Write(stored)
	return err
}

func writeIndentedJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
