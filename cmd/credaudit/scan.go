package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/credaudit/internal/config"
	"github.com/nao1215/credaudit/internal/database"
	credlog "github.com/nao1215/credaudit/internal/log"
	"github.com/nao1215/credaudit/internal/model"
	"github.com/nao1215/credaudit/internal/pipeline"
	"github.com/nao1215/credaudit/internal/report"
	"github.com/nao1215/credaudit/internal/wordlist"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	// errWeakCredentials is returned with --fail-on-weak when any audited
	// account has a weak credential.
	errWeakCredentials = errors.New("weak credentials found")

	// errTargetsFailed is returned when a target could not be audited.
	errTargetsFailed = errors.New("audit failed")
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [account-dump...]",
		Short: "Audit account dumps for weak credentials",
		Long: `Scan audits the NT hashes of one or more account dump files against lists
of known-weak passwords.

Account dumps use the secretsdump/pwdump line format
  [DOMAIN\]name:rid:lmhash:nthash:::[ (status=Enabled|Disabled)]
or the short form name:nthash. Machine accounts, password history rows and
disabled accounts are not audited.

Every account is classified as:
- Weak: the password is in a wordlist or hash list, or is blank
- Weak (linked duplicate): additionally, the privileged twin account
  (e.g. "alice-a" for "alice") is enabled and uses the same credential
- Null credential: the account has no NT hash at all
- Malformed: the stored hash is not a valid NT hash
- Compliant: none of the above

Examples:
  # Audit a dump against a wordlist
  credaudit scan -w rockyou.txt corp.ntds

  # Combine wordlists and a breach hash list, export weak accounts to CSV
  credaudit scan -w 'lists/**/*.txt' --hash-list pwned-ntlm.txt --export weak.csv corp.ntds

  # Audit several dumps concurrently and write a Markdown report
  credaudit scan -b 4 -m -o report.md dc1.ntds dc2.ntds

  # Fail a CI job when any weak credential is found
  credaudit scan --fail-on-weak --no-db corp.ntds

Policy file (.credaudit) example:
  wordlists:
    - passwords.txt
  linked:
    suffix: ".adm"
  exclude:
    - "svc_*"`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	// Weak password sources
	cmd.Flags().StringSliceP("wordlist", "w", nil,
		"Cleartext wordlist path or glob, repeatable (default: "+config.DefaultWordlist+")")
	cmd.Flags().StringSlice("hash-list", nil,
		"Precomputed NT hash list path or glob, repeatable")

	// Audit behavior flags
	cmd.Flags().Bool("no-linked", false,
		"Disable the linked identity check")
	cmd.Flags().String("linked-suffix", config.DefaultLinkedSuffix,
		"Suffix naming the linked identity of an account")
	cmd.Flags().Duration("linked-timeout", config.DefaultLinkedTimeout,
		"Timeout for each linked identity lookup (0 disables the timeout)")
	cmd.Flags().StringSliceP("exclude", "x", nil,
		"Identifier glob pattern to leave out of the audit, repeatable")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of accounts classified in parallel")

	// Batch auditing flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of account dumps audited concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Policy file path (default: .credaudit in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().StringP("export", "e", "",
		"Write one CSV record per weak account to specified file path")
	cmd.Flags().Bool("expose-cleartext", false,
		"Show matched cleartext passwords in reports and exports")
	cmd.Flags().Bool("fail-on-weak", false,
		"Exit with a non-zero status when any weak credential is found")
	cmd.Flags().String("log-format", config.DefaultLogFormat,
		"Log format: text or json")
	cmd.Flags().Bool("no-db", false,
		"Do not record this run in the audit history database")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := credlog.New(os.Stderr, cfg.LogFormat, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runScan(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags and the policy file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error

	if cfg.Wordlists, err = flags.GetStringSlice("wordlist"); err != nil {
		return nil, err
	}
	if cfg.HashLists, err = flags.GetStringSlice("hash-list"); err != nil {
		return nil, err
	}

	noLinked, err := flags.GetBool("no-linked")
	if err != nil {
		return nil, err
	}
	cfg.CheckLinked = !noLinked

	if cfg.LinkedSuffix, err = flags.GetString("linked-suffix"); err != nil {
		return nil, err
	}
	if cfg.LinkedTimeout, err = flags.GetDuration("linked-timeout"); err != nil {
		return nil, err
	}
	if cfg.Exclude, err = flags.GetStringSlice("exclude"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.ExportFile, err = flags.GetString("export"); err != nil {
		return nil, err
	}
	if cfg.ExposeCleartext, err = flags.GetBool("expose-cleartext"); err != nil {
		return nil, err
	}
	if cfg.FailOnWeak, err = flags.GetBool("fail-on-weak"); err != nil {
		return nil, err
	}
	if cfg.LogFormat, err = flags.GetString("log-format"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	// If the user named a policy file explicitly, it must exist.
	// Otherwise the default locations are searched and may be empty.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		policy, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load policy file %s: %w", configPath, err)
		}
		cfg.ApplyFile(policy)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	// An explicit --no-linked beats the policy file.
	if flags.Changed("no-linked") {
		cfg.CheckLinked = !noLinked
	}

	cfg.SaveToDB = !noDB
	cfg.DBDir = config.XDGDataDir()

	cfg.Targets = args

	return cfg, nil
}

// buildSources lists the wordlist sources of cfg, cleartext lists first.
func buildSources(cfg *config.Config) []wordlist.Source {
	sources := make([]wordlist.Source, 0, len(cfg.Wordlists)+len(cfg.HashLists)+1)
	for _, path := range cfg.EffectiveWordlists() {
		sources = append(sources, wordlist.Source{Path: path})
	}
	for _, path := range cfg.HashLists {
		sources = append(sources, wordlist.Source{Path: path, HashList: true})
	}
	return sources
}

// normalizeTarget returns the absolute path of an account dump, so that
// history lookups match regardless of the working directory.
func normalizeTarget(target string) (string, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("invalid account dump %q: %w", target, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("invalid account dump %q: %w", target, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("invalid account dump %q: is a directory", target)
	}

	return abs, nil
}

// runScan executes the audit. Reports are written to out (or the report
// file), progress messages to status.
func runScan(ctx context.Context, cfg *config.Config, out, status io.Writer, logger *slog.Logger) error {
	if len(cfg.Targets) == 0 {
		return config.ErrNoTarget
	}

	for i, target := range cfg.Targets {
		normalized, err := normalizeTarget(target)
		if err != nil {
			return err
		}
		cfg.Targets[i] = normalized
	}

	logger.Info("starting audit",
		"targets", len(cfg.Targets),
		"batchSize", cfg.BatchSize,
		"checkLinked", cfg.CheckLinked,
		"saveToDB", cfg.SaveToDB,
	)

	weak, err := pipeline.BuildIndex(ctx, buildSources(cfg), logger)
	if err != nil {
		if errors.Is(err, wordlist.ErrNoWeakEntries) {
			writeSourceFailures(status, weak)
			return fmt.Errorf("no data source: %w", err)
		}
		return fmt.Errorf("failed to build weak hash index: %w", err)
	}

	var db *database.AuditDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	output, closeOutput, err := openOutput(cfg.ReportFile, out)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeOutput(); err != nil {
			logger.Error("failed to close report file", "path", cfg.ReportFile, "error", err)
		}
	}()

	run := &auditRun{
		cfg:    cfg,
		weak:   weak,
		db:     db,
		writer: newReportWriter(cfg, output),
		status: status,
		logger: logger,

		showProgress: isTerminal(status),
	}

	var reports []*model.AuditReport
	if len(cfg.Targets) > 1 && cfg.BatchSize > 1 {
		reports, err = run.batch(ctx)
	} else {
		reports, err = run.sequential(ctx)
	}
	if err != nil {
		return err
	}

	return run.finish(reports)
}

// writeSourceFailures lists the wordlist sources that could not be loaded.
func writeSourceFailures(status io.Writer, weak *pipeline.WeakIndex) {
	if weak == nil {
		return
	}
	for _, s := range weak.Totals.Sources {
		if s.Error != "" {
			fmt.Fprintf(status, "  [x] %s: %s\n", s.Name, s.Error)
		}
	}
}

// auditRun holds what every target of one invocation shares.
type auditRun struct {
	cfg    *config.Config
	weak   *pipeline.WeakIndex
	db     *database.AuditDB
	writer report.Writer
	status io.Writer
	logger *slog.Logger

	// showProgress draws a progress bar on status in batch mode.
	showProgress bool

	// mu serializes report output and progress messages in batch mode.
	mu sync.Mutex
}

// newPipeline creates the audit pipeline for one target.
func (r *auditRun) newPipeline() *pipeline.Pipeline {
	return pipeline.DefaultPipeline(r.weak,
		[]pipeline.Option{pipeline.WithLogger(r.logger)},
		pipeline.WithPipelineExclude(r.cfg.Exclude),
		pipeline.WithPipelineLinked(r.cfg.CheckLinked, r.cfg.LinkedSuffix, r.cfg.LinkedTimeout),
		pipeline.WithPipelineConcurrency(r.cfg.Concurrency),
	)
}

// sequential audits targets one at a time.
func (r *auditRun) sequential(ctx context.Context) ([]*model.AuditReport, error) {
	reports := make([]*model.AuditReport, 0, len(r.cfg.Targets))

	for _, target := range r.cfg.Targets {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		auditReport := model.NewAuditReport(target)
		fmt.Fprintf(r.status, "Auditing %s...\n", target)

		if err := r.newPipeline().Execute(ctx, auditReport); err != nil {
			r.logger.Error("audit failed", "target", target, "error", err)
			fmt.Fprintf(r.status, "Audit error for %s: %v\n", target, err)
		} else {
			fmt.Fprintf(r.status, "Audit completed in %s\n", auditReport.Duration.Round(time.Millisecond))
		}

		r.complete(ctx, auditReport)
		reports = append(reports, auditReport)
	}

	return reports, nil
}

// batch audits targets concurrently using BatchProcessor.
// The returned slice is in target order; targets that never started are nil.
func (r *auditRun) batch(ctx context.Context) ([]*model.AuditReport, error) {
	total := len(r.cfg.Targets)
	fmt.Fprintf(r.status, "Starting batch audit of %d targets (concurrency: %d)...\n",
		total, r.cfg.BatchSize)

	startTime := time.Now()
	reports := make([]*model.AuditReport, total)
	completed := 0

	var bar *progressbar.ProgressBar
	if r.showProgress {
		bar = newProgressBar(total, r.status)
	}

	bp := pipeline.NewBatchProcessor(
		r.newPipeline,
		pipeline.WithConcurrency(r.cfg.BatchSize),
		pipeline.WithBatchLogger(r.logger),
	)

	err := bp.ProcessBatchWithCallback(ctx, r.cfg.Targets, func(auditReport *model.AuditReport, index int) {
		r.mu.Lock()
		defer r.mu.Unlock()

		completed++
		reports[index] = auditReport
		switch {
		case auditReport.Error != nil:
			fmt.Fprintf(r.status, "[%d/%d] Audit error for %s: %v\n", completed, total, auditReport.Target, auditReport.Error)
		case bar == nil:
			fmt.Fprintf(r.status, "[%d/%d] Audit completed: %s\n", completed, total, auditReport.Target)
		}
		if bar != nil {
			_ = bar.Add(1) //nolint:errcheck // Progress output is best effort
		}

		r.complete(ctx, auditReport)
	})

	if bar != nil {
		_ = bar.Finish() //nolint:errcheck // Progress output is best effort
	}
	fmt.Fprintf(r.status, "Batch audit completed in %s\n", time.Since(startTime).Round(time.Millisecond))

	return reports, err
}

// newProgressBar creates a progress bar over total targets drawn on w.
func newProgressBar(total int, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Auditing targets"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
	)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // File descriptors fit in int
}

// complete writes and records one finished report.
func (r *auditRun) complete(ctx context.Context, auditReport *model.AuditReport) {
	if _, err := r.writer.Write(auditReport); err != nil {
		r.logger.Error("report failed", "target", auditReport.Target, "error", err)
	}

	// A cancelled run is still recorded.
	if err := saveAuditReport(context.WithoutCancel(ctx), r.db, auditReport, r.logger); err != nil {
		r.logger.Error("failed to save audit report", "target", auditReport.Target, "error", err)
	}
}

// finish writes the batch summary and export, then maps the outcome to
// the command's exit status.
func (r *auditRun) finish(reports []*model.AuditReport) error {
	completed := make([]*model.AuditReport, 0, len(reports))
	for _, rep := range reports {
		if rep != nil {
			completed = append(completed, rep)
		}
	}

	if len(completed) > 1 {
		if _, err := r.writer.WriteSummary(completed); err != nil {
			r.logger.Error("summary failed", "error", err)
		}
	}

	if r.cfg.ExportFile != "" {
		if err := exportWeakAccounts(r.cfg, completed); err != nil {
			return err
		}
	}

	return exitStatus(r.cfg, completed, len(r.cfg.Targets))
}

// exitStatus returns the error the command exits with, if any.
func exitStatus(cfg *config.Config, reports []*model.AuditReport, total int) error {
	var failed, weakTargets []*model.AuditReport
	weak := 0
	for _, rep := range reports {
		if rep.Error != nil {
			failed = append(failed, rep)
		}
		if rep.HasWeak() {
			weakTargets = append(weakTargets, rep)
			weak += rep.Counters.Weak
		}
	}

	if total == 1 && len(failed) == 1 {
		return fmt.Errorf("%w: %s: %w", errTargetsFailed, failed[0].Target, failed[0].Error)
	}
	if n := len(failed) + total - len(reports); n > 0 {
		return fmt.Errorf("%w: %d of %d targets", errTargetsFailed, n, total)
	}

	if cfg.FailOnWeak && len(weakTargets) > 0 {
		return fmt.Errorf("%w: %d account(s) in %d target(s)", errWeakCredentials, weak, len(weakTargets))
	}

	return nil
}

// newReportWriter selects the report format requested in cfg.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	opts := []report.Option{
		report.WithVerbose(cfg.Verbose),
		report.WithExposeCleartext(cfg.ExposeCleartext),
	}

	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), append(opts, report.WithPrettyPrint())...)
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output, opts...)
	default:
		return report.NewSimpleWriter(output, opts...)
	}
}

// createOutputFile creates (or truncates) path with owner-only permissions,
// creating parent directories as needed. Reports name weak accounts and may
// contain cleartext passwords.
func createOutputFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// openOutput returns the report destination: the file at path, or stdout
// when path is empty.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}

	f, err := createOutputFile(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// exportWeakAccounts writes one CSV record per weak account of reports.
func exportWeakAccounts(cfg *config.Config, reports []*model.AuditReport) error {
	f, err := createOutputFile(cfg.ExportFile)
	if err != nil {
		return err
	}

	w := report.NewCSVWriter(f, report.WithExposeCleartext(cfg.ExposeCleartext))
	_, werr := w.WriteSummary(reports)
	if err := errors.Join(werr, f.Close()); err != nil {
		return fmt.Errorf("failed to export weak accounts: %w", err)
	}
	return nil
}

// saveAuditReport saves the report to the database if enabled.
// If db is nil, this function is a no-op.
func saveAuditReport(ctx context.Context, db *database.AuditDB, auditReport *model.AuditReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	id, err := db.SaveAuditReport(ctx, auditReport)
	if err != nil {
		return fmt.Errorf("failed to save audit report: %w", err)
	}

	logger.Info("audit report saved to database", "target", auditReport.Target, "id", id)
	return nil
}
