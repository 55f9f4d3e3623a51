package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/credaudit/internal/compliance"
	"github.com/nao1215/credaudit/internal/directory"
	"github.com/nao1215/credaudit/internal/hashindex"
	"github.com/nao1215/credaudit/internal/model"
	"github.com/nao1215/credaudit/internal/ntlm"
	"github.com/nao1215/credaudit/internal/wordlist"
)

// WeakIndex is the weak hash index shared read-only by every target of a
// run, together with the statistics of the load that built it.
type WeakIndex struct {
	Index  *hashindex.Index
	Totals wordlist.Totals
}

// BuildIndex creates the weak hash index: the blank-credential sentinel
// first, then every source in order.
//
// A run in which no source yields a weak entry is a fatal precondition:
// BuildIndex then returns the partially filled WeakIndex together with
// wordlist.ErrNoWeakEntries.
func BuildIndex(ctx context.Context, sources []wordlist.Source, logger *slog.Logger) (*WeakIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}

	idx := hashindex.New()
	if err := idx.InsertSentinel(ntlm.BlankHash); err != nil {
		return nil, err
	}

	loader := wordlist.NewLoader(ntlm.Hash,
		wordlist.WithHashValidator(ntlm.Valid),
		wordlist.WithLogger(logger),
	)

	totals, err := loader.LoadAll(ctx, sources, idx)
	weak := &WeakIndex{Index: idx, Totals: totals}
	if err != nil {
		return weak, err
	}

	logger.Info("weak hash index built",
		"entries", idx.Len(),
		"sources", len(totals.Sources),
		"failed", totals.SourcesFailed,
		"fingerprint", idx.Fingerprint(),
	)

	return weak, nil
}

// DirectoryStep loads the accounts of the target dump file.
// The parsed directory also serves linked-identity lookups.
type DirectoryStep struct {
	// exclude lists identifier glob patterns to leave out.
	exclude []string

	// logger for structured logging.
	logger *slog.Logger
}

// DirectoryStepOption configures a DirectoryStep.
type DirectoryStepOption func(*DirectoryStep)

// WithDirectoryExclude sets identifier patterns kept out of the scan.
func WithDirectoryExclude(patterns []string) DirectoryStepOption {
	return func(s *DirectoryStep) {
		s.exclude = patterns
	}
}

// WithDirectoryLogger sets a custom logger for the directory step.
func WithDirectoryLogger(logger *slog.Logger) DirectoryStepOption {
	return func(s *DirectoryStep) {
		s.logger = logger
	}
}

// NewDirectoryStep creates a new account loading step.
func NewDirectoryStep(opts ...DirectoryStepOption) *DirectoryStep {
	s := &DirectoryStep{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *DirectoryStep) Name() string {
	return "load_accounts"
}

// Do executes the directory step.
// A dump that yields no account is a fatal precondition and returns an
// error wrapping compliance.ErrNoAccounts.
func (s *DirectoryStep) Do(_ context.Context, report *model.AuditReport) error {
	dir, err := directory.Open(report.Target,
		directory.WithExclude(s.exclude...),
		directory.WithLogger(s.logger),
	)
	if err != nil {
		return err
	}

	report.Accounts = dir.Accounts()
	report.Directory = dir
	report.AccountSource = dir.Stats()

	s.logger.Info("accounts loaded",
		"target", report.Target,
		"accounts", len(report.Accounts),
		"filtered", report.AccountSource.Filtered(),
		"unparseable", report.AccountSource.Unparseable,
	)

	if len(report.Accounts) == 0 {
		return fmt.Errorf("%w: %s", compliance.ErrNoAccounts, report.Target)
	}

	return nil
}

// ComplianceStep classifies the loaded accounts against the weak index.
type ComplianceStep struct {
	weak *WeakIndex

	// checkLinked enables the linked-identity check.
	checkLinked bool

	linkedSuffix  string
	linkedTimeout time.Duration

	// concurrency is the number of accounts classified in parallel.
	concurrency int

	logger *slog.Logger
}

// ComplianceStepOption configures a ComplianceStep.
type ComplianceStepOption func(*ComplianceStep)

// WithLinkedCheck enables or disables the linked-identity check.
func WithLinkedCheck(enabled bool) ComplianceStepOption {
	return func(s *ComplianceStep) {
		s.checkLinked = enabled
	}
}

// WithComplianceLinkedSuffix sets the suffix naming linked identities.
func WithComplianceLinkedSuffix(suffix string) ComplianceStepOption {
	return func(s *ComplianceStep) {
		s.linkedSuffix = suffix
	}
}

// WithComplianceLinkedTimeout bounds each linked-identity lookup.
func WithComplianceLinkedTimeout(d time.Duration) ComplianceStepOption {
	return func(s *ComplianceStep) {
		s.linkedTimeout = d
	}
}

// WithComplianceConcurrency sets the per-target classification concurrency.
func WithComplianceConcurrency(n int) ComplianceStepOption {
	return func(s *ComplianceStep) {
		s.concurrency = n
	}
}

// WithComplianceLogger sets a custom logger for the compliance step.
func WithComplianceLogger(logger *slog.Logger) ComplianceStepOption {
	return func(s *ComplianceStep) {
		s.logger = logger
	}
}

// NewComplianceStep creates a new classification step over weak.
func NewComplianceStep(weak *WeakIndex, opts ...ComplianceStepOption) *ComplianceStep {
	s := &ComplianceStep{
		weak:          weak,
		checkLinked:   true,
		linkedSuffix:  compliance.DefaultLinkedSuffix,
		linkedTimeout: compliance.DefaultLinkedTimeout,
		concurrency:   1,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ComplianceStep) Name() string {
	return "compliance_scan"
}

// Do executes the compliance step.
func (s *ComplianceStep) Do(ctx context.Context, report *model.AuditReport) error {
	scanOpts := []compliance.Option{
		compliance.WithLinkedSuffix(s.linkedSuffix),
		compliance.WithLinkedTimeout(s.linkedTimeout),
		compliance.WithConcurrency(s.concurrency),
		compliance.WithHashValidator(ntlm.Valid),
		compliance.WithLogger(s.logger.With("target", report.Target)),
	}
	if s.checkLinked && report.Directory != nil {
		scanOpts = append(scanOpts, compliance.WithLinkedLookup(report.Directory))
	}

	res, err := compliance.New(s.weak.Index, scanOpts...).Scan(ctx, report.Accounts)
	if err != nil {
		return err
	}

	report.Results = res.Results
	report.Counters = res.Counters
	s.weak.Totals.Apply(&report.Counters)
	report.Sources = append([]model.SourceStats(nil), s.weak.Totals.Sources...)
	report.IndexEntries = s.weak.Index.Len()
	report.IndexFingerprint = s.weak.Index.Fingerprint()

	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// Exclude lists identifier glob patterns to leave out.
	Exclude []string

	// CheckLinked enables the linked-identity check.
	CheckLinked bool

	// LinkedSuffix names the linked identity.
	LinkedSuffix string

	// LinkedTimeout bounds each linked lookup.
	LinkedTimeout time.Duration

	// Concurrency is the per-target classification concurrency.
	Concurrency int
}

// DefaultPipelineOption configures DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineExclude sets identifier exclude patterns.
func WithPipelineExclude(patterns []string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Exclude = patterns
	}
}

// WithPipelineLinked configures the linked-identity check.
func WithPipelineLinked(enabled bool, suffix string, timeout time.Duration) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.CheckLinked = enabled
		c.LinkedSuffix = suffix
		c.LinkedTimeout = timeout
	}
}

// WithPipelineConcurrency sets the per-target classification concurrency.
func WithPipelineConcurrency(n int) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Concurrency = n
	}
}

// DefaultPipeline creates a pipeline with the standard steps: load the
// target's accounts, then classify them against weak.
func DefaultPipeline(weak *WeakIndex, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{
		CheckLinked:   true,
		LinkedSuffix:  compliance.DefaultLinkedSuffix,
		LinkedTimeout: compliance.DefaultLinkedTimeout,
		Concurrency:   1,
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	p.AddSteps(
		NewDirectoryStep(
			WithDirectoryExclude(cfg.Exclude),
			WithDirectoryLogger(p.logger),
		),
		NewComplianceStep(weak,
			WithLinkedCheck(cfg.CheckLinked),
			WithComplianceLinkedSuffix(cfg.LinkedSuffix),
			WithComplianceLinkedTimeout(cfg.LinkedTimeout),
			WithComplianceConcurrency(cfg.Concurrency),
			WithComplianceLogger(p.logger),
		),
	)

	return p
}
