package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/credaudit/internal/hashindex"
	"github.com/nao1215/credaudit/internal/model"
	"golang.org/x/sync/errgroup"
)

// ErrNoAccounts is returned when Scan receives no accounts at all.
var ErrNoAccounts = errors.New("no accounts retrieved")

const (
	// DefaultLinkedSuffix is appended to an identifier to name its linked identity.
	DefaultLinkedSuffix = "-a"

	// DefaultLinkedTimeout bounds a single linked-identity lookup.
	DefaultLinkedTimeout = 5 * time.Second
)

// Index is the read-only view of the weak hash index used during a scan.
type Index interface {
	Lookup(hash string) (source string, found bool)
	IsSentinel(hash string) bool
}

// Scanner classifies account records against an Index.
type Scanner struct {
	index         Index
	linked        model.AccountLookup
	linkedSuffix  string
	linkedTimeout time.Duration
	concurrency   int
	validate      func(string) bool
	logger        *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLinkedLookup enables the linked-identity check using lookup.
func WithLinkedLookup(lookup model.AccountLookup) Option {
	return func(s *Scanner) {
		s.linked = lookup
	}
}

// WithLinkedSuffix sets the suffix naming the linked identity.
func WithLinkedSuffix(suffix string) Option {
	return func(s *Scanner) {
		if suffix != "" {
			s.linkedSuffix = suffix
		}
	}
}

// WithLinkedTimeout bounds each linked-identity lookup.
// A non-positive value disables the bound.
func WithLinkedTimeout(d time.Duration) Option {
	return func(s *Scanner) {
		s.linkedTimeout = d
	}
}

// WithConcurrency sets the number of accounts classified in parallel.
func WithConcurrency(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithHashValidator sets the format check applied to account hashes.
// Hashes failing it are classified as malformed.
func WithHashValidator(validate func(string) bool) Option {
	return func(s *Scanner) {
		if validate != nil {
			s.validate = validate
		}
	}
}

// WithLogger sets a custom logger for the scanner.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// New creates a Scanner over index.
func New(index Index, opts ...Option) *Scanner {
	s := &Scanner{
		index:         index,
		linkedSuffix:  DefaultLinkedSuffix,
		linkedTimeout: DefaultLinkedTimeout,
		concurrency:   1,
		validate:      isHex,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Result holds the outcome of a scan.
type Result struct {
	// Results has one entry per input account, in input order.
	Results []model.Result

	// Counters summarizes Results.
	Counters model.Counters
}

// Scan classifies every account.
//
// It returns ErrNoAccounts for an empty input, and ctx.Err() when cancelled.
// Individual record problems never abort the scan.
func (s *Scanner) Scan(ctx context.Context, accounts []model.AccountRecord) (*Result, error) {
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}

	results := make([]model.Result, len(accounts))

	if s.concurrency <= 1 {
		for i, rec := range accounts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			results[i] = s.Classify(ctx, rec)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)

		for i, rec := range accounts {
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				// Each worker owns slot i, so no locking is needed.
				results[i] = s.Classify(gctx, rec)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	out := &Result{Results: results}
	for _, r := range results {
		out.Counters.Record(r)
	}

	s.logger.Info("scan complete",
		"accounts", out.Counters.AccountsScanned,
		"weak", out.Counters.Weak,
		"null", out.Counters.NullCredential,
		"malformed", out.Counters.Malformed,
		"linked_duplicates", out.Counters.LinkedDuplicates,
	)

	return out, nil
}

// Classify classifies a single account. It is a pure function of the
// record, the index and the linked lookup answer.
func (s *Scanner) Classify(ctx context.Context, rec model.AccountRecord) model.Result {
	res := model.Result{Identifier: rec.Identifier}

	if !rec.HasHash() {
		res.Classification = model.ClassNullCredential
		s.logger.Debug("account has no credential hash", "account", rec.Identifier)
		return res
	}

	if !s.validate(hashindex.Normalize(rec.Hash)) {
		res.Classification = model.ClassMalformed
		res.Err = fmt.Errorf("%w: account %s", model.ErrMalformedHash, rec.Identifier)
		s.logger.Warn("malformed credential hash", "account", rec.Identifier)
		return res
	}

	source, found := s.index.Lookup(rec.Hash)
	if !found {
		res.Classification = model.ClassCompliant
		return res
	}

	res.Classification = model.ClassWeak
	res.Source = source
	res.Blank = s.index.IsSentinel(rec.Hash)
	s.logger.Debug("weak credential",
		"account", rec.Identifier,
		"cleartext", source,
		"blank", res.Blank,
	)

	if linkedID, ok := s.linkedDuplicate(ctx, rec); ok {
		res.Classification = model.ClassWeakWithLinkedDuplicate
		res.LinkedIdentifier = linkedID
		s.logger.Debug("linked identity shares weak credential",
			"account", rec.Identifier,
			"linked", linkedID,
		)
	}

	return res
}

// linkedResult carries a linked lookup answer across goroutines.
type linkedResult struct {
	record model.AccountRecord
	found  bool
	err    error
}

// linkedDuplicate reports whether the linked identity of rec is active and
// stores the same hash. Every failure mode reads as "no".
func (s *Scanner) linkedDuplicate(ctx context.Context, rec model.AccountRecord) (string, bool) {
	if s.linked == nil {
		return "", false
	}

	linkedID := rec.Identifier + s.linkedSuffix

	lctx := ctx
	if s.linkedTimeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, s.linkedTimeout)
		defer cancel()
	}

	// The lookup runs in its own goroutine so that a collaborator ignoring
	// ctx still cannot stall the scan past the timeout.
	ch := make(chan linkedResult, 1)
	go func() {
		r, found, err := s.linked.LookupAccount(lctx, linkedID)
		ch <- linkedResult{record: r, found: found, err: err}
	}()

	var lr linkedResult
	select {
	case lr = <-ch:
	case <-lctx.Done():
		s.logger.Debug("linked lookup timed out", "linked", linkedID, "error", lctx.Err())
		return "", false
	}

	if lr.err != nil {
		s.logger.Debug("linked lookup failed", "linked", linkedID, "error", lr.err)
		return "", false
	}
	if !lr.found || !lr.record.Enabled || !lr.record.HasHash() {
		return "", false
	}
	if hashindex.Normalize(lr.record.Hash) != hashindex.Normalize(rec.Hash) {
		return "", false
	}

	if lr.record.Identifier != "" {
		linkedID = lr.record.Identifier
	}
	return linkedID, true
}

// isHex is the default hash format check: a non-empty, even-length hex string.
func isHex(s string) bool {
	if s == "" || len(s)%2 != 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('0' > c || c > '9') && ('a' > c || c > 'f') {
			return false
		}
	}
	return true
}
