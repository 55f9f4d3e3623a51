package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
var (
	// ErrNoTarget is returned when no account dump is specified.
	ErrNoTarget = errors.New("no target specified: provide one or more account dump files")

	// ErrInvalidConcurrency is returned when the scan concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidLinkedTimeout is returned when the linked lookup timeout is negative.
	ErrInvalidLinkedTimeout = errors.New("invalid linked lookup timeout: must be non-negative")

	// ErrEmptyLinkedSuffix is returned when the linked check is enabled
	// without a suffix to name the linked identity.
	ErrEmptyLinkedSuffix = errors.New("linked identity check enabled but linked suffix is empty")

	// ErrInvalidExcludePattern is returned when an exclude pattern is not a valid glob.
	ErrInvalidExcludePattern = errors.New("invalid exclude pattern")

	// ErrInvalidLogFormat is returned for log formats other than text and json.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")
)
