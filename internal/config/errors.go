package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoTarget is returned when neither arguments nor --list provide a target.
	ErrNoTarget = errors.New("no target specified: provide one or more addresses or use --list")

	// ErrInvalidTimeout is returned when the page call timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid call timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is negative.
	// Zero is valid and selects the size automatically.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be zero (automatic) or positive")

	// ErrInvalidDelay is returned when the batch delay or failure backoff is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidRetention is returned when the prune age is not positive.
	ErrInvalidRetention = errors.New("invalid retention: must be positive")

	// ErrInvalidScriptPath is returned when the cache timing script path is empty.
	ErrInvalidScriptPath = errors.New("invalid cache timing script path: must not be empty")
)
