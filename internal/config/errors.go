package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can match them
// with errors.Is() while users still get a readable message.
var (
	// ErrNoTarget is returned when no seed URL is given.
	ErrNoTarget = errors.New("no target specified: provide at least one URL to clone")

	// ErrInvalidTarget is returned when a seed URL is not an absolute http(s) URL.
	ErrInvalidTarget = errors.New("invalid target URL")

	// ErrDuplicateSiteFolder is returned when two seed URLs would write to the
	// same site folder in one batch.
	ErrDuplicateSiteFolder = errors.New("duplicate site folder: each URL in a batch must have a distinct host")

	// ErrInvalidOnionAddress is returned for .onion hosts that are not valid v3 addresses.
	ErrInvalidOnionAddress = errors.New("invalid onion address: only v3 addresses are supported")

	// ErrOnionRequiresTor is returned when a .onion URL is given without --tor or --embedded-tor.
	ErrOnionRequiresTor = errors.New("onion URLs require --tor or --embedded-tor")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrEmptyOutputRoot is returned when no output directory is configured.
	ErrEmptyOutputRoot = errors.New("output directory must not be empty")

	// ErrMissingAPIKey is returned when enhancement is requested without an API key.
	ErrMissingAPIKey = errors.New("enhancement requires an API key: set " + EnvAIAPIKey + " or " + EnvOpenAIAPIKey)
)
