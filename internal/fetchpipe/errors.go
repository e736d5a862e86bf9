package fetchpipe

import (
	"fmt"

	"github.com/archivecrawl/crawler/internal/telemetry"
	"github.com/archivecrawl/crawler/pkg/failure"
)

// ErrorKind is the closed taxonomy a FetchResult reports on failure. It
// is distinct from telemetry.ErrorCause: ErrorKind is a caller-facing
// outcome, ErrorCause is an internal observability classification.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindValidationError   ErrorKind = "ValidationError"
	KindNetworkTimeout    ErrorKind = "NetworkTimeout"
	KindHTTPError         ErrorKind = "HTTPError"
	KindNavigationError   ErrorKind = "NavigationError"
	KindCloudflareBlocked ErrorKind = "CloudflareBlocked"
	KindExtractionError   ErrorKind = "ExtractionError"
	KindCacheError        ErrorKind = "CacheError"
	KindRobotsDisallowed  ErrorKind = "RobotsDisallowed"
	KindUnknown           ErrorKind = "Unknown"
)

type FetchPipeErrorCause string

const (
	ErrCauseValidation     FetchPipeErrorCause = "url failed validation"
	ErrCauseRateLimited    FetchPipeErrorCause = "rate limiter wait canceled"
	ErrCauseHTTPTier       FetchPipeErrorCause = "http tier failed"
	ErrCauseRenderTier     FetchPipeErrorCause = "rendered tier failed"
	ErrCauseUndetectedTier FetchPipeErrorCause = "undetected tier failed"
	ErrCauseCloudflare     FetchPipeErrorCause = "cloudflare challenge did not clear"
	ErrCauseExtraction     FetchPipeErrorCause = "extraction failed"
	ErrCauseCache          FetchPipeErrorCause = "cache operation failed"
	ErrCauseRobotsDisallow FetchPipeErrorCause = "robots.txt disallowed fetch"
)

// FetchPipeError is the classified error this package's own orchestration
// returns. Downstream tiers (browser, cache, extractor, ...) return their
// own classified errors, which Fetch wraps into a FetchResult rather than
// propagating directly, so callers only ever branch on ErrorKind.
type FetchPipeError struct {
	Message   string
	Retryable bool
	Cause     FetchPipeErrorCause
}

func (e *FetchPipeError) Error() string {
	return fmt.Sprintf("fetchpipe error: %s: %s", e.Cause, e.Message)
}

func (e *FetchPipeError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*FetchPipeError)(nil)

func mapFetchPipeErrorToMetadataCause(err *FetchPipeError) telemetry.ErrorCause {
	if err == nil {
		return telemetry.CauseUnknown
	}
	switch err.Cause {
	case ErrCauseRateLimited:
		return telemetry.CausePolicyDisallow
	case ErrCauseHTTPTier, ErrCauseRenderTier, ErrCauseUndetectedTier, ErrCauseCloudflare:
		return telemetry.CauseNetworkFailure
	case ErrCauseExtraction:
		return telemetry.CauseContentInvalid
	case ErrCauseCache:
		return telemetry.CauseStorageFailure
	case ErrCauseValidation:
		return telemetry.CauseInvariantViolation
	case ErrCauseRobotsDisallow:
		return telemetry.CausePolicyDisallow
	default:
		return telemetry.CauseUnknown
	}
}
