package browser

import (
	"fmt"

	"github.com/archivecrawl/crawler/internal/telemetry"
	"github.com/archivecrawl/crawler/pkg/failure"
)

type BrowserErrorCause string

const (
	ErrCauseLaunchFailure      BrowserErrorCause = "failed to launch browser"
	ErrCauseNavigationFailure  BrowserErrorCause = "navigation failed"
	ErrCauseNavigationTimeout  BrowserErrorCause = "navigation timed out"
	ErrCauseEvalFailure        BrowserErrorCause = "script evaluation failed"
	ErrCauseContentReadFailure BrowserErrorCause = "failed to read rendered content"
	ErrCauseChallengeTimeout   BrowserErrorCause = "challenge did not clear before wait expired"
)

type BrowserError struct {
	Message   string
	Retryable bool
	Cause     BrowserErrorCause
}

func (e *BrowserError) Error() string {
	return fmt.Sprintf("browser error: %s: %s", e.Cause, e.Message)
}

func (e *BrowserError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func mapBrowserErrorToMetadataCause(err *BrowserError) telemetry.ErrorCause {
	if err == nil {
		return telemetry.CauseUnknown
	}
	switch err.Cause {
	case ErrCauseLaunchFailure:
		return telemetry.CauseUnknown
	case ErrCauseNavigationFailure, ErrCauseNavigationTimeout:
		return telemetry.CauseNetworkFailure
	case ErrCauseEvalFailure, ErrCauseContentReadFailure:
		return telemetry.CauseContentInvalid
	case ErrCauseChallengeTimeout:
		return telemetry.CauseNetworkFailure
	default:
		return telemetry.CauseUnknown
	}
}
