package assets

import (
	"fmt"

	"github.com/archivecrawl/crawler/internal/telemetry"
	"github.com/archivecrawl/crawler/pkg/failure"
)

type AssetsErrorCause string

const (
	ErrCauseImageDownloadFailure  AssetsErrorCause = "failed to download image"
	ErrCauseNetworkFailure        AssetsErrorCause = "network failure"
	ErrCauseHashError             AssetsErrorCause = "hash computation failed"
	ErrCauseWriteFailure          AssetsErrorCause = "write failed"
	ErrCausePathError             AssetsErrorCause = "path error"
	ErrCauseAssetTooLarge         AssetsErrorCause = "asset too large"
	ErrCauseRequest5xx            AssetsErrorCause = "server error"
	ErrCauseRequestTooMany        AssetsErrorCause = "rate limited"
	ErrCauseRequestPageForbidden  AssetsErrorCause = "forbidden"
	ErrCauseRedirectLimitExceeded AssetsErrorCause = "redirect error"
	ErrCauseReadResponseBodyError AssetsErrorCause = "read response body failed"
	ErrCauseDiskFull              AssetsErrorCause = "disk full"
)

type AssetsError struct {
	Message   string
	Retryable bool
	Cause     AssetsErrorCause
}

func (e *AssetsError) Error() string {
	return fmt.Sprintf("assets error: %s", e.Cause)
}

func (e *AssetsError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapAssetsErrorToMetadataCause maps assets-local error semantics
// to the canonical telemetry.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapAssetsErrorToMetadataCause(err AssetsError) telemetry.ErrorCause {
	switch err.Cause {
	case ErrCauseImageDownloadFailure, ErrCauseNetworkFailure, ErrCauseRequest5xx, ErrCauseRequestTooMany, ErrCauseRedirectLimitExceeded, ErrCauseReadResponseBodyError:
		return telemetry.CauseNetworkFailure
	case ErrCauseRequestPageForbidden:
		return telemetry.CausePolicyDisallow
	case ErrCauseWriteFailure, ErrCausePathError, ErrCauseDiskFull:
		return telemetry.CauseStorageFailure
	case ErrCauseHashError, ErrCauseAssetTooLarge:
		return telemetry.CauseContentInvalid
	default:
		return telemetry.CauseUnknown
	}
}
