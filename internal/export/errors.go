package export

import (
	"fmt"

	"github.com/archivecrawl/crawler/internal/telemetry"
	"github.com/archivecrawl/crawler/pkg/failure"
)

type ExportErrorCause string

const (
	ErrCauseUnsupportedFormat ExportErrorCause = "unsupported format"
	ErrCauseEncodeFailure     ExportErrorCause = "encode failure"
	ErrCauseWriteFailure      ExportErrorCause = "write failure"
)

type ExportError struct {
	Message   string
	Retryable bool
	Cause     ExportErrorCause
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error: %s", e.Cause)
}

func (e *ExportError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapExportErrorToMetadataCause maps export-local error semantics to the
// canonical telemetry.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used to derive
// control-flow decisions.
func mapExportErrorToMetadataCause(err *ExportError) telemetry.ErrorCause {
	switch err.Cause {
	case ErrCauseUnsupportedFormat:
		return telemetry.CauseInvariantViolation
	case ErrCauseEncodeFailure:
		return telemetry.CauseContentInvalid
	case ErrCauseWriteFailure:
		return telemetry.CauseStorageFailure
	default:
		return telemetry.CauseUnknown
	}
}
