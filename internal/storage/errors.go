package storage

import (
	"fmt"

	"github.com/archivecrawl/crawler/internal/telemetry"
	"github.com/archivecrawl/crawler/pkg/failure"
)

type StorageErrorCause string

const (
	ErrCauseDiskFull              StorageErrorCause = "disk is full"
	ErrCauseWriteFailure          StorageErrorCause = "write failed"
	ErrCauseHashComputationFailed StorageErrorCause = "hash computation failed"
	ErrCausePathError             StorageErrorCause = "path error"
)

type StorageError struct {
	Message   string
	Retryable bool
	Cause     StorageErrorCause
	Path      string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s", e.Cause)
}

func (e *StorageError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapStorageErrorToMetadataCause maps storage-local error semantics
// to the canonical telemetry.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapStorageErrorToMetadataCause(err *StorageError) telemetry.ErrorCause {
	switch err.Cause {
	case ErrCauseDiskFull:
		return telemetry.CauseStorageFailure
	case ErrCauseWriteFailure:
		return telemetry.CauseStorageFailure
	case ErrCausePathError:
		return telemetry.CauseStorageFailure
	case ErrCauseHashComputationFailed:
		return telemetry.CauseInvariantViolation
	default:
		return telemetry.CauseUnknown
	}
}
