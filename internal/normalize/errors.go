package normalize

import (
	"fmt"

	"github.com/archivecrawl/crawler/internal/telemetry"
	"github.com/archivecrawl/crawler/pkg/failure"
)

// ShapeFault names why a markdown document was rejected before it could be
// promoted to a RAG-ready artifact.
type ShapeFault string

const (
	FaultEmptyContent        ShapeFault = "empty content"
	FaultHeadingInCodeBlock  ShapeFault = "heading inside code block"
	FaultMissingOrExtraH1    ShapeFault = "missing or extra H1"
	FaultOrphanContent       ShapeFault = "content before first H1"
	FaultSkippedHeadingLevel ShapeFault = "skipped heading level"
	FaultHashUnavailable     ShapeFault = "hash computation failed"
	FaultNoSection           ShapeFault = "section could not be derived"
	FaultNoTitle             ShapeFault = "title could not be extracted"
)

// ShapeError reports a document that failed the structural checks a
// RAG-bound markdown file must pass before frontmatter can be attached.
type ShapeError struct {
	Message   string
	Retryable bool
	Fault     ShapeFault
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("normalize: %s", e.Fault)
}

func (e *ShapeError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// faultToMetadataCause maps a ShapeFault to the canonical telemetry table.
// Observational only; never used to drive control flow.
func faultToMetadataCause(fault ShapeFault) telemetry.ErrorCause {
	switch fault {
	case FaultMissingOrExtraH1, FaultOrphanContent, FaultSkippedHeadingLevel, FaultHeadingInCodeBlock:
		return telemetry.CauseInvariantViolation
	default:
		return telemetry.CauseUnknown
	}
}
