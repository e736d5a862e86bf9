// Package telemetry collects observational data about a crawl run:
// fetch timestamps, HTTP status codes, content hashes, crawl depth, and
// classified errors.
//
// Logging Goals
//   - Debuggable crawl behavior
//   - Post-run auditability
//   - Failure diagnostics
//
// Structured logging is preferred. Allowed payloads: primitive values,
// timestamps, URLs (as values, never as objects with behavior), hashes,
// status codes, durations, identifiers.
//
// Nothing recorded here may influence scheduling, retries, or
// termination. See ErrorCause's doc comment for the hard rule.
package telemetry

import (
	"fmt"
	"sync"
	"time"
)

// Sink is the write side of the telemetry subsystem. Every pipeline
// stage records through this interface rather than logging directly,
// so that all structured events funnel through one place.
type Sink interface {
	RecordFetch(fetchURL string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int)
	RecordAssetFetch(assetURL string, httpStatus int, duration time.Duration, retryCount int)
	RecordError(observedAt time.Time, packageName, action string, cause ErrorCause, errorString string, attrs []Attribute)
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
}

// CrawlFinalizer records the terminal summary of a crawl run exactly
// once, after termination.
type CrawlFinalizer interface {
	RecordFinalCrawlStats(totalPages, totalErrors, totalAssets int, duration time.Duration)
}

// Recorder is an in-memory Sink/CrawlFinalizer. It keeps every event so
// that internal/monitor can aggregate counters from it and tests can
// assert on emitted records, and it forwards each event to an optional
// LineWriter (typically a LogSink) for structured output.
type Recorder struct {
	mu      sync.Mutex
	runName string
	writer  LineWriter

	fetches   []FetchEvent
	errors    []ErrorRecord
	artifacts []ArtifactRecord
	stats     *CrawlStats
}

// LineWriter receives one formatted line per telemetry event. LogSink
// implements it with logfmt; tests can supply a simple buffer.
type LineWriter interface {
	WriteLine(line string)
}

func NewRecorder(runName string, writer LineWriter) *Recorder {
	return &Recorder{runName: runName, writer: writer}
}

func (r *Recorder) RecordFetch(fetchURL string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
	event := FetchEvent{
		FetchURL:    fetchURL,
		HTTPStatus:  httpStatus,
		Duration:    duration,
		ContentType: contentType,
		RetryCount:  retryCount,
		CrawlDepth:  crawlDepth,
	}

	r.mu.Lock()
	r.fetches = append(r.fetches, event)
	r.mu.Unlock()

	r.emit("fetch",
		NewAttr(AttrURL, fetchURL),
		NewAttr(AttrHTTPStatus, fmt.Sprintf("%d", httpStatus)),
		NewAttr(AttrDepth, fmt.Sprintf("%d", crawlDepth)),
		NewAttr(AttrField, fmt.Sprintf("duration=%s retry=%d content_type=%s", duration, retryCount, contentType)),
	)
}

func (r *Recorder) RecordAssetFetch(assetURL string, httpStatus int, duration time.Duration, retryCount int) {
	event := FetchEvent{
		FetchURL:   assetURL,
		HTTPStatus: httpStatus,
		Duration:   duration,
		RetryCount: retryCount,
	}

	r.mu.Lock()
	r.fetches = append(r.fetches, event)
	r.mu.Unlock()

	r.emit("asset_fetch",
		NewAttr(AttrAssetURL, assetURL),
		NewAttr(AttrHTTPStatus, fmt.Sprintf("%d", httpStatus)),
	)
}

func (r *Recorder) RecordError(observedAt time.Time, packageName, action string, cause ErrorCause, errorString string, attrs []Attribute) {
	record := ErrorRecord{
		PackageName: packageName,
		Action:      action,
		Cause:       cause,
		ErrorString: errorString,
		ObservedAt:  observedAt,
		Attrs:       attrs,
	}

	r.mu.Lock()
	r.errors = append(r.errors, record)
	r.mu.Unlock()

	emitAttrs := append([]Attribute{
		NewAttr(AttrField, fmt.Sprintf("package=%s action=%s cause=%s", packageName, action, cause)),
		NewAttr(AttrMessage, errorString),
	}, attrs...)
	r.emit("error", emitAttrs...)
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	record := ArtifactRecord{Kind: kind, Path: path, Attrs: attrs}

	r.mu.Lock()
	r.artifacts = append(r.artifacts, record)
	r.mu.Unlock()

	emitAttrs := append([]Attribute{
		NewAttr(AttrField, kind.String()),
		NewAttr(AttrWritePath, path),
	}, attrs...)
	r.emit("artifact", emitAttrs...)
}

func (r *Recorder) RecordFinalCrawlStats(totalPages, totalErrors, totalAssets int, duration time.Duration) {
	stats := CrawlStats{
		TotalPages:  totalPages,
		TotalErrors: totalErrors,
		TotalAssets: totalAssets,
		Duration:    duration,
	}

	r.mu.Lock()
	r.stats = &stats
	r.mu.Unlock()

	r.emit("crawl_finished",
		NewAttr(AttrField, fmt.Sprintf("pages=%d errors=%d assets=%d duration=%s", totalPages, totalErrors, totalAssets, duration)),
	)
}

// NoopSink is a Sink that discards every event. Packages that only need
// to satisfy the Sink interface in tests can embed it and override the
// one or two methods they actually want to assert on.
type NoopSink struct{}

func (NoopSink) RecordFetch(fetchURL string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
}

func (NoopSink) RecordAssetFetch(assetURL string, httpStatus int, duration time.Duration, retryCount int) {
}

func (NoopSink) RecordError(observedAt time.Time, packageName, action string, cause ErrorCause, errorString string, attrs []Attribute) {
}

func (NoopSink) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {}

// Fetches, Errors, Artifacts, and Stats return shallow copies for tests
// and internal/monitor to aggregate over.
func (r *Recorder) Fetches() []FetchEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]FetchEvent, len(r.fetches))
	copy(out, r.fetches)
	return out
}

func (r *Recorder) Errors() []ErrorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ErrorRecord, len(r.errors))
	copy(out, r.errors)
	return out
}

func (r *Recorder) Artifacts() []ArtifactRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ArtifactRecord, len(r.artifacts))
	copy(out, r.artifacts)
	return out
}

func (r *Recorder) Stats() (CrawlStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stats == nil {
		return CrawlStats{}, false
	}
	return *r.stats, true
}

func (r *Recorder) emit(event string, attrs ...Attribute) {
	if r.writer == nil {
		return
	}
	line := formatLogfmt(r.runName, event, attrs)
	r.writer.WriteLine(line)
}
