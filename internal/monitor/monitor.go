// Package monitor keeps live, in-memory crawl counters: attempts,
// successes, and failures binned by error kind, bytes processed,
// wall-clock elapsed time, and a per-origin breakdown. It is separate
// from internal/telemetry, which records individual events for
// post-run auditability — Monitor answers "how is this crawl doing
// right now" cheaply, without replaying the event log.
package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/archivecrawl/crawler/internal/fetchpipe"
)

// originStats accumulates counters for a single host.
type originStats struct {
	attempts  int
	successes int
	failures  int
	bytes     uint64
}

// Monitor is safe for concurrent use: RecordResult is called once per
// fetch, potentially from many worker goroutines at once.
type Monitor struct {
	mu sync.Mutex

	startedAt time.Time

	attempts       int
	successes      int
	failuresByKind map[fetchpipe.ErrorKind]int
	bytesProcessed uint64

	perOrigin map[string]*originStats
}

func New() *Monitor {
	return &Monitor{
		startedAt:      time.Now(),
		failuresByKind: make(map[fetchpipe.ErrorKind]int),
		perOrigin:      make(map[string]*originStats),
	}
}

// RecordResult folds one fetch outcome into the running totals. origin
// is the host the fetch was made against (normalizeurl.FullHost of the
// fetched URL).
func (m *Monitor) RecordResult(origin string, result fetchpipe.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts++
	stats := m.originLocked(origin)
	stats.attempts++

	if result.Success() {
		m.successes++
		stats.successes++
		size := uint64(len(result.MarkdownContent))
		m.bytesProcessed += size
		stats.bytes += size
		return
	}

	m.failuresByKind[result.ErrorKind]++
	stats.failures++
}

func (m *Monitor) originLocked(origin string) *originStats {
	stats, ok := m.perOrigin[origin]
	if !ok {
		stats = &originStats{}
		m.perOrigin[origin] = stats
	}
	return stats
}

// Elapsed is how long this Monitor has been tracking a crawl.
func (m *Monitor) Elapsed() time.Duration {
	return time.Since(m.startedAt)
}

// Attempts, Successes, and Failures report the running totals.
func (m *Monitor) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

func (m *Monitor) Successes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.successes
}

func (m *Monitor) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts - m.successes
}

// BytesProcessed is the total size of successfully fetched Markdown
// content.
func (m *Monitor) BytesProcessed() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bytesProcessed
}

// SuccessRate is successes/attempts, or 0 when nothing has been
// attempted yet.
func (m *Monitor) SuccessRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attempts == 0 {
		return 0
	}
	return float64(m.successes) / float64(m.attempts)
}

// Throughput is pages fetched per second of wall-clock time since the
// Monitor was created.
func (m *Monitor) Throughput() float64 {
	elapsed := m.Elapsed().Seconds()
	if elapsed <= 0 {
		return 0
	}
	m.mu.Lock()
	attempts := m.attempts
	m.mu.Unlock()
	return float64(attempts) / elapsed
}

// FailuresByKind returns a copy of the failure-kind breakdown.
func (m *Monitor) FailuresByKind() map[fetchpipe.ErrorKind]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[fetchpipe.ErrorKind]int, len(m.failuresByKind))
	for k, v := range m.failuresByKind {
		out[k] = v
	}
	return out
}

// OriginBreakdown is a single origin's counters, exported as a plain
// value for callers (and the serializable Snapshot) rather than the
// package-private originStats pointer.
type OriginBreakdown struct {
	Attempts  int
	Successes int
	Failures  int
	Bytes     uint64
}

// PerOrigin returns a copy of the per-host breakdown.
func (m *Monitor) PerOrigin() map[string]OriginBreakdown {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]OriginBreakdown, len(m.perOrigin))
	for host, stats := range m.perOrigin {
		out[host] = OriginBreakdown{
			Attempts:  stats.attempts,
			Successes: stats.successes,
			Failures:  stats.failures,
			Bytes:     stats.bytes,
		}
	}
	return out
}

// Summary renders a one-line, human-readable progress report.
func (m *Monitor) Summary() string {
	m.mu.Lock()
	attempts := m.attempts
	successes := m.successes
	bytesProcessed := m.bytesProcessed
	m.mu.Unlock()

	return fmt.Sprintf(
		"attempts=%d successes=%d failures=%d bytes=%d elapsed=%s rate=%.1f%% throughput=%.2f/s",
		attempts, successes, attempts-successes, bytesProcessed,
		m.Elapsed().Round(time.Second), m.SuccessRate()*100, m.Throughput(),
	)
}

// Snapshot returns the current counters as a plain, JSON-friendly
// structure, for callers that want to serialize crawl progress (a
// status endpoint, a periodic progress log) without depending on
// Monitor's own type.
func (m *Monitor) Snapshot() map[string]any {
	m.mu.Lock()
	attempts := m.attempts
	successes := m.successes
	bytesProcessed := m.bytesProcessed
	failuresByKind := make(map[string]int, len(m.failuresByKind))
	for k, v := range m.failuresByKind {
		failuresByKind[string(k)] = v
	}
	perOrigin := make(map[string]OriginBreakdown, len(m.perOrigin))
	for host, stats := range m.perOrigin {
		perOrigin[host] = OriginBreakdown{
			Attempts:  stats.attempts,
			Successes: stats.successes,
			Failures:  stats.failures,
			Bytes:     stats.bytes,
		}
	}
	m.mu.Unlock()

	return map[string]any{
		"attempts":         attempts,
		"successes":        successes,
		"failures":         attempts - successes,
		"bytesProcessed":   bytesProcessed,
		"elapsedSeconds":   m.Elapsed().Seconds(),
		"successRate":      m.SuccessRate(),
		"throughputPerSec": m.Throughput(),
		"failuresByKind":   failuresByKind,
		"perOrigin":        perOrigin,
	}
}
