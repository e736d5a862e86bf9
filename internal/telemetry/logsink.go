package telemetry

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-logfmt/logfmt"
)

// LogSink writes one logfmt-encoded line per telemetry event to an
// underlying writer (stdout, a file, etc). It is safe for concurrent
// use; Recorder calls WriteLine from whichever goroutine records the
// event.
type LogSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLogSink(w io.Writer) *LogSink {
	return &LogSink{w: w}
}

func (s *LogSink) WriteLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, line)
}

// formatLogfmt renders a telemetry event as a single logfmt line:
// time, run, event, followed by every attribute in order.
func formatLogfmt(runName, event string, attrs []Attribute) string {
	var buf bytes.Buffer
	enc := logfmt.NewEncoder(&buf)

	_ = enc.EncodeKeyval(string(AttrTime), time.Now().Format(time.RFC3339Nano))
	_ = enc.EncodeKeyval("run", runName)
	_ = enc.EncodeKeyval("event", event)
	for _, a := range attrs {
		_ = enc.EncodeKeyval(string(a.Key), a.Value)
	}
	_ = enc.EndRecord()

	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
