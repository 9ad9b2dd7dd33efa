package observability

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/basecamp/netkit/internal/network"
)

// sensitiveParams are query parameters redacted from trace output.
var sensitiveParams = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"token":         true,
	"code":          true,
	"api_key":       true,
	"apikey":        true,
	"password":      true,
	"secret":        true,
	"client_secret": true,
	"signature":     true,
}

// TraceWriter writes human-readable trace lines, timestamped relative to
// when it was created.
type TraceWriter struct {
	mu        sync.Mutex
	writer    io.Writer
	startTime time.Time
}

// NewTraceWriter creates a TraceWriter that writes to stderr.
func NewTraceWriter() *TraceWriter {
	return NewTraceWriterTo(os.Stderr)
}

// NewTraceWriterTo creates a TraceWriter that writes to w.
func NewTraceWriterTo(w io.Writer) *TraceWriter {
	return &TraceWriter{
		writer:    w,
		startTime: time.Now(),
	}
}

func (t *TraceWriter) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	elapsed := time.Since(t.startTime).Seconds()
	fmt.Fprintf(t.writer, "[%.3fs] "+format+"\n", append([]any{elapsed}, args...)...)
}

// WriteRequestStart writes a line like
//
//	[0.234s]   -> GET https://api.example.com/v1/items
//
// Retries carry the attempt number.
func (t *TraceWriter) WriteRequestStart(info network.RequestInfo) {
	if info.Attempt > 1 {
		t.printf("  -> %s %s (attempt %d)", info.Method, scrubURL(info.URL), info.Attempt)
		return
	}
	t.printf("  -> %s %s", info.Method, scrubURL(info.URL))
}

// WriteRequestEnd writes a line like "[0.279s]   <- 200 (45ms)".
func (t *TraceWriter) WriteRequestEnd(_ network.RequestInfo, result network.RequestResult) {
	if result.Err != nil {
		t.printf("  <- ERROR: %v", result.Err)
		return
	}
	t.printf("  <- %d (%dms)", result.StatusCode, result.Duration.Milliseconds())
}

// WriteRefresh writes a line like "[0.301s] Refresh default (unauthorized): ok (80ms)".
func (t *TraceWriter) WriteRefresh(info network.RefreshInfo) {
	outcome := "ok"
	if !info.Succeeded {
		outcome = "failed"
	}
	t.printf("Refresh %s (%s): %s (%dms)", info.Key, info.Reason, outcome, info.Duration.Milliseconds())
}

// Reset resets the start time for relative timestamps.
func (t *TraceWriter) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startTime = time.Now()
}

// scrubURL redacts sensitive query parameters.
func scrubURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "[unparseable URL]"
	}

	query := u.Query()
	modified := false
	for key := range query {
		if sensitiveParams[strings.ToLower(key)] {
			query.Set(key, "[REDACTED]")
			modified = true
		}
	}
	if u.User != nil {
		u.User = nil
		modified = true
	}
	if !modified {
		return rawURL
	}

	u.RawQuery = query.Encode()
	return u.String()
}
