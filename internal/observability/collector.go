// Package observability traces and counts the requests and token refreshes
// made by a network client.
package observability

import (
	"sync"
	"time"

	"github.com/basecamp/netkit/internal/network"
)

// SessionMetrics aggregates what a session's client did.
type SessionMetrics struct {
	StartTime       time.Time
	EndTime         time.Time
	TotalRequests   int
	FailedRequests  int
	Unauthorized    int
	Retries         int
	Refreshes       int
	FailedRefreshes int
	TotalLatency    time.Duration
	RefreshLatency  time.Duration
	StatusBreakdown map[int]int
}

// SessionCollector accumulates metrics across a session.
// It is safe for concurrent use and keeps counters rather than events.
type SessionCollector struct {
	mu sync.Mutex

	startTime       time.Time
	totalRequests   int
	failedRequests  int
	unauthorized    int
	retries         int
	refreshes       int
	failedRefreshes int
	totalLatency    time.Duration
	refreshLatency  time.Duration
	statuses        map[int]int
}

// NewSessionCollector creates a new SessionCollector.
func NewSessionCollector() *SessionCollector {
	return &SessionCollector{
		startTime: time.Now(),
		statuses:  make(map[int]int),
	}
}

// RecordRequest records one dispatched request.
func (c *SessionCollector) RecordRequest(info network.RequestInfo, result network.RequestResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests++
	c.totalLatency += result.Duration
	if info.Attempt > 1 {
		c.retries++
	}
	switch {
	case result.Err != nil:
		c.failedRequests++
	case result.StatusCode == 401:
		c.unauthorized++
		c.statuses[result.StatusCode]++
	default:
		c.statuses[result.StatusCode]++
	}
}

// RecordRefresh records one refresher invocation.
func (c *SessionCollector) RecordRefresh(info network.RefreshInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refreshes++
	c.refreshLatency += info.Duration
	if !info.Succeeded {
		c.failedRefreshes++
	}
}

// Summary returns aggregated metrics for the session.
func (c *SessionCollector) Summary() SessionMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	statuses := make(map[int]int, len(c.statuses))
	for code, n := range c.statuses {
		statuses[code] = n
	}

	return SessionMetrics{
		StartTime:       c.startTime,
		EndTime:         time.Now(),
		TotalRequests:   c.totalRequests,
		FailedRequests:  c.failedRequests,
		Unauthorized:    c.unauthorized,
		Retries:         c.retries,
		Refreshes:       c.refreshes,
		FailedRefreshes: c.failedRefreshes,
		TotalLatency:    c.totalLatency,
		RefreshLatency:  c.refreshLatency,
		StatusBreakdown: statuses,
	}
}

// Reset clears all collected metrics and resets the start time.
func (c *SessionCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.totalRequests = 0
	c.failedRequests = 0
	c.unauthorized = 0
	c.retries = 0
	c.refreshes = 0
	c.failedRefreshes = 0
	c.totalLatency = 0
	c.refreshLatency = 0
	c.statuses = make(map[int]int)
}
