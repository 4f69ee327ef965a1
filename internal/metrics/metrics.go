// Package metrics provides lightweight, lock-free counters for tracking
// probe outcomes across a tcpprobe run, and their Prometheus exposition.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Outcome labels shared by the Collector and the Prometheus vectors.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeTimedOut  = "timed_out"
	OutcomeCancelled = "cancelled"
)

// Collector tracks runtime metrics for a tcpprobe run.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	probesActive      atomic.Int64
	probesTotal       atomic.Int64
	succeeded         atomic.Int64
	failed            atomic.Int64
	timedOut          atomic.Int64
	cancelled         atomic.Int64
	latencyNanos      atomic.Int64 // sum over successful probes
	rounds            atomic.Int64
	gatewayReconnects atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastRound    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Probe metrics ────────────────────────────────────────────────────

// ProbeStarted increments both the in-flight and total counters.
func (c *Collector) ProbeStarted() {
	if c == nil {
		return
	}
	c.probesActive.Add(1)
	c.probesTotal.Add(1)
}

// ProbeSucceeded records a completed handshake and its latency.
func (c *Collector) ProbeSucceeded(latency time.Duration) {
	if c == nil {
		return
	}
	c.probesActive.Add(-1)
	c.succeeded.Add(1)
	c.latencyNanos.Add(int64(latency))
}

// ProbeFailed records a network failure and remembers its reason.
func (c *Collector) ProbeFailed(reason string) {
	if c == nil {
		return
	}
	c.probesActive.Add(-1)
	c.failed.Add(1)
	c.RecordError(reason)
}

// ProbeTimedOut records an attempt that lost the race to its timer.
func (c *Collector) ProbeTimedOut(reason string) {
	if c == nil {
		return
	}
	c.probesActive.Add(-1)
	c.timedOut.Add(1)
	c.RecordError(reason)
}

// ProbeCancelled records an attempt abandoned by its caller.
func (c *Collector) ProbeCancelled() {
	if c == nil {
		return
	}
	c.probesActive.Add(-1)
	c.cancelled.Add(1)
}

// ActiveProbes returns the number of attempts still racing.
func (c *Collector) ActiveProbes() int64 {
	if c == nil {
		return 0
	}
	return c.probesActive.Load()
}

// TotalProbes returns the lifetime attempt count.
func (c *Collector) TotalProbes() int64 {
	if c == nil {
		return 0
	}
	return c.probesTotal.Load()
}

// Count returns the number of finished attempts with the given outcome.
func (c *Collector) Count(outcome string) int64 {
	if c == nil {
		return 0
	}
	switch outcome {
	case OutcomeSucceeded:
		return c.succeeded.Load()
	case OutcomeFailed:
		return c.failed.Load()
	case OutcomeTimedOut:
		return c.timedOut.Load()
	case OutcomeCancelled:
		return c.cancelled.Load()
	}
	return 0
}

// MeanLatency returns the mean handshake time of successful probes.
func (c *Collector) MeanLatency() time.Duration {
	if c == nil {
		return 0
	}
	n := c.succeeded.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(c.latencyNanos.Load() / n)
}

// ── Round / gateway metrics ──────────────────────────────────────────

// RoundCompleted records the end of one pass over all targets.
func (c *Collector) RoundCompleted() {
	if c == nil {
		return
	}
	c.rounds.Add(1)
	c.mu.Lock()
	c.lastRound = time.Now()
	c.mu.Unlock()
}

// Rounds returns the number of completed rounds.
func (c *Collector) Rounds() int64 {
	if c == nil {
		return 0
	}
	return c.rounds.Load()
}

// GatewayReconnect records an SSH gateway reconnection.
func (c *Collector) GatewayReconnect() {
	if c == nil {
		return
	}
	c.gatewayReconnects.Add(1)
}

// GatewayReconnects returns the total gateway reconnection count.
func (c *Collector) GatewayReconnects() int64 {
	if c == nil {
		return 0
	}
	return c.gatewayReconnects.Load()
}

// RecordError stores the most recent failure message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	ProbesActive      int64  `json:"probes_active"`
	ProbesTotal       int64  `json:"probes_total"`
	Succeeded         int64  `json:"succeeded"`
	Failed            int64  `json:"failed"`
	TimedOut          int64  `json:"timed_out"`
	Cancelled         int64  `json:"cancelled"`
	MeanLatency       string `json:"mean_latency,omitempty"`
	Rounds            int64  `json:"rounds"`
	GatewayReconnects int64  `json:"gateway_reconnects"`
	LastRound         string `json:"last_round,omitempty"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Second).String(),
		ProbesActive:      c.probesActive.Load(),
		ProbesTotal:       c.probesTotal.Load(),
		Succeeded:         c.succeeded.Load(),
		Failed:            c.failed.Load(),
		TimedOut:          c.timedOut.Load(),
		Cancelled:         c.cancelled.Load(),
		Rounds:            c.rounds.Load(),
		GatewayReconnects: c.gatewayReconnects.Load(),
	}
	if m := c.MeanLatency(); m > 0 {
		s.MeanLatency = m.String()
	}
	if !c.lastRound.IsZero() {
		s.LastRound = c.lastRound.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
