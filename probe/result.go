package probe

import (
	"fmt"
	"time"

	"tcpprobe/internal/metrics"
	"tcpprobe/util"
)

// Outcome is the state of an attempt.  Pending is the only
// non-terminal state; an attempt leaves it exactly once.
type Outcome int32

const (
	Pending Outcome = iota
	Succeeded
	Failed
	TimedOut
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed out"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("Outcome(%d)", int32(o))
}

// Label returns the outcome's metrics label.
func (o Outcome) Label() string {
	switch o {
	case Succeeded:
		return metrics.OutcomeSucceeded
	case TimedOut:
		return metrics.OutcomeTimedOut
	case Cancelled:
		return metrics.OutcomeCancelled
	}
	return metrics.OutcomeFailed
}

// Result is the complete outcome of one attempt.
type Result struct {
	Host    string
	Port    int
	Outcome Outcome
	Success bool
	Reason  string // empty on success
	Err     error  // *errors.NetworkError on failure
	Latency time.Duration
	Timeout time.Duration
}

// Addr returns the probed "host:port".
func (r Result) Addr() string { return util.FormatAddr(r.Host, r.Port) }

// String renders r as one line of CLI output.
func (r Result) String() string {
	if r.Success {
		return fmt.Sprintf("%s reachable (%s)", r.Addr(), util.FormatLatency(r.Latency))
	}
	return fmt.Sprintf("%s unreachable: %s", r.Addr(), r.Reason)
}
