package probe

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	ncerr "tcpprobe/internal/errors"
	"tcpprobe/util"
)

// attempt is one connection attempt.  Three racers may try to finish
// it: the dial goroutine, the timer and the caller's context.  The
// first to move state away from Pending owns completion; the others
// only release what they hold.
type attempt struct {
	probe      *Probe
	id         string
	timeout    time.Duration
	onComplete func(Result)
	logger     *util.Logger

	state   atomic.Int32 // Outcome
	started time.Time

	armed      chan struct{} // closed once timer and stopWatch are set
	returned   chan struct{} // closed when ConnectResult returns
	dialDone   chan struct{} // closed once the dial goroutine let go of its conn
	dialCtx    context.Context
	cancelDial context.CancelFunc
	timer      *time.Timer
	stopWatch  func() bool // detaches the caller-context racer
}

func newAttempt(p *Probe, timeout time.Duration, fn func(Result)) *attempt {
	id := uuid.NewString()[:8]
	return &attempt{
		probe:      p,
		id:         id,
		timeout:    timeout,
		onComplete: fn,
		logger:     p.logger.WithPrefix("probe " + id + " " + p.addr),
		armed:      make(chan struct{}),
		returned:   make(chan struct{}),
		dialDone:   make(chan struct{}),
	}
}

// run arms the racers.  It does not block.
func (a *attempt) run(parent context.Context) {
	a.started = time.Now()
	a.probe.metrics.ProbeStarted()
	a.logger.Debug("dialing (timeout %v)", a.timeout)

	// The dial is only ever cancelled by the winner of the race, so a
	// done parent shows up as Cancelled rather than a dial error.
	a.dialCtx, a.cancelDial = context.WithCancel(context.WithoutCancel(parent))
	a.timer = time.AfterFunc(a.timeout, a.expire)
	a.stopWatch = context.AfterFunc(parent, a.cancel)
	close(a.armed)

	go a.dial()
}

func (a *attempt) dial() {
	conn, err := a.probe.dialer.Dial(a.dialCtx, "tcp", a.probe.addr)

	outcome := Succeeded
	if err != nil {
		outcome = Failed
		if ncerr.Classify(err) == ncerr.KindTimeout {
			outcome = TimedOut
		}
	}

	if !a.state.CompareAndSwap(int32(Pending), int32(outcome)) {
		if conn != nil {
			a.logger.Debug("closing late connection")
			conn.Close()
		}
		close(a.dialDone)
		return
	}

	a.timer.Stop()
	a.stopWatch()
	a.cancelDial()
	if conn != nil {
		a.logger.Debug("connected from %s", localAddr(conn))
		conn.Close()
	}
	close(a.dialDone)

	if err != nil {
		a.finish(outcome, ncerr.Wrap("dial", a.probe.addr, err))
		return
	}
	a.finish(Succeeded, nil)
}

// expire runs on the timer goroutine.
func (a *attempt) expire() {
	<-a.armed
	if !a.state.CompareAndSwap(int32(Pending), int32(TimedOut)) {
		return
	}
	a.stopWatch()
	a.abandon()
	a.finish(TimedOut, &ncerr.NetworkError{
		Op:   "dial",
		Addr: a.probe.addr,
		Kind: ncerr.KindTimeout,
		Err:  ncerr.ErrTimeout,
	})
}

// cancel runs when the caller's context is done.
func (a *attempt) cancel() {
	<-a.armed
	if !a.state.CompareAndSwap(int32(Pending), int32(Cancelled)) {
		return
	}
	a.timer.Stop()
	a.abandon()
	a.finish(Cancelled, &ncerr.NetworkError{
		Op:   "dial",
		Addr: a.probe.addr,
		Kind: ncerr.KindCanceled,
		Err:  ncerr.ErrCanceled,
	})
}

// abandon cancels the in-flight dial and waits until the dial goroutine
// has closed any connection it obtained.
func (a *attempt) abandon() {
	a.cancelDial()
	<-a.dialDone
}

// finish delivers the result.  It is only reached by the racer that won
// the state transition.
func (a *attempt) finish(outcome Outcome, err error) {
	<-a.returned

	p := a.probe
	r := Result{
		Host:    p.hostname,
		Port:    p.port,
		Outcome: outcome,
		Success: outcome == Succeeded,
		Err:     err,
		Latency: time.Since(a.started),
		Timeout: a.timeout,
	}
	if err != nil {
		r.Reason = reasonFor(p.hostname, p.addr, a.timeout, err)
	}

	switch outcome {
	case Succeeded:
		p.metrics.ProbeSucceeded(r.Latency)
		a.logger.Verbose("reachable in %s", util.FormatLatency(r.Latency))
	case TimedOut:
		p.metrics.ProbeTimedOut(r.Reason)
		a.logger.Verbose("%s", r.Reason)
	case Cancelled:
		p.metrics.ProbeCancelled()
		a.logger.Debug("%s", r.Reason)
	default:
		p.metrics.ProbeFailed(r.Reason)
		a.logger.Verbose("%s", r.Reason)
	}

	if a.onComplete != nil {
		a.onComplete(r)
	}
}

func localAddr(conn net.Conn) string {
	if la := conn.LocalAddr(); la != nil {
		return la.String()
	}
	return "?"
}
