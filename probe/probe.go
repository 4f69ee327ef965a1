// Package probe tests whether a TCP endpoint accepts connections.
//
// A [Probe] names one immutable target.  Each Connect call starts an
// independent attempt that dials the target and arms a timer at the
// same instant; whichever finishes first decides the outcome, and the
// caller's completion function is invoked exactly once.  No application
// data is exchanged: the connection is closed as soon as the handshake
// completes.
//
// Completion never runs on the caller's goroutine and never before the
// Connect call has returned.  It runs on a goroutine owned by the
// attempt, after the attempt's socket has been released.
package probe

import (
	"context"
	"strings"
	"time"

	ncerr "tcpprobe/internal/errors"
	"tcpprobe/internal/metrics"
	"tcpprobe/internal/transport"
	"tcpprobe/util"
)

// DefaultTimeout bounds an attempt when the caller supplies no timeout.
const DefaultTimeout = 2 * time.Second

// CompletionFunc receives the outcome of one attempt.  reason is empty
// on success and describes the failure otherwise.
type CompletionFunc func(success bool, reason string)

// Probe is a reachability check for one host and port.  It is safe to
// start any number of concurrent attempts on the same Probe.
type Probe struct {
	hostname string
	port     int
	addr     string

	dialer  transport.Dialer
	logger  *util.Logger
	metrics *metrics.Collector
}

// Option configures a Probe.
type Option func(*Probe)

// WithDialer replaces the direct TCP dialer, e.g. with one that dials
// from an SSH gateway.
func WithDialer(d transport.Dialer) Option {
	return func(p *Probe) {
		if d != nil {
			p.dialer = d
		}
	}
}

// WithLogger sets the logger for attempt diagnostics.
func WithLogger(l *util.Logger) Option {
	return func(p *Probe) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics records every attempt in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Probe) { p.metrics = c }
}

// New returns a Probe for hostname:port.  It fails with a
// *errors.ConfigError (matching ErrInvalidArgument) when hostname is
// blank or port is outside 1-65535.
func New(hostname string, port int, opts ...Option) (*Probe, error) {
	if strings.TrimSpace(hostname) == "" {
		return nil, &ncerr.ConfigError{
			Field:   "host",
			Value:   hostname,
			Message: "hostname must not be empty",
		}
	}
	if port < 1 || port > 65535 {
		return nil, &ncerr.ConfigError{
			Field:   "port",
			Value:   port,
			Message: "port must be between 1 and 65535",
		}
	}

	p := &Probe{
		hostname: hostname,
		port:     port,
		addr:     util.FormatAddr(hostname, port),
		dialer:   &transport.TCPDialer{},
		logger:   util.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Hostname returns the target host.
func (p *Probe) Hostname() string { return p.hostname }

// Port returns the target port.
func (p *Probe) Port() int { return p.port }

// Addr returns the target as "host:port".
func (p *Probe) Addr() string { return p.addr }

// Connect starts an attempt bounded by [DefaultTimeout].
func (p *Probe) Connect(onComplete CompletionFunc) {
	p.ConnectTimeout(DefaultTimeout, onComplete)
}

// ConnectTimeout starts an attempt bounded by timeout.  A non-positive
// timeout means [DefaultTimeout].
func (p *Probe) ConnectTimeout(timeout time.Duration, onComplete CompletionFunc) {
	p.ConnectContext(context.Background(), timeout, onComplete)
}

// ConnectContext is like ConnectTimeout, and also abandons the attempt
// when ctx is done.  A cancelled attempt completes with success=false
// and reason "probe cancelled".
func (p *Probe) ConnectContext(ctx context.Context, timeout time.Duration, onComplete CompletionFunc) {
	p.ConnectResult(ctx, timeout, func(r Result) {
		if onComplete != nil {
			onComplete(r.Success, r.Reason)
		}
	})
}

// ConnectResult starts an attempt and delivers the full [Result] to fn.
func (p *Probe) ConnectResult(ctx context.Context, timeout time.Duration, fn func(Result)) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	a := newAttempt(p, timeout, fn)
	defer close(a.returned)
	a.run(ctx)
}

// Check runs one attempt and waits for its Result.
func (p *Probe) Check(ctx context.Context, timeout time.Duration) Result {
	ch := make(chan Result, 1)
	p.ConnectResult(ctx, timeout, func(r Result) { ch <- r })
	return <-ch
}
