package transport

import (
	"context"
	"net"
	"time"

	ncerr "tcpprobe/internal/errors"
	"tcpprobe/internal/metrics"
	"tcpprobe/internal/retry"
	"tcpprobe/tunnel"
	"tcpprobe/util"
)

// SSHDialer makes probe connections from an SSH gateway.  The tunnel is
// connected lazily on the first Dial and re-established, with backoff,
// whenever it is found dead.
type SSHDialer struct {
	tunnel   tunnel.Tunnel
	gateway  string
	logger   *util.Logger
	metrics  *metrics.Collector
	attempts int

	// lock serialises (re)connects.  It is a channel so that a dial
	// whose context ends while queued can give up.
	lock      chan struct{}
	connected bool // tunnel was up at least once; guarded by lock
}

// NewSSHDialer creates a dialer that forwards connections through an
// SSH tunnel.  The tunnel is not connected until the first Dial.
func NewSSHDialer(cfg *tunnel.SSHConfig, attempts int, logger *util.Logger, m *metrics.Collector) *SSHDialer {
	t := tunnel.NewSSHTunnel(cfg, logger)
	return newSSHDialer(t, cfg.Addr(), attempts, logger, m)
}

func newSSHDialer(t tunnel.Tunnel, gateway string, attempts int, logger *util.Logger, m *metrics.Collector) *SSHDialer {
	if logger == nil {
		logger = util.Nop()
	}
	return &SSHDialer{
		tunnel:   t,
		gateway:  gateway,
		logger:   logger,
		metrics:  m,
		attempts: attempts,
		lock:     make(chan struct{}, 1),
	}
}

// connect (re)establishes the tunnel if it is not alive.  Concurrent
// probes share one connection attempt.
func (d *SSHDialer) connect(ctx context.Context) error {
	select {
	case d.lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-d.lock }()

	if d.tunnel.IsAlive() {
		return nil
	}

	reconnect := d.connected
	if reconnect {
		d.logger.Warn("gateway connection lost, reconnecting")
	}

	b := retry.GatewayBackoff(d.attempts)
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		d.logger.Verbose("gateway attempt %d failed: %v (retrying in %v)", attempt, err, wait.Round(time.Millisecond))
	}
	err := b.Do(ctx, func(int) error {
		err := d.tunnel.Connect(ctx)
		if tunnel.IsRejected(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ncerr.NetworkError{Op: "gateway", Addr: d.gateway, Kind: ncerr.KindGateway, Err: err}
	}

	if reconnect {
		d.metrics.GatewayReconnect()
	}
	d.connected = true
	return nil
}

// Dial connects to address from the gateway, establishing the tunnel
// first if needed.  A gateway failure is returned as a
// *errors.NetworkError of kind KindGateway.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.connect(ctx); err != nil {
		return nil, err
	}
	return d.tunnel.Dial(ctx, network, address)
}

// Close tears down the underlying SSH tunnel.
func (d *SSHDialer) Close() error {
	d.lock <- struct{}{}
	defer func() { <-d.lock }()

	if d.connected {
		d.connected = false
		return d.tunnel.Close()
	}
	return nil
}
