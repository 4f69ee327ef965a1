package transport

import (
	"context"
	"net"
	"strconv"

	ncerr "tcpprobe/internal/errors"
	"tcpprobe/util"
)

// TCPDialer establishes plain TCP connections from this host.
type TCPDialer struct {
	// NoDNS rejects hostnames; only numeric IP addresses are dialed.
	NoDNS bool
}

// Dial connects to address over TCP.  Keep-alives are disabled: probe
// connections are closed as soon as the handshake completes.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if d.NoDNS {
		host, portStr, err := net.SplitHostPort(address)
		if err != nil {
			return nil, ncerr.Wrap("dial", address, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, ncerr.Wrap("dial", address, err)
		}
		if _, err := util.ResolveAddr(host, port, true); err != nil {
			return nil, ncerr.Invalid("host", host, err.Error())
		}
	}

	dialer := net.Dialer{KeepAlive: -1}
	return dialer.DialContext(ctx, network, address)
}

// Close is a no-op for stateless TCP dialers.
func (d *TCPDialer) Close() error { return nil }
