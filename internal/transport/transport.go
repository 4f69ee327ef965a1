// Package transport provides the dialers a probe uses to open its
// connection.  A probe only cares whether the handshake completes; the
// transport decides where the handshake is made from: this host, or an
// SSH gateway.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	// Implementations must return promptly once ctx is done; the probe
	// timeout is enforced by cancelling ctx.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
