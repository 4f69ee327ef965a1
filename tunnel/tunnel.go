// Package tunnel provides an SSH gateway backed by golang.org/x/crypto/ssh.
// Probes dialed through a gateway test reachability from the gateway's
// network position rather than the local host's.
package tunnel

import (
	"context"
	"net"
)

// Tunnel abstracts an encrypted channel through which TCP connections
// can be opened on the far side.
type Tunnel interface {
	// Connect establishes the tunnel to the gateway.
	Connect(ctx context.Context) error

	// Dial opens a connection to address from the gateway.  The dial
	// must be abandoned when ctx is done.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close tears down the tunnel and frees resources.
	Close() error

	// IsAlive reports whether the underlying connection is still up.
	IsAlive() bool
}
