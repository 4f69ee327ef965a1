package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, targets-file parsing, and environment variable
// loading.

const (
	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultProbeTimeout is the per-attempt connect timeout when
	// neither the CLI, the environment nor the targets file sets one.
	DefaultProbeTimeout = 2 * time.Second

	// DefaultConcurrency limits the number of simultaneous probes to
	// prevent descriptor exhaustion on large port ranges.
	DefaultConcurrency = 100

	// DefaultWatchInterval is used by targets files that enable watch
	// mode without an interval.
	DefaultWatchInterval = 30 * time.Second

	// DefaultTunnelTimeout bounds the SSH gateway dial and handshake.
	DefaultTunnelTimeout = 30 * time.Second

	// DefaultTunnelAttempts is how many times the gateway connection is
	// tried before a round gives up.
	DefaultTunnelAttempts = 3

	// DefaultShutdownGrace is how long the metrics server gets to drain.
	DefaultShutdownGrace = 5 * time.Second
)
