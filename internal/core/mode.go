// Package core is the orchestration layer.  It composes the probe,
// its transport and the metrics sinks into complete operational modes
// and provides a builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  probe  →  core  →  cmd (CLI)
package core

import "context"

// Mode represents a complete operational mode of tcpprobe (a single
// check or a watch loop).  Each mode owns its dialer and closes it
// when Run returns.
type Mode interface {
	Run(ctx context.Context) error
}
