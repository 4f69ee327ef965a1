package core

import (
	"context"
	"fmt"
	"io"
	"os"

	ncerr "tcpprobe/internal/errors"
	"tcpprobe/util"
)

// CheckMode probes every target once and prints one line per target
// in input order.
type CheckMode struct {
	Prober *Prober
	Stdout io.Writer
	Logger *util.Logger
}

// Run performs the round.  It returns [ncerr.ErrUnreachable] if any
// target could not be reached.  The dialer is closed when Run returns.
func (m *CheckMode) Run(ctx context.Context) error {
	defer m.Prober.Dialer.Close()

	out := m.Stdout
	if out == nil {
		out = os.Stdout
	}

	m.Logger.Verbose("probing %d target(s)", len(m.Prober.Targets))
	results := m.Prober.Round(ctx)

	failed := 0
	for _, r := range results {
		fmt.Fprintln(out, r.String())
		if !r.Success {
			failed++
		}
	}
	m.Prober.Metrics.RoundCompleted()

	m.Logger.Verbose("%d/%d reachable", len(results)-failed, len(results))
	if mean := m.Prober.Metrics.MeanLatency(); mean > 0 {
		m.Logger.Debug("mean handshake %s", util.FormatLatency(mean))
	}

	if failed > 0 {
		return ncerr.ErrUnreachable
	}
	return nil
}
