package core

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"tcpprobe/config"
	"tcpprobe/internal/metrics"
	"tcpprobe/internal/transport"
	"tcpprobe/probe"
	"tcpprobe/util"
)

// Prober probes a fixed list of targets.  One call to Round probes
// each target once.
type Prober struct {
	Targets     []config.Target
	Dialer      transport.Dialer
	Concurrency int
	Limiter     *rate.Limiter // nil: start probes as fast as slots free up
	Logger      *util.Logger
	Metrics     *metrics.Collector

	probes []*probe.Probe
}

// NewProber builds one probe per target.
func NewProber(targets []config.Target, dialer transport.Dialer, logger *util.Logger, m *metrics.Collector) (*Prober, error) {
	p := &Prober{
		Targets:     targets,
		Dialer:      dialer,
		Concurrency: config.DefaultConcurrency,
		Logger:      logger,
		Metrics:     m,
	}
	for _, t := range targets {
		pr, err := probe.New(t.Host, t.Port,
			probe.WithDialer(dialer),
			probe.WithLogger(logger),
			probe.WithMetrics(m))
		if err != nil {
			return nil, err
		}
		p.probes = append(p.probes, pr)
	}
	return p, nil
}

// Round probes every target concurrently and returns the results in
// target order.  Targets not started before ctx is done are reported
// as cancelled.
func (p *Prober) Round(ctx context.Context) []probe.Result {
	results := make([]probe.Result, len(p.probes))

	limit := p.Concurrency
	if limit <= 0 {
		limit = config.DefaultConcurrency
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

loop:
	for i, pr := range p.probes {
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				p.Logger.Debug("round stopped at %s: %v", pr.Addr(), err)
				fillCancelled(results[i:], p.probes[i:], p.Targets[i:])
				break
			}
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			fillCancelled(results[i:], p.probes[i:], p.Targets[i:])
			break loop
		}

		wg.Add(1)
		go func(idx int, pr *probe.Probe) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = pr.Check(ctx, p.Targets[idx].Timeout)
		}(i, pr)
	}

	wg.Wait()
	return results
}

func fillCancelled(results []probe.Result, probes []*probe.Probe, targets []config.Target) {
	for i, pr := range probes {
		results[i] = probe.Result{
			Host:    pr.Hostname(),
			Port:    pr.Port(),
			Outcome: probe.Cancelled,
			Reason:  "probe cancelled",
			Timeout: targets[i].Timeout,
		}
	}
}
