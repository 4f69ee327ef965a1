package core

import (
	"os"

	"golang.org/x/time/rate"

	"tcpprobe/config"
	"tcpprobe/internal/metrics"
	"tcpprobe/internal/transport"
	"tcpprobe/tunnel"
	"tcpprobe/util"
)

// Build constructs the appropriate Mode from the given configuration.
// cfg.Targets must already be resolved.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	if cfg.NoDNS {
		for _, t := range cfg.Targets {
			if _, err := util.ResolveAddr(t.Host, t.Port, true); err != nil {
				return nil, err
			}
		}
	}

	collector := metrics.New()
	prober, err := NewProber(cfg.Targets, buildDialer(cfg, logger, collector), logger, collector)
	if err != nil {
		return nil, err
	}
	if cfg.Concurrency > 0 {
		prober.Concurrency = cfg.Concurrency
	}
	if cfg.Rate > 0 {
		prober.Limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	if cfg.Watch {
		return buildWatch(cfg, prober, logger)
	}
	return &CheckMode{
		Prober: prober,
		Stdout: os.Stdout,
		Logger: logger,
	}, nil
}

// ── mode builders ────────────────────────────────────────────────────

func buildWatch(cfg *config.Config, prober *Prober, logger *util.Logger) (Mode, error) {
	tm := metrics.NewTargetMetrics()
	reg, err := metrics.NewRegistry(prober.Metrics, tm)
	if err != nil {
		prober.Dialer.Close()
		return nil, err
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = config.DefaultWatchInterval
	}

	return &WatchMode{
		Prober:        prober,
		Interval:      interval,
		MetricsAddr:   cfg.MetricsAddr,
		Registry:      reg,
		TargetMetrics: tm,
		Stdout:        os.Stdout,
		Logger:        logger,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// buildDialer creates the right transport.Dialer for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger, m *metrics.Collector) transport.Dialer {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   config.DefaultTunnelTimeout,
		}, config.DefaultTunnelAttempts, logger, m)
	}

	return &transport.TCPDialer{NoDNS: cfg.NoDNS}
}
