package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tcpprobe/config"
	"tcpprobe/internal/metrics"
	"tcpprobe/probe"
	"tcpprobe/util"
)

// WatchMode repeats check rounds every Interval until its context is
// done.  It prints a line whenever a target changes state and, when
// MetricsAddr is set, serves /metrics and /stats over HTTP.
type WatchMode struct {
	Prober        *Prober
	Interval      time.Duration
	MetricsAddr   string
	Registry      *prometheus.Registry
	TargetMetrics *metrics.TargetMetrics
	Stdout        io.Writer
	Logger        *util.Logger

	last map[int]bool // target index → reachable in the previous round
}

// Run loops until ctx is done.  Cancellation is a normal exit.
func (m *WatchMode) Run(ctx context.Context) error {
	defer m.Prober.Dialer.Close()

	if m.MetricsAddr != "" {
		srv, err := m.serve()
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownGrace)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()
	}

	interval := m.Interval
	if interval <= 0 {
		interval = config.DefaultWatchInterval
	}
	m.Logger.Info("watching %d target(s) every %v", len(m.Prober.Targets), interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.round(ctx)
		select {
		case <-ctx.Done():
			m.Logger.Verbose("watch stopped after %d round(s)", m.Prober.Metrics.Rounds())
			return nil
		case <-ticker.C:
		}
	}
}

// round probes once, records the results and reports state changes.
func (m *WatchMode) round(ctx context.Context) {
	results := m.Prober.Round(ctx)
	if ctx.Err() != nil {
		return
	}
	if m.last == nil {
		m.last = make(map[int]bool, len(results))
	}

	out := m.Stdout
	if out == nil {
		out = os.Stdout
	}

	for i, r := range results {
		t := m.Prober.Targets[i]
		m.TargetMetrics.Observe(t.Label(), t.Addr(), r.Outcome.Label(), r.Latency)

		prev, seen := m.last[i]
		if !seen || prev != r.Success {
			fmt.Fprintf(out, "%s %s\n", time.Now().Format(time.RFC3339), describe(t, r))
		}
		m.last[i] = r.Success
	}
	m.Prober.Metrics.RoundCompleted()
}

func describe(t config.Target, r probe.Result) string {
	if t.Name != "" {
		return t.Name + " " + r.String()
	}
	return r.String()
}

// Handler returns the HTTP handler serving /metrics and /stats.
func (m *WatchMode) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, m.Prober.Metrics.JSON()) //nolint:errcheck
	})
	return mux
}

// serve binds MetricsAddr and serves Handler in the background.
func (m *WatchMode) serve() (*http.Server, error) {
	ln, err := net.Listen("tcp", m.MetricsAddr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	srv := &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.Logger.Info("serving metrics on http://%s/metrics", ln.Addr())

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.Logger.Error("metrics server: %v", err)
		}
	}()
	return srv, nil
}
