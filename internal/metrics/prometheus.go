package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "tcpprobe"

var (
	probesDesc = prometheus.NewDesc(
		namespace+"_probes_total",
		"Finished probe attempts by outcome.",
		[]string{"outcome"}, nil,
	)
	inFlightDesc = prometheus.NewDesc(
		namespace+"_probes_in_flight",
		"Probe attempts currently racing their timer.",
		nil, nil,
	)
	roundsDesc = prometheus.NewDesc(
		namespace+"_rounds_total",
		"Completed passes over all targets.",
		nil, nil,
	)
	reconnectsDesc = prometheus.NewDesc(
		namespace+"_gateway_reconnects_total",
		"SSH gateway reconnections.",
		nil, nil,
	)
)

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- probesDesc
	ch <- inFlightDesc
	ch <- roundsDesc
	ch <- reconnectsDesc
}

// Collect implements prometheus.Collector by reading the atomic
// counters at scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, o := range []string{OutcomeSucceeded, OutcomeFailed, OutcomeTimedOut, OutcomeCancelled} {
		ch <- prometheus.MustNewConstMetric(probesDesc, prometheus.CounterValue, float64(c.Count(o)), o)
	}
	ch <- prometheus.MustNewConstMetric(inFlightDesc, prometheus.GaugeValue, float64(c.ActiveProbes()))
	ch <- prometheus.MustNewConstMetric(roundsDesc, prometheus.CounterValue, float64(c.Rounds()))
	ch <- prometheus.MustNewConstMetric(reconnectsDesc, prometheus.CounterValue, float64(c.GatewayReconnects()))
}

// TargetMetrics holds per-target series, in the style of a blackbox
// exporter: the last result as a gauge plus a latency histogram.
type TargetMetrics struct {
	up       *prometheus.GaugeVec
	duration *prometheus.HistogramVec
	results  *prometheus.CounterVec
}

// NewTargetMetrics creates unregistered per-target vectors.
func NewTargetMetrics() *TargetMetrics {
	return &TargetMetrics{
		up: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "up",
				Help:      "1 if the last probe of the target completed a TCP handshake.",
			},
			[]string{"target", "address"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "duration_seconds",
				Help:      "Time from dial start to the probe outcome.",
				Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"target"},
		),
		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "target_results_total",
				Help:      "Probe outcomes per target.",
			},
			[]string{"target", "outcome"},
		),
	}
}

// Register adds the vectors to reg.
func (m *TargetMetrics) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{m.up, m.duration, m.results} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// Observe records one finished probe of target.
func (m *TargetMetrics) Observe(target, address, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	up := 0.0
	if outcome == OutcomeSucceeded {
		up = 1
	}
	m.up.WithLabelValues(target, address).Set(up)
	m.duration.WithLabelValues(target).Observe(latency.Seconds())
	m.results.WithLabelValues(target, outcome).Inc()
}

// NewRegistry returns a registry holding c, m and the Go runtime
// collectors.
func NewRegistry(c *Collector, m *TargetMetrics) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	if err := m.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}
