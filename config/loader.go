package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Targets file (targets.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the TCPPROBE_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  Durations accept Go
// syntax ("500ms", "2s") or a bare number of seconds.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("TCPPROBE_TARGETS"); v != "" {
		cfg.TargetsFile = v
	}
	if v := envDuration("TCPPROBE_TIMEOUT"); v > 0 {
		cfg.Timeout = v
	}
	if envBool("TCPPROBE_NO_DNS") {
		cfg.NoDNS = true
	}
	if v := envInt("TCPPROBE_CONCURRENCY"); v > 0 {
		cfg.Concurrency = v
	}
	if v := envFloat("TCPPROBE_RATE"); v > 0 {
		cfg.Rate = v
	}

	// Watch mode
	if v := envDuration("TCPPROBE_WATCH"); v > 0 {
		cfg.Watch = true
		cfg.Interval = v
	}
	if v := os.Getenv("TCPPROBE_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}

	// SSH gateway
	if v := os.Getenv("TCPPROBE_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("TCPPROBE_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("TCPPROBE_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("TCPPROBE_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("TCPPROBE_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("TCPPROBE_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("TCPPROBE_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envFloat(key string) float64 {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return 0
}
