// Package config defines the runtime configuration for tcpprobe and
// provides helpers for parsing tunnel specifications, port ranges and
// targets files.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ncerr "tcpprobe/internal/errors"
)

// Config holds every tuneable for a single tcpprobe run.
type Config struct {
	// ── Targets ──────────────────────────────────────────────────────
	Host        string
	Port        int         // first destination port
	Ports       []PortRange // all destination port specs
	TargetsFile string      // -f: YAML targets file
	Targets     []Target    // resolved target list (positional + file)
	Timeout     time.Duration
	NoDNS       bool

	// ── Scheduling ───────────────────────────────────────────────────
	Watch       bool
	Interval    time.Duration // --watch: time between rounds
	Concurrency int           // simultaneous probes per round
	Rate        float64       // probes started per second (0 = unlimited)
	MetricsAddr string        // --metrics-addr: serve /metrics and /stats

	// ── SSH gateway ──────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	DryRun  bool
}

// ── Port helpers ─────────────────────────────────────────────────────

// PortRange is an inclusive start–end pair.
type PortRange struct {
	Start int
	End   int
}

// Expand returns every port in the range.
func (pr PortRange) Expand() []int {
	out := make([]int, 0, pr.End-pr.Start+1)
	for p := pr.Start; p <= pr.End; p++ {
		out = append(out, p)
	}
	return out
}

// AllPorts flattens every PortRange into a single slice.
func (c *Config) AllPorts() []int {
	var out []int
	for _, pr := range c.Ports {
		out = append(out, pr.Expand()...)
	}
	return out
}

// ParsePortSpec accepts "80" or "80-90".
func ParsePortSpec(spec string) (PortRange, error) {
	if strings.Contains(spec, "-") {
		parts := strings.SplitN(spec, "-", 2)
		start, err := strconv.Atoi(parts[0])
		if err != nil {
			return PortRange{}, fmt.Errorf("invalid port range start %q", parts[0])
		}
		end, err := strconv.Atoi(parts[1])
		if err != nil {
			return PortRange{}, fmt.Errorf("invalid port range end %q", parts[1])
		}
		if start < 1 || end > 65535 || start > end {
			return PortRange{}, fmt.Errorf("invalid port range %d-%d", start, end)
		}
		return PortRange{Start: start, End: end}, nil
	}

	port, err := strconv.Atoi(spec)
	if err != nil {
		return PortRange{}, fmt.Errorf("invalid port %q", spec)
	}
	if !ValidPort(port) {
		return PortRange{}, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return PortRange{Start: port, End: port}, nil
}

// ValidPort reports whether p is a usable TCP destination port.
func ValidPort(p int) bool { return p >= 1 && p <= 65535 }

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || !ValidPort(port) {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ── Target assembly ──────────────────────────────────────────────────

// ResolveTargets builds c.Targets from the positional host/ports and the
// already-loaded targets file entries.  An entry without its own timeout
// takes c.Timeout (flag or environment), then fileTimeout, and is left
// zero for the probe default otherwise.
func (c *Config) ResolveTargets(fromFile []Target, fileTimeout time.Duration) {
	var out []Target
	if c.Host != "" {
		for _, p := range c.AllPorts() {
			out = append(out, Target{Host: c.Host, Port: p})
		}
		if len(c.Ports) == 0 && c.Port > 0 {
			out = append(out, Target{Host: c.Host, Port: c.Port})
		}
	}
	out = append(out, fromFile...)

	fallback := c.Timeout
	if fallback <= 0 {
		fallback = fileTimeout
	}
	for i := range out {
		if out[i].Timeout <= 0 {
			out[i].Timeout = fallback
		}
	}
	c.Targets = out
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Host == "" && c.TargetsFile == "" && len(c.Targets) == 0 {
		return &ncerr.ConfigError{
			Field:   "host",
			Message: "hostname is required",
			Hint:    "pass <host> <port> or a targets file with -f",
		}
	}
	if c.Host != "" && c.Port == 0 && len(c.Ports) == 0 {
		return &ncerr.ConfigError{
			Field:   "port",
			Message: "destination port is required",
			Hint:    "tcpprobe " + c.Host + " 443",
		}
	}
	for _, t := range c.Targets {
		if err := t.Validate(); err != nil {
			return err
		}
	}

	if c.Timeout < 0 {
		return ncerr.Invalid("timeout", c.Timeout, "must not be negative")
	}
	if c.Concurrency < 0 {
		return ncerr.Invalid("concurrency", c.Concurrency, "must not be negative")
	}
	if c.Rate < 0 {
		return ncerr.Invalid("rate", c.Rate, "must not be negative")
	}

	if c.Watch && c.Interval <= 0 {
		return &ncerr.ConfigError{
			Field:   "watch",
			Value:   c.Interval,
			Message: "interval must be positive",
			Hint:    "e.g. --watch 30s",
		}
	}
	if c.MetricsAddr != "" && !c.Watch {
		return &ncerr.ConfigError{
			Field:   "metrics-addr",
			Value:   c.MetricsAddr,
			Message: "metrics are only served in watch mode",
			Hint:    "add --watch <interval>",
		}
	}

	if c.TunnelEnabled && c.TunnelHost == "" {
		return ncerr.Invalid("tunnel", nil, "tunnel host is required")
	}
	if c.TunnelEnabled && c.NoDNS {
		return &ncerr.ConfigError{
			Field:   "no-dns",
			Message: "cannot be combined with -T",
			Hint:    "names are resolved by the gateway when tunnelling",
		}
	}
	return nil
}
