// Package cmd wires up the CLI flags and dispatches to the probe modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"tcpprobe/config"
	"tcpprobe/internal/core"
	"tcpprobe/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X tcpprobe/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// stdout receives dry-run and version output; tests swap it.
var stdout io.Writer = os.Stdout //nolint:gochecknoglobals

// Name returns the program name to prefix errors with, taken from
// argv[0] so renamed or symlinked binaries report themselves.
func Name(argv0 string) string {
	name := strings.TrimSuffix(filepath.Base(argv0), ".exe")
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "tcpprobe"
	}
	return name
}

// Execute parses args and runs the appropriate tcpprobe mode.
func Execute(ctx context.Context, args []string) error {
	cfg := &config.Config{}
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("tcpprobe", flag.ContinueOnError)

	// ── targets ──────────────────────────────────────────────────
	fs.DurationVarP(&cfg.Timeout, "timeout", "w", cfg.Timeout,
		fmt.Sprintf("Per-probe connect timeout (default %v)", config.DefaultProbeTimeout))
	fs.BoolVarP(&cfg.NoDNS, "no-dns", "n", cfg.NoDNS, "Numeric-only, no DNS resolution")
	fs.StringVarP(&cfg.TargetsFile, "targets", "f", cfg.TargetsFile, "YAML targets file")

	// ── scheduling ───────────────────────────────────────────────
	fs.DurationVar(&cfg.Interval, "watch", cfg.Interval, "Probe repeatedly at this interval")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve /metrics and /stats on addr (with --watch)")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency,
		fmt.Sprintf("Simultaneous probes (default %d)", config.DefaultConcurrency))
	fs.Float64Var(&cfg.Rate, "rate", cfg.Rate, "Probes started per second (0 = unlimited)")

	// ── SSH gateway ──────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Probe from SSH gateway [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Validate configuration and list targets without probing")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || (len(args) == 0 && cfg.TargetsFile == "") {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "tcpprobe %s\n", version)
		return nil
	}

	if fs.Changed("watch") || cfg.Interval != 0 {
		cfg.Watch = true
	}

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if cfg.TunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.TunnelSpec)
		if err != nil {
			return fmt.Errorf("tunnel: %w", err)
		}
		cfg.TunnelEnabled = true
		cfg.TunnelUser = user
		cfg.TunnelHost = host
		cfg.TunnelPort = port
	}

	// ── targets file ─────────────────────────────────────────────
	if cfg.TargetsFile != "" {
		tf, err := config.LoadTargets(cfg.TargetsFile)
		if err != nil {
			return err
		}
		tf.Apply(cfg)
	} else {
		cfg.ResolveTargets(nil, 0)
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.DryRun {
		printPlan(stdout, cfg)
		return nil
	}

	// ── run ──────────────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional reads "host port [port …]".  Positionals are optional
// when a targets file supplies the targets.
func parsePositional(cfg *config.Config, remaining []string) error {
	if len(remaining) == 0 {
		if cfg.TargetsFile != "" {
			return nil
		}
		return fmt.Errorf("hostname required (use --help for usage)")
	}
	cfg.Host = remaining[0]

	if len(remaining) < 2 {
		return fmt.Errorf("port required")
	}

	for _, arg := range remaining[1:] {
		pr, err := config.ParsePortSpec(arg)
		if err != nil {
			return fmt.Errorf("port %q: %w", arg, err)
		}
		cfg.Ports = append(cfg.Ports, pr)
	}
	cfg.Port = cfg.Ports[0].Start
	return nil
}

// printPlan describes what a run with cfg would do.
func printPlan(w io.Writer, cfg *config.Config) {
	mode := "check"
	if cfg.Watch {
		mode = fmt.Sprintf("watch every %v", cfg.Interval)
	}
	via := "direct"
	if cfg.TunnelEnabled {
		via = "via " + util.FormatAddr(cfg.TunnelHost, cfg.TunnelPort)
	}
	fmt.Fprintf(w, "mode: %s, %s, %d target(s)\n", mode, via, len(cfg.Targets))

	for _, t := range cfg.Targets {
		timeout := t.Timeout
		if timeout <= 0 {
			timeout = config.DefaultProbeTimeout
		}
		if t.Name != "" {
			fmt.Fprintf(w, "  %-24s %s (timeout %v)\n", t.Name, t.Addr(), timeout)
		} else {
			fmt.Fprintf(w, "  %s (timeout %v)\n", t.Addr(), timeout)
		}
	}
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(w, "metrics: http://%s/metrics\n", cfg.MetricsAddr)
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `tcpprobe – TCP reachability probe v%s

Reports whether a TCP handshake with each target completes within a
timeout.  No data is sent.  Exit status is 1 if any target is
unreachable.

Usage:
  tcpprobe [options] <host> <port> [ports...]       Probe once
  tcpprobe -f targets.yaml [options]                Probe a targets file
  tcpprobe --watch 30s -f targets.yaml              Probe repeatedly
  tcpprobe -T user@gateway <host> <port>            Probe from a gateway

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  tcpprobe example.com 443                          Single port
  tcpprobe -w 500ms 10.0.0.5 22 80 8000-8010        Ports and ranges
  tcpprobe --watch 30s --metrics-addr :9115 -f t.yaml
  tcpprobe -T admin@bastion db-internal 5432        Behind a bastion

Environment:
  TCPPROBE_TARGETS, TCPPROBE_TIMEOUT, TCPPROBE_WATCH, TCPPROBE_TUNNEL, …
`)
}
