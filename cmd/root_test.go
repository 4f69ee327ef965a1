package cmd

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ncerr "tcpprobe/internal/errors"
)

// capture redirects stdout for the duration of the test.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })
	return &buf
}

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	out := capture(t)
	if err := Execute(context.Background(), []string{"--version"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "tcpprobe ") {
		t.Errorf("version output = %q", out.String())
	}
}

// TestName verifies the error prefix follows the invoked binary.
func TestName(t *testing.T) {
	tests := []struct {
		argv0 string
		want  string
	}{
		{"tcpprobe", "tcpprobe"},
		{"/usr/local/bin/reach", "reach"},
		{"tcpprobe.exe", "tcpprobe"},
		{"", "tcpprobe"},
	}
	for _, tt := range tests {
		if got := Name(tt.argv0); got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.argv0, got, tt.want)
		}
	}
}

// TestExecute_Help verifies --help (and no args) returns without error.
func TestExecute_Help(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {}} {
		name := "no-args"
		if len(args) > 0 {
			name = args[0]
		}
		t.Run(name, func(t *testing.T) {
			err := Execute(context.Background(), args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// TestExecute_DryRun verifies --dry-run validates and lists targets.
func TestExecute_DryRun(t *testing.T) {
	out := capture(t)
	err := Execute(context.Background(), []string{
		"-w", "500ms", "--dry-run", "db.internal", "5432", "8000-8001",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"mode: check, direct, 3 target(s)", "db.internal:8001", "timeout 500ms"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("dry-run output missing %q:\n%s", want, out.String())
		}
	}
}

// TestExecute_DryRunInvalid verifies --dry-run still catches bad configs.
func TestExecute_DryRunInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing port", []string{"--dry-run", "localhost"}},
		{"bad port", []string{"--dry-run", "localhost", "99999"}},
		{"metrics without watch", []string{"--dry-run", "--metrics-addr", ":9115", "localhost", "80"}},
		{"negative timeout", []string{"--dry-run", "-w", "-1s", "localhost", "80"}},
		{"tunnel with no-dns", []string{"--dry-run", "-n", "-T", "ops@bastion", "10.0.0.1", "80"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capture(t)
			if err := Execute(context.Background(), tt.args); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

// TestExecute_InvalidFlags verifies unknown flags produce an error.
func TestExecute_InvalidFlags(t *testing.T) {
	err := Execute(context.Background(), []string{"--nonexistent-flag"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

// TestExecute_TargetsFile verifies that -f alone is enough and that
// --watch picks up the file's interval.
func TestExecute_TargetsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	content := "interval: 45s\ntargets:\n  - name: postgres\n    host: db.internal\n    port: 5432\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	out := capture(t)
	err := Execute(context.Background(), []string{"-f", path, "--watch", "0s", "--dry-run"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "watch every 45s") || !strings.Contains(out.String(), "postgres") {
		t.Errorf("dry-run output = %q", out.String())
	}
}

// TestExecute_TargetsFileTimeout verifies that the flag and environment
// timeouts beat the file-level one, and the file beats the default.
func TestExecute_TargetsFileTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	content := "timeout: 500ms\ntargets:\n  - host: db\n    port: 5432\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		env  string
		args []string
		want string
	}{
		{"file", "", nil, "db:5432 (timeout 500ms)"},
		{"flag", "", []string{"-w", "5s"}, "db:5432 (timeout 5s)"},
		{"env", "2s", nil, "db:5432 (timeout 2s)"},
		{"flag over env", "2s", []string{"-w", "3s"}, "db:5432 (timeout 3s)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TCPPROBE_TIMEOUT", tt.env)
			out := capture(t)
			args := append([]string{"--dry-run", "-f", path}, tt.args...)
			if err := Execute(context.Background(), args); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("dry-run output = %q, want %q", out.String(), tt.want)
			}
		})
	}
}

// TestExecute_EnvTimeout verifies that TCPPROBE_TIMEOUT applies and a
// flag overrides it.
func TestExecute_EnvTimeout(t *testing.T) {
	t.Setenv("TCPPROBE_TIMEOUT", "750ms")

	out := capture(t)
	if err := Execute(context.Background(), []string{"--dry-run", "localhost", "80"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "timeout 750ms") {
		t.Errorf("env timeout not applied: %q", out.String())
	}

	out.Reset()
	if err := Execute(context.Background(), []string{"--dry-run", "-w", "1s", "localhost", "80"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "timeout 1s") {
		t.Errorf("flag did not override env: %q", out.String())
	}
}

// TestExecute_Check runs a real round against a loopback listener and
// a closed port.
func TestExecute_Check(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()
	_, port, _ := net.SplitHostPort(ln.Addr().String())

	if err := Execute(context.Background(), []string{"127.0.0.1", port}); err != nil {
		t.Errorf("reachable target: %v", err)
	}

	err = Execute(context.Background(), []string{"-w", "200ms", "127.0.0.1", port, "1"})
	if !errors.Is(err, ncerr.ErrUnreachable) {
		t.Errorf("closed port: %v, want ErrUnreachable", err)
	}
}
