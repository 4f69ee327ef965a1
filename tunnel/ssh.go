package tunnel

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "tcpprobe/internal/errors"
	"tcpprobe/util"
)

// SSHConfig holds everything needed to dial an SSH gateway.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration
}

// Addr returns the gateway's "host:port".
func (c *SSHConfig) Addr() string { return util.FormatAddr(c.Host, c.Port) }

func (c *SSHConfig) describe() string {
	if c.User == "" {
		return c.Addr()
	}
	return c.User + "@" + c.Addr()
}

// SSHTunnel implements [Tunnel] on top of an ssh.Client.  Connections
// opened through it are "direct-tcpip" channels: the TCP handshake to
// the target is performed by the gateway.
type SSHTunnel struct {
	config *SSHConfig
	logger *util.Logger

	mu     sync.RWMutex
	client *ssh.Client
	alive  bool
	auth   []ssh.AuthMethod // built once; prompts are not repeated on reconnect
}

// NewSSHTunnel creates a tunnel that is ready to [Connect].
func NewSSHTunnel(cfg *SSHConfig, logger *util.Logger) *SSHTunnel {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	return &SSHTunnel{config: cfg, logger: logger.WithPrefix("gateway " + cfg.Addr())}
}

// Connect dials the SSH gateway and completes the handshake.  Calling
// Connect on a live tunnel is a no-op.
func (t *SSHTunnel) Connect(ctx context.Context) error {
	if t.IsAlive() {
		return nil
	}

	t.mu.Lock()
	if t.auth == nil {
		methods, err := BuildAuthMethods(t.config)
		if err != nil {
			t.mu.Unlock()
			return ncerr.WrapSSH("auth", t.config.Host, t.config.Port, err)
		}
		t.auth = methods
	}
	authMethods := t.auth
	t.mu.Unlock()

	hkCallback, err := hostKeyCallback(t.config)
	if err != nil {
		return ncerr.WrapSSH("hostkey", t.config.Host, t.config.Port, err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            t.config.User,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         t.config.ConnTimeout,
	}

	addr := t.config.Addr()
	t.logger.Debug("dialing as %q", t.config.User)

	dialCtx, cancel := context.WithTimeout(ctx, t.config.ConnTimeout)
	defer cancel()

	var dialer net.Dialer
	tcpConn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return ncerr.Wrap("tunnel", addr, err)
	}

	// The handshake itself is not context-aware; bound it with a
	// deadline on the raw connection and break it off when ctx ends.
	if dl, ok := dialCtx.Deadline(); ok {
		tcpConn.SetDeadline(dl) //nolint:errcheck
	}
	stop := context.AfterFunc(dialCtx, func() {
		tcpConn.SetDeadline(time.Now()) //nolint:errcheck
	})
	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshCfg)
	if !stop() && err == nil {
		err = dialCtx.Err()
		sshConn.Close()
	}
	if err != nil {
		tcpConn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ncerr.WrapSSH("handshake", t.config.Host, t.config.Port, err)
	}
	tcpConn.SetDeadline(time.Time{}) //nolint:errcheck

	client := ssh.NewClient(sshConn, chans, reqs)

	t.mu.Lock()
	t.client = client
	t.alive = true
	t.mu.Unlock()

	t.logger.Verbose("connected")
	go t.monitor(client)
	return nil
}

// Dial opens a direct-tcpip channel to address from the gateway.
func (t *SSHTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	t.mu.RLock()
	client := t.client
	alive := t.alive
	t.mu.RUnlock()

	if !alive || client == nil {
		return nil, ncerr.ErrNotConnected
	}

	t.logger.Debug("dialing %s %s", network, address)
	return client.DialContext(ctx, network, address)
}

// Close shuts down the SSH connection.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.alive = false
	if t.client != nil {
		err := t.client.Close()
		t.client = nil
		return err
	}
	return nil
}

// IsAlive reports whether the tunnel is still connected.
func (t *SSHTunnel) IsAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.alive
}

// monitor blocks until client's connection closes and, if client is
// still the current one, flips the alive flag.
func (t *SSHTunnel) monitor(client *ssh.Client) {
	err := client.Wait()

	t.mu.Lock()
	if t.client == client {
		t.alive = false
	}
	t.mu.Unlock()

	if err != nil {
		t.logger.Debug("closed: %v", err)
	} else {
		t.logger.Debug("closed")
	}
}

// String describes the gateway for log lines.
func (t *SSHTunnel) String() string { return t.config.describe() }
