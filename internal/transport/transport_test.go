package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	ncerr "tcpprobe/internal/errors"
	"tcpprobe/internal/metrics"
	"tcpprobe/util"
)

// TestTCPDialer_Connect verifies that TCPDialer completes a handshake
// with a local listener.
func TestTCPDialer_Connect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Close()
		close(accepted)
	}()

	d := &TCPDialer{}
	conn, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("listener never accepted")
	}
}

// TestTCPDialer_ContextCancel verifies that a cancelled context stops the dial.
func TestTCPDialer_ContextCancel(t *testing.T) {
	d := &TCPDialer{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Dial(ctx, "tcp", "127.0.0.1:1")
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

// TestTCPDialer_NoDNS verifies that numeric-only mode rejects hostnames
// before any lookup happens.
func TestTCPDialer_NoDNS(t *testing.T) {
	d := &TCPDialer{NoDNS: true}

	_, err := d.Dial(context.Background(), "tcp", "db.internal:5432")
	if !errors.Is(err, ncerr.ErrInvalidArgument) {
		t.Fatalf("Dial(hostname) = %v, want ErrInvalidArgument", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		if c, err := ln.Accept(); err == nil {
			c.Close()
		}
	}()

	conn, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial(ip) = %v", err)
	}
	conn.Close()
}

// TestTCPDialer_Close verifies Close is a no-op and returns nil.
func TestTCPDialer_Close(t *testing.T) {
	d := &TCPDialer{}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// fakeTunnel is an in-memory Tunnel whose Connect fails a configurable
// number of times.
type fakeTunnel struct {
	mu        sync.Mutex
	failErr   error // returned by failing connects; default "gateway refused"
	failFirst int
	connects  int
	alive     bool
	closed    bool
	dialed    []string
	hang      chan struct{} // when set, Connect waits on it or ctx
}

func (f *fakeTunnel) Connect(ctx context.Context) error {
	if f.hang != nil {
		select {
		case <-f.hang:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connects <= f.failFirst {
		if f.failErr != nil {
			return f.failErr
		}
		return errors.New("gateway refused")
	}
	f.alive = true
	return nil
}

func (f *fakeTunnel) Dial(_ context.Context, _, address string) (net.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.alive {
		return nil, ncerr.ErrNotConnected
	}
	f.dialed = append(f.dialed, address)
	client, server := net.Pipe()
	server.Close()
	return client, nil
}

func (f *fakeTunnel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive = false
	f.closed = true
	return nil
}

func (f *fakeTunnel) IsAlive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeTunnel) kill() {
	f.mu.Lock()
	f.alive = false
	f.mu.Unlock()
}

// TestSSHDialer_LazyConnect verifies that the tunnel is brought up on
// the first Dial and reused afterwards.
func TestSSHDialer_LazyConnect(t *testing.T) {
	ft := &fakeTunnel{}
	d := newSSHDialer(ft, "bastion:22", 3, util.Nop(), nil)

	if ft.connects != 0 {
		t.Fatal("tunnel connected before first Dial")
	}
	for i := 0; i < 3; i++ {
		conn, err := d.Dial(context.Background(), "tcp", "db:5432")
		if err != nil {
			t.Fatalf("Dial %d: %v", i, err)
		}
		conn.Close()
	}
	if ft.connects != 1 {
		t.Errorf("connects = %d, want 1", ft.connects)
	}
	if len(ft.dialed) != 3 {
		t.Errorf("dialed = %v, want 3 entries", ft.dialed)
	}
}

// TestSSHDialer_RetriesGateway verifies that a flaky gateway is retried
// within the attempt budget.
func TestSSHDialer_RetriesGateway(t *testing.T) {
	ft := &fakeTunnel{failFirst: 1}
	d := newSSHDialer(ft, "bastion:22", 3, util.Nop(), nil)

	conn, err := d.Dial(context.Background(), "tcp", "db:5432")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.Close()
	if ft.connects != 2 {
		t.Errorf("connects = %d, want 2", ft.connects)
	}
}

// TestSSHDialer_GatewayDown verifies that an exhausted budget surfaces
// the gateway error and never dials the target.
func TestSSHDialer_GatewayDown(t *testing.T) {
	ft := &fakeTunnel{failFirst: 100}
	d := newSSHDialer(ft, "bastion:22", 1, util.Nop(), nil)

	_, err := d.Dial(context.Background(), "tcp", "db:5432")
	if err == nil {
		t.Fatal("expected error")
	}
	var ne *ncerr.NetworkError
	if !ncerr.As(err, &ne) || ne.Kind != ncerr.KindGateway || ne.Addr != "bastion:22" {
		t.Errorf("Dial() = %v, want a gateway error for bastion:22", err)
	}
	if got := ncerr.Classify(err); got != ncerr.KindGateway {
		t.Errorf("Classify() = %v, want gateway", got)
	}
	if len(ft.dialed) != 0 {
		t.Errorf("target dialed through a dead gateway: %v", ft.dialed)
	}
}

// TestSSHDialer_QueuedDialHonoursContext verifies that a dial waiting
// behind a slow gateway handshake returns once its own context ends.
func TestSSHDialer_QueuedDialHonoursContext(t *testing.T) {
	ft := &fakeTunnel{hang: make(chan struct{})}
	d := newSSHDialer(ft, "bastion:22", 1, util.Nop(), nil)
	defer close(ft.hang)

	first, stop := context.WithCancel(context.Background())
	defer stop()
	go d.Dial(first, "tcp", "db:5432") //nolint:errcheck
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := d.Dial(ctx, "tcp", "db:5432")
	elapsed := time.Since(start)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Dial() = %v, want context.DeadlineExceeded", err)
	}
	if elapsed > 250*time.Millisecond {
		t.Errorf("queued Dial returned after %v", elapsed)
	}
}

// TestSSHDialer_HandshakeHonoursContext verifies that the dial holding
// the gateway lock gives up when its context ends.
func TestSSHDialer_HandshakeHonoursContext(t *testing.T) {
	ft := &fakeTunnel{hang: make(chan struct{})}
	d := newSSHDialer(ft, "bastion:22", 3, util.Nop(), nil)
	defer close(ft.hang)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := d.Dial(ctx, "tcp", "db:5432")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Dial() = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("Dial returned after %v", elapsed)
	}
}

// TestSSHDialer_RejectedNotRetried verifies that an authentication
// failure stops the retry loop at once.
func TestSSHDialer_RejectedNotRetried(t *testing.T) {
	rejected := ncerr.WrapSSH("auth", "bastion", 22, errors.New("no usable key"))
	ft := &fakeTunnel{failFirst: 100, failErr: rejected}
	d := newSSHDialer(ft, "bastion:22", 3, util.Nop(), nil)

	_, err := d.Dial(context.Background(), "tcp", "db:5432")
	if !errors.Is(err, rejected) {
		t.Fatalf("Dial() = %v, want the auth error", err)
	}
	if ft.connects != 1 {
		t.Errorf("connects = %d, want 1", ft.connects)
	}
}

// TestSSHDialer_Reconnect verifies that a dead tunnel is re-established
// and counted as a reconnect.
func TestSSHDialer_Reconnect(t *testing.T) {
	ft := &fakeTunnel{}
	m := metrics.New()
	d := newSSHDialer(ft, "bastion:22", 3, util.Nop(), m)

	conn, err := d.Dial(context.Background(), "tcp", "db:5432")
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()

	ft.kill()

	conn, err = d.Dial(context.Background(), "tcp", "db:5432")
	if err != nil {
		t.Fatalf("Dial after gateway loss: %v", err)
	}
	conn.Close()

	if ft.connects != 2 {
		t.Errorf("connects = %d, want 2", ft.connects)
	}
	if got := m.GatewayReconnects(); got != 1 {
		t.Errorf("GatewayReconnects() = %d, want 1", got)
	}
}

// TestSSHDialer_Close verifies that Close tears the tunnel down only
// once it was connected.
func TestSSHDialer_Close(t *testing.T) {
	ft := &fakeTunnel{}
	d := newSSHDialer(ft, "bastion:22", 3, util.Nop(), nil)

	if err := d.Close(); err != nil {
		t.Fatalf("Close before connect: %v", err)
	}
	if ft.closed {
		t.Error("unconnected tunnel was closed")
	}

	conn, err := d.Dial(context.Background(), "tcp", "db:5432")
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !ft.closed {
		t.Error("tunnel not closed")
	}
}
