package probe

import (
	"fmt"
	"net"
	"time"

	ncerr "tcpprobe/internal/errors"
)

// reasonFor describes a failed attempt in one line.
func reasonFor(host, addr string, timeout time.Duration, err error) string {
	switch ncerr.Classify(err) {
	case ncerr.KindResolution:
		var dnsErr *net.DNSError
		if ncerr.As(err, &dnsErr) {
			return fmt.Sprintf("cannot resolve host %q: %s", host, dnsErr.Err)
		}
		return fmt.Sprintf("cannot resolve host %q: %v", host, cause(err))
	case ncerr.KindRefused:
		return "connection refused by " + addr
	case ncerr.KindNetUnreachable:
		return "network unreachable: " + addr
	case ncerr.KindHostUnreachable:
		return fmt.Sprintf("host %s unreachable", host)
	case ncerr.KindReset:
		return "connection reset by " + addr
	case ncerr.KindTimeout:
		if ncerr.Is(err, ncerr.ErrTimeout) {
			return fmt.Sprintf("connection timeout after %v", timeout)
		}
		// The OS gave up on its own schedule, not ours.
		return "connection timed out (os)"
	case ncerr.KindCanceled:
		return "probe cancelled"
	case ncerr.KindGateway:
		return gatewayReason(err)
	}
	return fmt.Sprintf("connect to %s failed: %v", addr, cause(err))
}

// gatewayReason describes a failure to reach the SSH gateway, naming
// the gateway rather than the target.
func gatewayReason(err error) string {
	gw := &ncerr.NetworkError{Op: "gateway", Err: err}
	for {
		var ne *ncerr.NetworkError
		if !ncerr.As(err, &ne) {
			break
		}
		if ne.Op == "gateway" {
			gw = ne
			break
		}
		err = ne.Err
	}

	var what string
	switch ncerr.Classify(gw.Err) {
	case ncerr.KindRefused:
		what = "connection refused"
	case ncerr.KindTimeout:
		what = "connection timed out"
	case ncerr.KindResolution:
		what = "cannot resolve host"
	case ncerr.KindNetUnreachable:
		what = "network unreachable"
	case ncerr.KindHostUnreachable:
		what = "host unreachable"
	case ncerr.KindReset:
		what = "connection reset"
	default:
		what = cause(gw.Err).Error()
	}
	if gw.Addr == "" {
		return "gateway unreachable: " + what
	}
	return fmt.Sprintf("gateway %s unreachable: %s", gw.Addr, what)
}

// cause strips the layers that only repeat the address.
func cause(err error) error {
	var ne *ncerr.NetworkError
	if ncerr.As(err, &ne) && ne.Err != nil {
		err = ne.Err
	}
	var op *net.OpError
	if ncerr.As(err, &op) && op.Err != nil {
		return op.Err
	}
	return err
}
