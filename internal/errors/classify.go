package errors

import (
	"context"
	"errors"
	"net"
)

// Kind is the failure class of a dial error.
type Kind int

const (
	KindNone Kind = iota
	KindResolution
	KindRefused
	KindNetUnreachable
	KindHostUnreachable
	KindReset
	KindTimeout
	KindCanceled
	KindOther
	KindGateway // the SSH gateway itself could not be reached
)

var kindNames = [...]string{
	KindNone:            "none",
	KindResolution:      "resolution",
	KindRefused:         "refused",
	KindNetUnreachable:  "network-unreachable",
	KindHostUnreachable: "host-unreachable",
	KindReset:           "reset",
	KindTimeout:         "timeout",
	KindCanceled:        "cancelled",
	KindOther:           "other",
	KindGateway:         "gateway",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Classify maps a dial error to its failure class.  Platform errno
// values are matched in classify_unix.go / classify_windows.go.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Kind
	}

	switch {
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}

	// DNS errors come before the generic timeout check: a resolver
	// timeout is still a resolution failure.
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindResolution
	}

	if k := classifyErrno(err); k != KindNone {
		return k
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return KindTimeout
	}
	return KindOther
}
