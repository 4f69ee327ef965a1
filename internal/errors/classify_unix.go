//go:build unix

package errors

import (
	"errors"

	"golang.org/x/sys/unix"
)

func classifyErrno(err error) Kind {
	switch {
	case errors.Is(err, unix.ECONNREFUSED):
		return KindRefused
	case errors.Is(err, unix.ENETUNREACH):
		return KindNetUnreachable
	case errors.Is(err, unix.EHOSTUNREACH), errors.Is(err, unix.EHOSTDOWN):
		return KindHostUnreachable
	case errors.Is(err, unix.ECONNRESET), errors.Is(err, unix.ECONNABORTED):
		return KindReset
	case errors.Is(err, unix.ETIMEDOUT):
		return KindTimeout
	}
	return KindNone
}
