//go:build windows

package errors

import (
	"errors"

	"golang.org/x/sys/windows"
)

func classifyErrno(err error) Kind {
	switch {
	case errors.Is(err, windows.WSAECONNREFUSED):
		return KindRefused
	case errors.Is(err, windows.WSAENETUNREACH):
		return KindNetUnreachable
	case errors.Is(err, windows.WSAEHOSTUNREACH), errors.Is(err, windows.WSAEHOSTDOWN):
		return KindHostUnreachable
	case errors.Is(err, windows.WSAECONNRESET), errors.Is(err, windows.WSAECONNABORTED):
		return KindReset
	case errors.Is(err, windows.WSAETIMEDOUT):
		return KindTimeout
	}
	return KindNone
}
