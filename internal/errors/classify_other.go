//go:build !unix && !windows

package errors

func classifyErrno(error) Kind { return KindNone }
