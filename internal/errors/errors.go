// Package errors provides domain-specific error types for tcpprobe.
//
// These types carry structured context (operation, address, failure
// class) that helps callers decide how to report failures and provides
// better diagnostics than plain string wrapping.
package errors

import (
	"errors"
	"fmt"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotConnected    = errors.New("not connected")
	ErrTimeout         = errors.New("operation timed out")
	ErrCanceled        = errors.New("operation cancelled")
	ErrUnreachable     = errors.New("one or more targets unreachable")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failed network operation together with the
// failure class assigned by [Classify].
type NetworkError struct {
	Op   string // operation: "dial", "resolve", "tunnel"
	Addr string // network address involved
	Kind Kind
	Err  error // underlying error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v (%s)", e.Op, e.Addr, e.Err, e.Kind)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with gateway context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey", "dial"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.  Every
// ConfigError matches [ErrInvalidArgument] under errors.Is.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return ErrInvalidArgument }

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, classifying the underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:   op,
		Addr: addr,
		Kind: Classify(err),
		Err:  err,
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// Invalid creates a ConfigError without a hint.
func Invalid(field string, value interface{}, message string) *ConfigError {
	return &ConfigError{Field: field, Value: value, Message: message}
}

// As is [errors.As].  Callers import this package under the ncerr
// alias and use it in place of the standard library.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }
