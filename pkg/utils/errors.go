package utils

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// ErrCircuitOpen is returned when a circuit breaker rejects a call without running it.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ConnectionError represents transport-level failures: dial, read, write, timeout, reset.
type ConnectionError struct {
	Target     string
	Op         string
	Underlying error
}

func (e *ConnectionError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("connection error (%s, %s): %v", e.Target, e.Op, e.Underlying)
	}
	return fmt.Sprintf("connection error (%s): %v", e.Target, e.Underlying)
}

func (e *ConnectionError) Unwrap() error {
	return e.Underlying
}

// NewConnectionError creates a new connection error
func NewConnectionError(target string, err error) *ConnectionError {
	return &ConnectionError{
		Target:     target,
		Underlying: err,
	}
}

// NewConnectionOpError creates a connection error tagged with the failing operation
func NewConnectionOpError(target, op string, err error) *ConnectionError {
	return &ConnectionError{
		Target:     target,
		Op:         op,
		Underlying: err,
	}
}

// ProtocolError represents a malformed or unexpected reply from the peer.
type ProtocolError struct {
	Reason string
	Words  []string
}

func (e *ProtocolError) Error() string {
	if len(e.Words) > 0 {
		return fmt.Sprintf("protocol error: %s %q", e.Reason, e.Words)
	}
	return "protocol error: " + e.Reason
}

// NewProtocolError creates a new protocol error
func NewProtocolError(reason string, words ...string) *ProtocolError {
	return &ProtocolError{Reason: reason, Words: words}
}

// WordTooLongError is returned when a word does not fit the 32-bit length prefix.
type WordTooLongError struct {
	Length uint64
}

func (e *WordTooLongError) Error() string {
	return fmt.Sprintf("word too long: %d bytes (max %d)", e.Length, uint64(1<<32-1))
}

// IsTransient reports whether err is worth retrying. Only transport failures are.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var wordErr *WordTooLongError
	var protoErr *ProtocolError
	if errors.As(err, &wordErr) || errors.As(err, &protoErr) || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE)
}

// IsTransportError reports whether err originated in the transport layer.
func IsTransportError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}
