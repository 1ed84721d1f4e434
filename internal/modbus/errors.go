package modbus

import (
	"errors"
	"fmt"
)

// Error taxonomy. Validation errors are never retried; timeout, disconnect
// and protocol errors are retryable per request; disconnect-class errors
// additionally signal that the connection must be re-established.
var (
	ErrValidation   = errors.New("modbus: invalid argument")
	ErrTimeout      = errors.New("modbus: request timed out")
	ErrDisconnected = errors.New("modbus: connection closed by peer")
	ErrNotConnected = errors.New("modbus: not connected")
)

// ConnectError reports a failed TCP session establishment.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("modbus: connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Modbus exception codes.
const (
	ExceptionCodeIllegalFunction    uint8 = 1
	ExceptionCodeIllegalDataAddress uint8 = 2
	ExceptionCodeIllegalDataValue   uint8 = 3
	ExceptionCodeServerFailure      uint8 = 4
	ExceptionCodeAcknowledge        uint8 = 5
	ExceptionCodeServerBusy         uint8 = 6
)

// ExceptionError is a Modbus exception response: the request reached the
// device and was rejected with the carried code.
type ExceptionError struct {
	Function uint8 // original function code, high bit cleared
	Code     uint8
}

func (e *ExceptionError) Error() string {
	name := "unknown"
	switch e.Code {
	case ExceptionCodeIllegalFunction:
		name = "illegal function"
	case ExceptionCodeIllegalDataAddress:
		name = "illegal data address"
	case ExceptionCodeIllegalDataValue:
		name = "illegal data value"
	case ExceptionCodeServerFailure:
		name = "server device failure"
	case ExceptionCodeAcknowledge:
		name = "acknowledge"
	case ExceptionCodeServerBusy:
		name = "server device busy"
	}
	return fmt.Sprintf("modbus: exception fc=%d code=%d (%s)", e.Function, e.Code, name)
}

// FrameError is a response that does not decode: bad header fields, wrong
// echoed function code, or a byte count that does not match the request.
type FrameError struct {
	Reason string
}

func (e *FrameError) Error() string {
	return "modbus: malformed frame: " + e.Reason
}

// IsDisconnect reports whether err means the connection is unusable and
// must be re-established before further exchanges.
func IsDisconnect(err error) bool {
	return errors.Is(err, ErrDisconnected) || errors.Is(err, ErrNotConnected)
}
