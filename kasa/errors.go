package kasa

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed exchange with a device.
type ErrorKind int

const (
	// ConnectionFailed covers dial, write and read failures: refused,
	// unreachable, reset or timed out.
	ConnectionFailed ErrorKind = iota + 1
	// TruncatedResponse means the connection closed before the number of
	// bytes announced by the length header arrived.
	TruncatedResponse
	// MalformedResponse means the decrypted body is not a JSON object of
	// the expected shape.
	MalformedResponse
	// DeviceRejected means the device answered with a non-zero err_code.
	DeviceRejected
)

func (k ErrorKind) String() string {
	switch k {
	case ConnectionFailed:
		return "connection failed"
	case TruncatedResponse:
		return "truncated response"
	case MalformedResponse:
		return "malformed response"
	case DeviceRejected:
		return "device rejected"
	default:
		return "unknown"
	}
}

// Error is returned by every operation that exchanged (or tried to exchange)
// a message with a device.
type Error struct {
	Kind ErrorKind
	Op   string // module/action, empty for raw commands
	Addr string

	// Only set for DeviceRejected
	Code int
	Msg  string

	Err error
}

var (
	ErrConnectionFailed  = &Error{Kind: ConnectionFailed}
	ErrTruncatedResponse = &Error{Kind: TruncatedResponse}
	ErrMalformedResponse = &Error{Kind: MalformedResponse}
	ErrDeviceRejected    = &Error{Kind: DeviceRejected}

	// ErrNoEmeter is returned by energy meter calls on plugs without one.
	ErrNoEmeter = errors.New("device has no energy meter")
)

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Addr != "" {
		s = fmt.Sprintf("%s: %s", e.Addr, s)
	}
	if e.Op != "" {
		s = fmt.Sprintf("%s (%s)", s, e.Op)
	}

	if e.Kind == DeviceRejected {
		s = fmt.Sprintf("%s: err_code %d", s, e.Code)
		if e.Msg != "" {
			s = fmt.Sprintf("%s: %s", s, e.Msg)
		}
	}

	if e.Err != nil {
		s = fmt.Sprintf("%s: %v", s, e.Err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the Err* sentinels can be used
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// IsKind reports whether err is a kasa error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
