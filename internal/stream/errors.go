package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error kinds reported by ErrorKind.
const (
	KindTimeout    = "timeout"
	KindConnection = "connection"
	KindStatus     = "status"
	KindDecode     = "decode"
	KindOther      = "other"
)

// errStreamClosed is returned when the backend ends the event stream.
var errStreamClosed = errors.New("event stream closed by server")

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: server returned status %d", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("%s: server returned status %d: %s", e.Endpoint, e.Code, e.Body)
}

// DecodeError is returned when a response body cannot be parsed.
type DecodeError struct {
	Endpoint string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: failed to decode response: %v", e.Endpoint, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies err for logs and metrics labels.
// Returns "" for a nil error.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return KindStatus
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return KindDecode
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) || errors.Is(err, errStreamClosed) {
		return KindConnection
	}
	return KindOther
}
