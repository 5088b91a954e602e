package ipc

import (
	"errors"
	"fmt"
	"io"
	"net"
)

var (
	// ErrNotConnected is returned by Call when no connection is established.
	ErrNotConnected = errors.New("not connected to backend")

	// ErrConnectionClosed fails every call still outstanding when the channel closes.
	ErrConnectionClosed = errors.New("connection closed")
)

// ConnectionError reports a failed dial.
type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransportError reports a local failure to deliver a request.
type TransportError struct {
	Op  string // "marshal" or "write"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError carries the error string returned by the backend.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// IsExpectedClose reports whether err is a normal connection termination:
// EOF, use of a closed connection, broken pipe or connection reset. These
// happen routinely during shutdown races and are not worth reporting.
func IsExpectedClose(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return IsBrokenPipe(err)
}
