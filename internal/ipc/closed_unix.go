//go:build !windows

package ipc

import (
	"errors"

	"golang.org/x/sys/unix"
)

// IsBrokenPipe reports whether err is EPIPE or ECONNRESET.
func IsBrokenPipe(err error) bool {
	return errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET)
}
