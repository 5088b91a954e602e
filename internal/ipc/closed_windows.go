//go:build windows

package ipc

import (
	"errors"

	"golang.org/x/sys/windows"
)

// IsBrokenPipe reports whether err is a broken pipe or a reset connection.
func IsBrokenPipe(err error) bool {
	return errors.Is(err, windows.ERROR_BROKEN_PIPE) ||
		errors.Is(err, windows.ERROR_NO_DATA) ||
		errors.Is(err, windows.WSAECONNRESET)
}
