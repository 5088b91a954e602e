//go:build windows

package ipc

import "golang.org/x/sys/windows"

var brokenPipe = windows.ERROR_BROKEN_PIPE
