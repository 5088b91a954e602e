//go:build !windows

package ipc

import "golang.org/x/sys/unix"

var brokenPipe = unix.EPIPE
