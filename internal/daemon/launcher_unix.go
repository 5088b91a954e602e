//go:build !windows
// +build !windows

package daemon

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// detachedProcAttr puts the backend in its own session so it survives the terminal closing.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

func terminate(proc *os.Process) error {
	return proc.Signal(unix.SIGTERM)
}
