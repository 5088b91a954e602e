//go:build windows
// +build windows

package daemon

import (
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

const stillActive = 259

func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.DETACHED_PROCESS,
	}
}

func processAlive(pid int) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == stillActive
}

// terminate kills the backend; Windows has no SIGTERM equivalent for detached processes.
func terminate(proc *os.Process) error {
	return proc.Kill()
}
