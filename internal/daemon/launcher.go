// Package daemon starts and stops the automation backend as a detached
// background process tracked by a pid file.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/berrythewa/pwrepl/internal/config"
	"go.uber.org/zap"
)

// ErrNotRunning is returned by Stop when no live backend is recorded in the pid file.
var ErrNotRunning = errors.New("backend is not running")

const defaultPollInterval = 50 * time.Millisecond

// Status describes the recorded backend process.
type Status struct {
	PID         int
	Running     bool
	SocketReady bool
	PidFile     string
	Socket      string
}

// Launcher manages the backend process for one workspace.
type Launcher struct {
	command   []string
	workspace string
	socket    string
	pidFile   string
	logFile   string
	timeout   time.Duration
	logger    *zap.Logger

	// Overridable for tests.
	dial func(ctx context.Context, address string) (net.Conn, error)
}

// NewLauncher creates a launcher from the backend section of cfg.
func NewLauncher(cfg *config.Config, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Backend.StartTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	name := "backend-" + config.WorkspaceHash(cfg.Workspace)
	var d net.Dialer
	return &Launcher{
		command:   cfg.Backend.Command,
		workspace: cfg.Workspace,
		socket:    cfg.Socket,
		pidFile:   filepath.Join(cfg.SystemPaths.RunDir, name+".pid"),
		logFile:   filepath.Join(cfg.SystemPaths.LogDir, name+".log"),
		timeout:   timeout,
		logger:    logger,
		dial: func(ctx context.Context, address string) (net.Conn, error) {
			return d.DialContext(ctx, "unix", address)
		},
	}
}

// PidFile returns the pid file path.
func (l *Launcher) PidFile() string { return l.pidFile }

// Args returns the backend command line with {socket} and {workspace} expanded.
func (l *Launcher) Args() []string {
	r := strings.NewReplacer("{socket}", l.socket, "{workspace}", l.workspace)
	args := make([]string, len(l.command))
	for i, a := range l.command {
		args[i] = r.Replace(a)
	}
	return args
}

// Start launches the backend detached from this process, writes its pid
// file and waits until the socket accepts connections. If a recorded backend
// is still alive its pid is returned and nothing is started.
func (l *Launcher) Start(ctx context.Context) (int, error) {
	if len(l.command) == 0 {
		return 0, errors.New("no backend command configured")
	}
	if pid, err := readPid(l.pidFile); err == nil && processAlive(pid) {
		l.logger.Info("Backend already running", zap.Int("pid", pid))
		return pid, l.WaitForSocket(ctx)
	}

	for _, dir := range []string{filepath.Dir(l.pidFile), filepath.Dir(l.logFile)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	logF, err := os.OpenFile(l.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open backend log: %w", err)
	}
	defer logF.Close()

	args := l.Args()
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = l.workspace
	cmd.Stdin = nil
	cmd.Stdout = logF
	cmd.Stderr = logF
	cmd.Env = append(os.Environ(),
		"PWREPL_SOCKET="+l.socket,
		"PWREPL_WORKSPACE="+l.workspace,
	)
	cmd.SysProcAttr = detachedProcAttr()

	l.logger.Info("Starting backend", zap.Strings("args", args), zap.String("socket", l.socket))
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start backend: %w", err)
	}

	pid := cmd.Process.Pid
	if err := os.WriteFile(l.pidFile, []byte(strconv.Itoa(pid)), 0644); err != nil {
		l.logger.Error("Failed to write pid file", zap.Error(err), zap.String("pidFile", l.pidFile))
		return pid, fmt.Errorf("failed to write pid file: %w", err)
	}

	// detach so the backend outlives us and never becomes a zombie of this process
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("failed to release backend process: %w", err)
	}

	if err := l.WaitForSocket(ctx); err != nil {
		return pid, err
	}
	l.logger.Info("Backend started", zap.Int("pid", pid), zap.String("pidFile", l.pidFile))
	return pid, nil
}

// WaitForSocket polls the socket until it accepts a connection or the start
// timeout elapses.
func (l *Launcher) WaitForSocket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	ticker := time.NewTicker(defaultPollInterval)
	defer ticker.Stop()
	for {
		if l.socketReady(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("backend socket %s not ready after %s: %w", l.socket, l.timeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Launcher) socketReady(ctx context.Context) bool {
	conn, err := l.dial(ctx, l.socket)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Stop terminates the recorded backend and removes its pid file.
func (l *Launcher) Stop() (int, error) {
	pid, err := readPid(l.pidFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			os.Remove(l.pidFile)
		}
		return 0, ErrNotRunning
	}
	if !processAlive(pid) {
		os.Remove(l.pidFile)
		return pid, ErrNotRunning
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, fmt.Errorf("failed to find process: %w", err)
	}
	if err := terminate(proc); err != nil {
		return pid, fmt.Errorf("failed to stop backend: %w", err)
	}
	os.Remove(l.pidFile)
	l.logger.Info("Backend stopped", zap.Int("pid", pid))
	return pid, nil
}

// Status reports whether the recorded backend is alive and its socket reachable.
func (l *Launcher) Status(ctx context.Context) Status {
	st := Status{PidFile: l.pidFile, Socket: l.socket}
	if pid, err := readPid(l.pidFile); err == nil {
		st.PID = pid
		st.Running = processAlive(pid)
	}
	st.SocketReady = l.socketReady(ctx)
	return st
}

// EnsureRunning starts the backend unless its socket already accepts connections.
func (l *Launcher) EnsureRunning(ctx context.Context) error {
	if l.socketReady(ctx) {
		return nil
	}
	_, err := l.Start(ctx)
	return err
}

func readPid(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in file: %q", string(data))
	}
	return pid, nil
}
