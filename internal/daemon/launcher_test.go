//go:build !windows
// +build !windows

package daemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/berrythewa/pwrepl/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, command ...string) *config.Config {
	t.Helper()
	// short directory so the socket path stays under the sun_path limit
	dir, err := os.MkdirTemp("", "pwd")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	return &config.Config{
		Workspace: dir,
		Socket:    filepath.Join(dir, "b.sock"),
		SystemPaths: config.ConfigPaths{
			RunDir: filepath.Join(dir, "run"),
			LogDir: filepath.Join(dir, "logs"),
		},
		Backend: config.BackendConfig{
			Command:      command,
			StartTimeout: 300 * time.Millisecond,
		},
	}
}

func listen(t *testing.T, path string) {
	t.Helper()
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
}

func TestLauncher_ArgsExpandPlaceholders(t *testing.T) {
	cfg := testConfig(t, "backend", "--socket", "{socket}", "--root={workspace}")
	l := NewLauncher(cfg, nil)
	assert.Equal(t, []string{"backend", "--socket", cfg.Socket, "--root=" + cfg.Workspace}, l.Args())
	assert.Equal(t, filepath.Join(cfg.SystemPaths.RunDir, "backend-"+config.WorkspaceHash(cfg.Workspace)+".pid"), l.PidFile())
}

func TestLauncher_StatusWithoutBackend(t *testing.T) {
	l := NewLauncher(testConfig(t), nil)
	st := l.Status(context.Background())
	assert.Zero(t, st.PID)
	assert.False(t, st.Running)
	assert.False(t, st.SocketReady)

	_, err := l.Stop()
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestLauncher_StopRemovesStalePidFile(t *testing.T) {
	l := NewLauncher(testConfig(t), nil)
	require.NoError(t, os.MkdirAll(filepath.Dir(l.PidFile()), 0755))
	require.NoError(t, os.WriteFile(l.PidFile(), []byte("not-a-pid"), 0644))

	_, err := l.Stop()
	assert.ErrorIs(t, err, ErrNotRunning)
	_, err = os.Stat(l.PidFile())
	assert.True(t, os.IsNotExist(err))
}

func TestLauncher_WaitForSocket(t *testing.T) {
	cfg := testConfig(t)
	l := NewLauncher(cfg, nil)

	err := l.WaitForSocket(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	listen(t, cfg.Socket)
	require.NoError(t, l.WaitForSocket(context.Background()))
	assert.True(t, l.Status(context.Background()).SocketReady)
}

func TestLauncher_EnsureRunningUsesLiveSocket(t *testing.T) {
	cfg := testConfig(t) // no command: starting would fail
	listen(t, cfg.Socket)

	l := NewLauncher(cfg, nil)
	assert.NoError(t, l.EnsureRunning(context.Background()))
}

func TestLauncher_StartWithoutCommand(t *testing.T) {
	l := NewLauncher(testConfig(t), nil)
	_, err := l.Start(context.Background())
	assert.EqualError(t, err, "no backend command configured")
}

func TestLauncher_StartReusesRecordedProcess(t *testing.T) {
	cfg := testConfig(t, "does-not-matter")
	listen(t, cfg.Socket)
	l := NewLauncher(cfg, nil)
	require.NoError(t, os.MkdirAll(filepath.Dir(l.PidFile()), 0755))
	require.NoError(t, os.WriteFile(l.PidFile(), []byte(strconv.Itoa(os.Getpid())), 0644))

	pid, err := l.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestLauncher_StartAndStop(t *testing.T) {
	cfg := testConfig(t, "sleep", "30")
	l := NewLauncher(cfg, nil)

	// sleep never opens the socket, so the wait times out but the process is tracked
	pid, err := l.Start(context.Background())
	require.Error(t, err)
	require.Positive(t, pid)

	data, err := os.ReadFile(l.PidFile())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(pid), string(data))

	st := l.Status(context.Background())
	assert.Equal(t, pid, st.PID)
	assert.True(t, st.Running)
	assert.False(t, st.SocketReady)

	stopped, err := l.Stop()
	require.NoError(t, err)
	assert.Equal(t, pid, stopped)
	_, err = os.Stat(l.PidFile())
	assert.True(t, os.IsNotExist(err))
}
