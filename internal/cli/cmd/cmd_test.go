package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/berrythewa/pwrepl/internal/config"
	"github.com/berrythewa/pwrepl/internal/daemon"
	"github.com/berrythewa/pwrepl/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func withConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	c := config.DefaultConfig()
	c.Workspace = "/work"
	c.Socket = filepath.Join(dir, "b.sock")
	c.Output.Color = false
	c.History.DBPath = filepath.Join(dir, "history.db")
	c.SystemPaths.ActiveConfig = filepath.Join(dir, "config.yaml")
	c.SystemPaths.RunDir = filepath.Join(dir, "run")
	c.SystemPaths.LogDir = filepath.Join(dir, "logs")

	prev := cfg
	SetConfig(c)
	t.Cleanup(func() { SetConfig(prev) })
	return c
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := GetCommands()
	var target = root[0]
	for _, c := range root {
		if c.Name() == args[0] {
			target = c
		}
	}
	out := &bytes.Buffer{}
	target.SetOut(out)
	target.SetErr(out)
	target.SetArgs(args[1:])
	err := target.Execute()
	return out.String(), err
}

func TestHistoryCommands(t *testing.T) {
	c := withConfig(t)

	store, err := history.Open(history.StoreConfig{DBPath: c.History.DBPath, SessionID: "s1"})
	require.NoError(t, err)
	for _, line := range []string{"goto https://x", "click e5", ".save"} {
		require.NoError(t, store.Add(line))
	}
	require.NoError(t, store.Close())

	out, err := execute(t, "history", "list", "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "History (2 entries)")
	assert.Contains(t, out, "click e5")
	assert.NotContains(t, out, "goto")

	out, err = execute(t, "history", "list", "--json")
	require.NoError(t, err)
	var entries []history.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "s1", entries[0].SessionID)

	out, err = execute(t, "history", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 3 entries")

	out, err = execute(t, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No history")
}

func TestHistoryDisabled(t *testing.T) {
	c := withConfig(t)
	c.History.Enabled = false

	_, err := execute(t, "history", "list")
	assert.ErrorContains(t, err, "history is disabled")
}

func TestConfigShow(t *testing.T) {
	c := withConfig(t)

	out, err := execute(t, "config", "show")
	require.NoError(t, err)
	var shown map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &shown))
	assert.Equal(t, c.Socket, shown["socket"])

	out, err = execute(t, "config", "show", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"workspace": "/work"`)

	_, err = execute(t, "config", "show", "--format", "toml")
	assert.EqualError(t, err, "unsupported format: toml")
}

func TestConfigInitAndValidate(t *testing.T) {
	c := withConfig(t)
	path := c.SystemPaths.ActiveConfig

	require.NoError(t, c.Save(path))
	_, err := execute(t, "config", "init")
	assert.ErrorContains(t, err, "configuration already exists")

	out, err := execute(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")

	assert.NoError(t, validateConfig(path))
	assert.Error(t, validateConfig(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestBackendStatusFields(t *testing.T) {
	fields := statusFields(daemon.Status{PID: 42, Running: true, SocketReady: true, Socket: "/tmp/s.sock", PidFile: "/run/b.pid"}, []string{"srv", "--socket", "/tmp/s.sock"})
	require.Len(t, fields, 5)
	assert.Equal(t, "running", fields[0].Value)
	assert.Equal(t, "42", fields[1].Value)
	assert.Equal(t, "srv --socket /tmp/s.sock", fields[4].Value)

	assert.Equal(t, "stopped", statusFields(daemon.Status{}, nil)[0].Value)
	assert.Equal(t, "-", statusFields(daemon.Status{}, nil)[1].Value)
	assert.Equal(t, "starting", statusFields(daemon.Status{PID: 7, Running: true}, nil)[0].Value)
	assert.Equal(t, "running (external)", statusFields(daemon.Status{SocketReady: true}, nil)[0].Value)
}

func TestBackendStatusCommand(t *testing.T) {
	withConfig(t)

	out, err := execute(t, "backend", "status")
	require.NoError(t, err)
	assert.Regexp(t, `State:\s+stopped`, out)

	out, err = execute(t, "backend", "stop")
	require.NoError(t, err)
	assert.Contains(t, out, "Backend is not running")
}

func TestVersionCommand(t *testing.T) {
	withConfig(t)
	SetVersionInfo("1.2.3", time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC).Format(time.RFC3339), "abc123")

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "pwrepl\n"))
	assert.Contains(t, out, "Version:    1.2.3")
	assert.Contains(t, out, "Commit:     abc123")
	assert.Contains(t, out, "Protocol:   1.0")
}
