// File: internal/config/config_test.go

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func withTempPaths(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()

	origGetConfigPath := getConfigPath
	origGetDefaultDataDir := getDefaultDataDir
	origGetWorkingDir := getWorkingDir
	t.Cleanup(func() {
		getConfigPath = origGetConfigPath
		getDefaultDataDir = origGetDefaultDataDir
		getWorkingDir = origGetWorkingDir
	})

	getConfigPath = func() (string, error) {
		return filepath.Join(tempDir, "config.yaml"), nil
	}
	getDefaultDataDir = func() (string, error) {
		return filepath.Join(tempDir, "data"), nil
	}
	getWorkingDir = func() (string, error) {
		return "/work/project", nil
	}
	return tempDir
}

func TestLoad(t *testing.T) {
	tempDir := withTempPaths(t)
	t.Setenv("PWREPL_SOCKET", "")

	// Loading creates the default config when the file doesn't exist
	configPath, _ := getConfigPath()
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("expected default config to be written: %v", err)
	}

	if cfg.ProtocolVersion != DefaultProtocolVersion {
		t.Errorf("Expected ProtocolVersion %s, got %s", DefaultProtocolVersion, cfg.ProtocolVersion)
	}
	if cfg.SlowCommandThreshold != DefaultSlowCommandThreshold {
		t.Errorf("Expected SlowCommandThreshold %v, got %v", DefaultSlowCommandThreshold, cfg.SlowCommandThreshold)
	}
	if cfg.SystemPaths.DataDir != filepath.Join(tempDir, "data") {
		t.Errorf("Expected DataDir %s, got %s", filepath.Join(tempDir, "data"), cfg.SystemPaths.DataDir)
	}
	if cfg.Workspace != "/work/project" {
		t.Errorf("Expected Workspace /work/project, got %s", cfg.Workspace)
	}
	if cfg.Socket != DefaultSocketPath("/work/project") {
		t.Errorf("Expected derived socket, got %s", cfg.Socket)
	}

	// Loading an existing config keeps its values
	err = os.WriteFile(configPath, []byte(`
socket: /tmp/custom.sock
protocol_version: "2.3"
slow_command_threshold: 500ms
log:
  level: debug
`), 0644)
	if err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err = Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Socket != "/tmp/custom.sock" {
		t.Errorf("Expected Socket /tmp/custom.sock, got %s", cfg.Socket)
	}
	if cfg.ProtocolVersion != "2.3" {
		t.Errorf("Expected ProtocolVersion 2.3, got %s", cfg.ProtocolVersion)
	}
	if cfg.SlowCommandThreshold != 500*time.Millisecond {
		t.Errorf("Expected 500ms threshold, got %v", cfg.SlowCommandThreshold)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected Log.Level debug, got %s", cfg.Log.Level)
	}
	// unspecified sections keep their defaults
	if !cfg.History.Enabled {
		t.Error("Expected history to stay enabled")
	}
}

func TestSave(t *testing.T) {
	tempDir := withTempPaths(t)

	testConfig := DefaultConfig()
	testConfig.Socket = "/tmp/pw.sock"
	testConfig.Backend.Command = []string{"node", "server.js"}

	configPath := filepath.Join(tempDir, "nested", "config.yaml")
	if err := testConfig.Save(configPath); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	file, err := os.Open(configPath)
	if err != nil {
		t.Fatalf("Failed to open saved config: %v", err)
	}
	defer file.Close()

	var loaded Config
	if err := yaml.NewDecoder(file).Decode(&loaded); err != nil {
		t.Fatalf("Failed to decode saved config: %v", err)
	}
	if loaded.Socket != testConfig.Socket {
		t.Errorf("Expected Socket %s, got %s", testConfig.Socket, loaded.Socket)
	}
	if strings.Join(loaded.Backend.Command, " ") != "node server.js" {
		t.Errorf("Unexpected backend command %v", loaded.Backend.Command)
	}
	if loaded.SlowCommandThreshold != testConfig.SlowCommandThreshold {
		t.Errorf("Expected threshold %v, got %v", testConfig.SlowCommandThreshold, loaded.SlowCommandThreshold)
	}
}

func TestLoadConfigErrorHandling(t *testing.T) {
	tempDir := withTempPaths(t)

	configPath, _ := getConfigPath()
	if err := os.WriteFile(configPath, []byte("socket: [unterminated"), 0644); err != nil {
		t.Fatalf("Failed to write invalid config: %v", err)
	}
	if _, err := Load(configPath); err == nil {
		t.Error("Load() should fail with invalid YAML")
	}

	getConfigPath = func() (string, error) {
		return "", os.ErrPermission
	}
	if _, err := Load(""); err == nil {
		t.Error("Load() should fail when getConfigPath fails")
	}

	getDefaultDataDir = func() (string, error) {
		return "", os.ErrPermission
	}
	if _, err := Load(filepath.Join(tempDir, "other.yaml")); err == nil {
		t.Error("Load() should fail when getDefaultDataDir fails")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	withTempPaths(t)
	t.Setenv("PWREPL_SOCKET", "/run/pw/env.sock")
	t.Setenv("PWREPL_VERSION", "9.9")
	t.Setenv("PWREPL_SLOW_MS", "150")
	t.Setenv("NO_COLOR", "1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Socket != "/run/pw/env.sock" {
		t.Errorf("Expected socket from env, got %s", cfg.Socket)
	}
	if cfg.ProtocolVersion != "9.9" {
		t.Errorf("Expected version from env, got %s", cfg.ProtocolVersion)
	}
	if cfg.SlowCommandThreshold != 150*time.Millisecond {
		t.Errorf("Expected 150ms, got %v", cfg.SlowCommandThreshold)
	}
	if cfg.Output.Color {
		t.Error("NO_COLOR should disable colors")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Socket = "/tmp/x.sock"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}

	cfg.SlowCommandThreshold = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("negative threshold should be rejected")
	}

	cfg.SlowCommandThreshold = time.Second
	cfg.Backend.AutoStart = true
	cfg.Backend.Command = nil
	if err := cfg.Validate(); err == nil {
		t.Error("auto start without a command should be rejected")
	}
}

func TestDefaultSocketPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	a := DefaultSocketPath("/home/me/project")
	b := DefaultSocketPath("/home/me/project/")
	c := DefaultSocketPath("/home/me/other")

	if a != b {
		t.Errorf("equivalent workspaces should share a socket: %s vs %s", a, b)
	}
	if a == c {
		t.Errorf("different workspaces must not share a socket")
	}
	if !strings.HasPrefix(a, "/run/user/1000/pwrepl-") || !strings.HasSuffix(a, ".sock") {
		t.Errorf("unexpected socket path %s", a)
	}
	if len(WorkspaceHash("/x")) != 16 {
		t.Errorf("expected a 16 character hash")
	}
}
