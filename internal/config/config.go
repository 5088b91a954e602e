// File: internal/config/config.go

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultProtocolVersion is sent in every request; the backend rejects mismatches.
	DefaultProtocolVersion = "1.0"

	// DefaultSlowCommandThreshold is the latency above which a command's timing is reported.
	DefaultSlowCommandThreshold = 2 * time.Second
)

// ConfigPaths holds all relevant paths for the application
type ConfigPaths struct {
	BaseDir      string `json:"base_dir" yaml:"base_dir"`           // Base directory for config files
	ActiveConfig string `json:"active_config" yaml:"active_config"` // Path to the config file in use
	DataDir      string `json:"data_dir" yaml:"data_dir"`           // Directory for application data
	DBFile       string `json:"db_file" yaml:"db_file"`             // Input history database
	LogDir       string `json:"log_dir" yaml:"log_dir"`             // Directory for log files
	SessionsDir  string `json:"sessions_dir" yaml:"sessions_dir"`   // Default location of .pw files
	RunDir       string `json:"run_dir" yaml:"run_dir"`             // Backend pid files
}

// Config holds all application configuration.
//
// A Config is built once at startup (file, environment, flags) and is treated
// as read-only afterwards; components receive it by pointer and never mutate it.
type Config struct {
	// Socket is the backend address. Derived from Workspace when empty.
	Socket string `json:"socket" yaml:"socket"`

	// Workspace is sent as params.cwd and seeds the socket name. Defaults to the working directory.
	Workspace string `json:"workspace" yaml:"workspace"`

	// ProtocolVersion is echoed in the version field of every request.
	ProtocolVersion string `json:"protocol_version" yaml:"protocol_version"`

	// SlowCommandThreshold controls when per-command timing is printed.
	SlowCommandThreshold time.Duration `json:"slow_command_threshold" yaml:"slow_command_threshold"`

	SystemPaths ConfigPaths    `json:"system_paths" yaml:"system_paths"`
	Log         LogConfig      `json:"log" yaml:"log"`
	History     HistoryConfig  `json:"history" yaml:"history"`
	Sessions    SessionsConfig `json:"sessions" yaml:"sessions"`
	Backend     BackendConfig  `json:"backend" yaml:"backend"`
	Output      OutputConfig   `json:"output" yaml:"output"`

	created bool
}

// LogConfig holds logging-related configuration
type LogConfig struct {
	Level             string `json:"level" yaml:"level"`
	EnableFileLogging bool   `json:"enable_file_logging" yaml:"enable_file_logging"`
	Format            string `json:"format" yaml:"format"` // "json" or "console"
}

// HistoryConfig controls the persistent input history
type HistoryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	DBPath  string `json:"db_path" yaml:"db_path"`
	Limit   int    `json:"limit" yaml:"limit"` // entries kept; 0 keeps everything
}

// SessionsConfig controls where recordings are written and read from
type SessionsConfig struct {
	Dir   string `json:"dir" yaml:"dir"`
	Title string `json:"title" yaml:"title"`
}

// BackendConfig describes how to launch the automation backend when it is not running
type BackendConfig struct {
	AutoStart    bool          `json:"auto_start" yaml:"auto_start"`
	Command      []string      `json:"command" yaml:"command"`
	StartTimeout time.Duration `json:"start_timeout" yaml:"start_timeout"`
}

// OutputConfig controls terminal rendering
type OutputConfig struct {
	Color bool `json:"color" yaml:"color"`
}

// Overridable for tests.
var (
	getConfigPath     = defaultConfigPath
	getDefaultDataDir = defaultDataDir
	getWorkingDir     = os.Getwd
)

func defaultConfigPath() (string, error) {
	baseDir, err := defaultBaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(baseDir, "config.yaml"), nil
}

func defaultBaseDir() (string, error) {
	if dir := os.Getenv("PWREPL_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(configDir, "PwRepl"), nil
	}
	return filepath.Join(configDir, "pwrepl"), nil
}

func defaultDataDir() (string, error) {
	if dir := os.Getenv("PWREPL_DATA_DIR"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "windows":
		if appData, err := os.UserConfigDir(); err == nil {
			return filepath.Join(appData, "PwRepl", "Data"), nil
		}
		return filepath.Join(homeDir, "AppData", "Local", "PwRepl"), nil
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", "PwRepl"), nil
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			return filepath.Join(xdgDataHome, "pwrepl"), nil
		}
		return filepath.Join(homeDir, ".local", "share", "pwrepl"), nil
	}
}

// GetConfigPaths returns the platform-specific paths. Directories are not created.
func GetConfigPaths() (*ConfigPaths, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	dataDir, err := getDefaultDataDir()
	if err != nil {
		return nil, err
	}
	return pathsFor(configPath, dataDir), nil
}

func pathsFor(configPath, dataDir string) *ConfigPaths {
	return &ConfigPaths{
		BaseDir:      filepath.Dir(configPath),
		ActiveConfig: configPath,
		DataDir:      dataDir,
		DBFile:       filepath.Join(dataDir, "history.db"),
		LogDir:       filepath.Join(dataDir, "logs"),
		SessionsDir:  filepath.Join(dataDir, "sessions"),
		RunDir:       filepath.Join(dataDir, "run"),
	}
}

// EnsureDirs creates the data directories used at runtime.
func (p ConfigPaths) EnsureDirs() error {
	for _, dir := range []string{p.DataDir, p.LogDir, p.SessionsDir, p.RunDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	paths, err := GetConfigPaths()
	if err != nil {
		// fall back to the working directory so that defaults are always usable
		paths = pathsFor("config.yaml", ".pwrepl")
	}

	return &Config{
		ProtocolVersion:      DefaultProtocolVersion,
		SlowCommandThreshold: DefaultSlowCommandThreshold,
		SystemPaths:          *paths,
		Log: LogConfig{
			Level:             "info",
			EnableFileLogging: true,
			Format:            "json",
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  paths.DBFile,
			Limit:   1000,
		},
		Sessions: SessionsConfig{
			Dir:   paths.SessionsDir,
			Title: "Playwright REPL session",
		},
		Backend: BackendConfig{
			AutoStart:    false,
			Command:      []string{"playwright-cli", "run-server", "--socket", "{socket}"},
			StartTimeout: 10 * time.Second,
		},
		Output: OutputConfig{
			Color: true,
		},
	}
}

// Load loads the configuration from the specified file or creates default if not exists.
// The returned config has Workspace and Socket resolved.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		var err error
		configPath, err = getConfigPath()
		if err != nil {
			return nil, err
		}
	}
	if _, err := getDefaultDataDir(); err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		cfg := DefaultConfig()
		cfg.SystemPaths.ActiveConfig = configPath
		cfg.SystemPaths.BaseDir = filepath.Dir(configPath)
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		cfg.created = true
		overrideFromEnv(cfg)
		return cfg, cfg.resolve()
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.SystemPaths.ActiveConfig = configPath

	overrideFromEnv(cfg)

	return cfg, cfg.resolve()
}

// resolve fills in derived values.
func (c *Config) resolve() error {
	if c.Workspace == "" {
		wd, err := getWorkingDir()
		if err != nil {
			return fmt.Errorf("failed to determine workspace: %w", err)
		}
		c.Workspace = wd
	}
	if c.Socket == "" {
		c.Socket = DefaultSocketPath(c.Workspace)
	}
	return nil
}

// Created reports whether Load wrote the config file because it was missing.
func (c *Config) Created() bool { return c.created }

// Validate reports configuration values that would make the client unusable.
func (c *Config) Validate() error {
	if c.Socket == "" {
		return errors.New("socket address is empty")
	}
	if c.ProtocolVersion == "" {
		return errors.New("protocol_version is empty")
	}
	if c.SlowCommandThreshold < 0 {
		return fmt.Errorf("slow_command_threshold must not be negative, got %s", c.SlowCommandThreshold)
	}
	if c.Backend.AutoStart && len(c.Backend.Command) == 0 {
		return errors.New("backend.auto_start requires backend.command")
	}
	return nil
}

// Save saves the configuration to the specified file
func (c *Config) Save(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetActiveConfigPath returns the path to the currently active config
func GetActiveConfigPath() (string, error) {
	return getConfigPath()
}

// overrideFromEnv overrides configuration values from environment variables
func overrideFromEnv(config *Config) {
	if val := os.Getenv("PWREPL_SOCKET"); val != "" {
		config.Socket = val
	}
	if val := os.Getenv("PWREPL_WORKSPACE"); val != "" {
		config.Workspace = val
	}
	if val := os.Getenv("PWREPL_VERSION"); val != "" {
		config.ProtocolVersion = val
	}
	if val := os.Getenv("PWREPL_LOG_LEVEL"); val != "" {
		config.Log.Level = val
	}
	if val := os.Getenv("PWREPL_SLOW_MS"); val != "" {
		if ms, err := strconv.ParseInt(val, 10, 64); err == nil {
			config.SlowCommandThreshold = time.Duration(ms) * time.Millisecond
		}
	}
	if val := os.Getenv("PWREPL_AUTOSTART"); val != "" {
		config.Backend.AutoStart = val == "true" || val == "1"
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		config.Output.Color = false
	}
}
