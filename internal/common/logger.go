package common

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/berrythewa/pwrepl/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerOptions selects between the interactive (verbose) and file-backed logger.
type LoggerOptions struct {
	Verbose bool // development config on stderr
	Quiet   bool // warn and above only
	Level   string
}

// NewLogger creates a new logger instance.
//
// Terminal output belongs to the REPL, so unless Verbose is set logs go to
// <data>/logs/pwrepl.log (or nowhere when file logging is disabled).
func NewLogger(cfg *config.Config, opts LoggerOptions) (*zap.Logger, error) {
	levelName := cfg.Log.Level
	if opts.Level != "" {
		levelName = opts.Level
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		level = zapcore.InfoLevel
	}
	if opts.Quiet && level < zapcore.WarnLevel {
		level = zapcore.WarnLevel
	}

	if opts.Verbose {
		zc := zap.NewDevelopmentConfig()
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return zc.Build()
	}

	if !cfg.Log.EnableFileLogging {
		return zap.NewNop(), nil
	}

	logDir := cfg.SystemPaths.LogDir
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	encoding := cfg.Log.Format
	if encoding != "console" {
		encoding = "json"
	}

	zc := zap.Config{
		Level:       zap.NewAtomicLevelAt(level),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding:         encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{filepath.Join(logDir, "pwrepl.log")},
		ErrorOutputPaths: []string{"stderr"},
	}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zc.Build()
}
