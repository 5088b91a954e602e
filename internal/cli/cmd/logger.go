package cmd

import (
	"fmt"

	"github.com/berrythewa/pwrepl/internal/common"
	"github.com/berrythewa/pwrepl/internal/config"
	"go.uber.org/zap"
)

// SetupLogger creates the file-backed zap logger described by cfg.
func SetupLogger(cfg *config.Config) (*zap.Logger, error) {
	return common.NewLogger(cfg, common.LoggerOptions{})
}

// GetLogger returns the configured logger, creating it if necessary
func GetLogger() (*zap.Logger, error) {
	if zapLogger != nil {
		return zapLogger, nil
	}

	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	logger, err := SetupLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	zapLogger = logger
	return logger, nil
}
