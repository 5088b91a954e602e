package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/berrythewa/pwrepl/internal/config"
)

// newConfigCmd creates the config command
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage pwrepl configuration",
		Long: `Manage pwrepl configuration:
  • Initialize configuration for first-time setup
  • Show the effective configuration
  • Edit configuration in your preferred editor
  • Validate configuration syntax`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigEditCmd())
	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

// activeConfigPath returns the file the current run loaded its config from.
func activeConfigPath() (string, error) {
	if cfg != nil && cfg.SystemPaths.ActiveConfig != "" {
		return cfg.SystemPaths.ActiveConfig, nil
	}
	path, err := config.GetActiveConfigPath()
	if err != nil {
		return "", fmt.Errorf("failed to get active config path: %w", err)
	}
	return path, nil
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write pwrepl's defaults to the configuration file and create the
data directories (history, logs, sessions, pid files).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := activeConfigPath()
			if err != nil {
				return err
			}

			// a file written by this run's Load is still the defaults
			if _, err := os.Stat(configPath); err == nil && !force && (cfg == nil || !cfg.Created()) {
				return fmt.Errorf("configuration already exists at %s\nUse --force to overwrite or 'pwrepl config show' to view it", configPath)
			}

			defaults := config.DefaultConfig()
			GetZapLogger().Info("Initializing configuration", zap.String("config_path", configPath))
			if err := defaults.Save(configPath); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}
			if err := defaults.SystemPaths.EnsureDirs(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Configuration initialized at: %s\n", configPath)
			fmt.Fprintf(out, "✓ Data directory: %s\n", defaults.SystemPaths.DataDir)
			fmt.Fprintf(out, "✓ Sessions directory: %s\n", defaults.Sessions.Dir)
			fmt.Fprintln(out, "\nSet backend.command, then run: pwrepl backend start")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "force overwrite existing configuration")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Show the configuration in effect for this run, after environment
variables and flags (--socket, --workspace, --no-color) are applied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("configuration not loaded")
			}
			out := cmd.OutOrStdout()

			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			case "yaml":
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("failed to marshal config: %w", err)
				}
				fmt.Fprint(out, string(data))
				return nil
			default:
				return fmt.Errorf("unsupported format: %s", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format (yaml or json)")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration and data paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := activeConfigPath()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config:    %s\n", configPath)
			if cfg != nil {
				fmt.Fprintf(out, "Data:      %s\n", cfg.SystemPaths.DataDir)
				fmt.Fprintf(out, "History:   %s\n", cfg.History.DBPath)
				fmt.Fprintf(out, "Sessions:  %s\n", cfg.Sessions.Dir)
				fmt.Fprintf(out, "Logs:      %s\n", cfg.SystemPaths.LogDir)
				fmt.Fprintf(out, "Socket:    %s\n", cfg.Socket)
			}
			return nil
		},
	}
}

func newConfigEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit configuration in your preferred editor",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := activeConfigPath()
			if err != nil {
				return err
			}

			// If config doesn't exist, create with defaults
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				if err := config.DefaultConfig().Save(configPath); err != nil {
					return fmt.Errorf("failed to create default config: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Created new configuration file with defaults")
			}

			editor := os.Getenv("EDITOR")
			if editor == "" {
				editor = "vi"
			}

			editorCmd := exec.Command(editor, configPath)
			editorCmd.Stdin = os.Stdin
			editorCmd.Stdout = os.Stdout
			editorCmd.Stderr = os.Stderr
			if err := editorCmd.Run(); err != nil {
				return fmt.Errorf("failed to open editor: %w", err)
			}

			if err := validateConfig(configPath); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Warning: Configuration validation failed: %v\n", err)
				fmt.Fprintln(cmd.OutOrStdout(), "The file has been saved, but may contain errors.")
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Configuration updated and validated successfully")
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := activeConfigPath()
			if err != nil {
				return err
			}
			if err := validateConfig(configPath); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	}
}

func validateConfig(configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	parsed := config.DefaultConfig()
	if err := yaml.UnmarshalStrict(data, parsed); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}
	if parsed.Socket == "" {
		// derived at load time
		parsed.Socket = "derived"
	}
	return parsed.Validate()
}
