package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cmdpkg "github.com/berrythewa/pwrepl/internal/cli/cmd"
	"github.com/berrythewa/pwrepl/internal/common"
	"github.com/berrythewa/pwrepl/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags that apply to all commands
	cfgFile   string
	socket    string
	workspace string
	logLevel  string
	verbose   bool
	quiet     bool
	noColor   bool

	// The loaded configuration
	cfg *config.Config

	// Logger instance
	logger *zap.Logger

	// Version information - set by main
	Version   = "dev"
	BuildTime = "unknown"
	Commit    = "none"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "pwrepl",
	Short: "Interactive REPL for a Playwright automation backend",
	Long: `pwrepl keeps one connection open to a running Playwright backend and
sends it every command you type, one at a time and in order.

Running pwrepl without any commands starts the interactive prompt. Piped input
is executed line by line. Meta-commands start with a dot: .record, .save,
.replay <file>, .help.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdpkg.RunInteractive(cmd.Context(), os.Stdin, os.Stdout)
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Override config with flags
		if workspace != "" {
			cfg.Workspace = workspace
			if socket == "" && os.Getenv("PWREPL_SOCKET") == "" {
				cfg.Socket = config.DefaultSocketPath(workspace)
			}
		}
		if socket != "" {
			cfg.Socket = socket
		}
		if noColor {
			cfg.Output.Color = false
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger, err = common.NewLogger(cfg, common.LoggerOptions{
			Verbose: verbose,
			Quiet:   quiet,
			Level:   logLevel,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		logger.Debug("Configuration loaded",
			zap.String("config", cfg.SystemPaths.ActiveConfig),
			zap.String("socket", cfg.Socket),
			zap.String("workspace", cfg.Workspace))

		// Share cfg and logger with cmd package
		cmdpkg.SetConfig(cfg)
		cmdpkg.SetZapLogger(logger)
		return nil
	},
}

// cleanup performs cleanup operations before exit
func cleanup() {
	if logger != nil {
		logger.Debug("Shutting down")
		_ = logger.Sync()
	}
}

// Execute runs the root command until it returns or an interrupt arrives.
// This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := RootCmd.ExecuteContext(ctx)
	stop()
	cleanup()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// SetVersionInfo sets the version information used by the version command
func SetVersionInfo(version, buildTime, commit string) {
	Version = version
	BuildTime = buildTime
	Commit = commit
	cmdpkg.SetVersionInfo(version, buildTime, commit)
}

// AddCommand adds a command to the root command
func AddCommand(cmd *cobra.Command) {
	RootCmd.AddCommand(cmd)
}

func init() {
	RootCmd.SilenceErrors = true

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <user config dir>/pwrepl/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&socket, "socket", "s", "", "backend socket path (default derived from the workspace)")
	RootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory sent to the backend (default is the working directory)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level to stderr")
	RootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "log warnings and errors only")
	RootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}
