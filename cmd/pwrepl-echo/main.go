// Command pwrepl-echo is a stand-in backend: it serves the REPL protocol on a
// unix socket and answers every command with the command itself.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/berrythewa/pwrepl/internal/backend"
	"github.com/berrythewa/pwrepl/internal/config"
	"github.com/berrythewa/pwrepl/internal/ipc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	var (
		socket  string
		version string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "pwrepl-echo",
		Short: "Echo backend for pwrepl",
		Long: `Serve the pwrepl protocol without a browser. Every command is answered
with its own text; "fail <message>" answers with an error.

The socket defaults to $PWREPL_SOCKET, as set by 'pwrepl backend start'.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if socket == "" {
				socket = os.Getenv("PWREPL_SOCKET")
			}
			if socket == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				socket = config.DefaultSocketPath(wd)
			}

			zc := zap.NewProductionConfig()
			zc.OutputPaths = []string{"stderr"}
			if verbose {
				zc = zap.NewDevelopmentConfig()
			}
			logger, err := zc.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			echo := backend.NewEcho(version, logger)
			logger.Info("Echo backend listening", zap.String("socket", socket), zap.String("version", version))
			err = ipc.ListenAndServe(ctx, socket, echo, logger)
			logger.Info("Echo backend stopped", zap.Int64("served", echo.Served()))
			return err
		},
	}

	cmd.Flags().StringVarP(&socket, "socket", "s", "", "unix socket to listen on")
	cmd.Flags().StringVar(&version, "protocol-version", config.DefaultProtocolVersion, "protocol version to accept (empty accepts any)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every request")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
