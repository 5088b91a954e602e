package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/pwrepl/internal/daemon"
	"github.com/berrythewa/pwrepl/pkg/format"
)

// newBackendCmd creates the backend command
func newBackendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Manage the Playwright backend process",
		Long: `Manage the backend process that owns the browser and serves the socket.

The backend is started from backend.command in the configuration, with
{socket} and {workspace} replaced, and runs detached from the terminal.
One backend runs per workspace.`,
	}

	cmd.AddCommand(newBackendStartCmd())
	cmd.AddCommand(newBackendStopCmd())
	cmd.AddCommand(newBackendStatusCmd())
	cmd.AddCommand(newBackendRestartCmd())
	return cmd
}

func newLauncher() (*daemon.Launcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return daemon.NewLauncher(cfg, GetZapLogger().Named("launcher")), nil
}

func newBackendStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the backend and wait for its socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLauncher()
			if err != nil {
				return err
			}
			GetZapLogger().Info("Starting backend", zap.Strings("command", l.Args()))

			pid, err := l.Start(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to start backend: %w", err)
			}
			f := newFormatter(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), f.FormatSuccess(fmt.Sprintf("Backend running (PID: %d) at %s", pid, cfg.Socket)))
			return nil
		},
	}
}

func newBackendStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the backend started by pwrepl",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLauncher()
			if err != nil {
				return err
			}
			pid, err := l.Stop()
			if errors.Is(err, daemon.ErrNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "Backend is not running")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backend stopped (PID: %d)\n", pid)
			return nil
		},
	}
}

func newBackendStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend status",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLauncher()
			if err != nil {
				return err
			}
			st := l.Status(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), newFormatter(cmd.OutOrStdout()).FormatFields("Backend", statusFields(st, l.Args())))
			return nil
		},
	}
}

func statusFields(st daemon.Status, args []string) []format.Field {
	state := "stopped"
	switch {
	case st.Running && st.SocketReady:
		state = "running"
	case st.Running:
		state = "starting"
	case st.SocketReady:
		// served by a backend pwrepl did not start
		state = "running (external)"
	}
	pid := "-"
	if st.PID > 0 {
		pid = strconv.Itoa(st.PID)
	}
	return []format.Field{
		{Label: "State", Value: state},
		{Label: "PID", Value: pid},
		{Label: "Socket", Value: st.Socket},
		{Label: "PID file", Value: st.PidFile},
		{Label: "Command", Value: strings.Join(args, " ")},
	}
}

func newBackendRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLauncher()
			if err != nil {
				return err
			}
			if _, err := l.Stop(); err != nil && !errors.Is(err, daemon.ErrNotRunning) {
				return fmt.Errorf("failed to stop backend: %w", err)
			}
			pid, err := l.Start(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to start backend: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backend restarted (PID: %d)\n", pid)
			return nil
		},
	}
}
