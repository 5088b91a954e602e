package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/berrythewa/pwrepl/internal/history"
	"github.com/berrythewa/pwrepl/pkg/format"
)

// newHistoryCmd creates the history command with all subcommands
func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear the input history",
		Long: `Show or clear the lines typed at the prompt.

History is kept across runs in a BoltDB file in the data directory and is
shared by every workspace.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default behavior: list recent history
			return executeHistoryList(cmd, limit, false)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryClearCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var (
		limit   int
		useJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent input lines",
		Long: `List recent input lines, oldest first.

Examples:
  pwrepl history list            # last 20 lines
  pwrepl history list -n 0       # everything
  pwrepl history list --json     # entries with timestamps and session ids`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeHistoryList(cmd, limit, useJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show (0 = all)")
	cmd.Flags().BoolVar(&useJSON, "json", false, "output entries as JSON")
	return cmd
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the input history",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistoryStore()
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Clear()
			if err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			f := newFormatter(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), f.FormatSuccess(fmt.Sprintf("Cleared %d entries", n)))
			return nil
		},
	}
}

// openHistoryStore opens the history database for a one-shot command.
func openHistoryStore() (*history.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	if !cfg.History.Enabled {
		return nil, fmt.Errorf("history is disabled in %s", cfg.SystemPaths.ActiveConfig)
	}
	if _, err := os.Stat(cfg.History.DBPath); err != nil {
		return nil, fmt.Errorf("no history at %s", cfg.History.DBPath)
	}
	// a negative limit keeps Add from pruning; one-shot commands never add
	return history.Open(history.StoreConfig{
		DBPath: cfg.History.DBPath,
		Limit:  -1,
		Logger: GetZapLogger().Named("history"),
	})
}

func executeHistoryList(cmd *cobra.Command, limit int, useJSON bool) error {
	store, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(limit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	out := cmd.OutOrStdout()
	if useJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	items := make([]format.ListItem, len(entries))
	for i, e := range entries {
		items[i] = format.ListItem{Text: e.Line, Time: e.Time}
	}
	fmt.Fprintln(out, newFormatter(out).FormatList("History", items))
	return nil
}
