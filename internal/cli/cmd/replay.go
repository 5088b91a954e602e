package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

func newReplayCmd() *cobra.Command {
	var step bool

	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Replay a recorded session file",
		Long: `Replay a .pw session file against the backend and exit.

Commands run in file order and the replay stops at the first failure.
Relative names are looked up in the sessions directory, and the .pw
extension may be omitted.

Examples:
  pwrepl replay login              # sessions/login.pw
  pwrepl replay ./flows/checkout.pw
  pwrepl replay login --step       # wait for Enter between commands`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, release, err := newREPL(os.Stdin, os.Stdout, false)
			if err != nil {
				return err
			}
			defer release()
			return r.RunReplay(cmd.Context(), args[0], step)
		},
	}

	cmd.Flags().BoolVar(&step, "step", false, "pause before each command until Enter or .next is read")
	return cmd
}
