package cmd

import (
	"github.com/spf13/cobra"
)

func newTuiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tui [files...]",
		Short:         "Force TUI mode for tracking cleaning jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		PreRunE:       cleanPreRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Skip the TTY auto-detection; the user asked for the TUI.
			return cleanExecute(cmd, args, cleanMode{ForceTUI: true})
		},
	}
	bindCleanFlags(cmd.Flags())
	// In TUI mode, '--no-ui' makes no sense, but keep flag for compatibility.
	if f := cmd.Flags().Lookup("no-ui"); f != nil {
		f.Hidden = true
	}
	return cmd
}
