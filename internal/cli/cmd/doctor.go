package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"taxoclean/internal/api"
	"taxoclean/internal/config"
	"taxoclean/internal/logging"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "doctor",
		Short:         "Diagnose connectivity to the cleaning service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New(getVerbose(cmd))
			client, err := api.NewClient(config.APIBase(), api.WithLogger(log))
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			if err := client.Ping(cmd.Context()); err != nil {
				return &ExitError{Code: ExitSubmitError, Err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service: %s (reachable)\n", client.BaseURL())
			if config.PublishableKey() != "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Gateway: publishable key configured")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Gateway: no publishable key (donate unavailable)")
			}
			return nil
		},
	}
}
