package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"taxoclean/internal/api"
	"taxoclean/internal/config"
	"taxoclean/internal/logging"
	"taxoclean/internal/util/format"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "status <job-id>",
		Short:         "Check the progress of a cleaning job once",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(getVerbose(cmd))
			client, err := api.NewClient(config.APIBase(), api.WithLogger(log))
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}

			resp, err := client.JobProgress(cmd.Context(), args[0])
			if err != nil {
				return &ExitError{Code: ExitCleanError, Err: err}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Status:     %s\n", resp.Status)
			if resp.Total > 0 {
				fmt.Fprintf(out, "Progress:   %d/%d (%s)\n",
					resp.Processed, resp.Total, format.Percent(resp.Processed, resp.Total))
			} else {
				fmt.Fprintf(out, "Processed:  %d\n", resp.Processed)
			}
			fmt.Fprintf(out, "Harmonized: %d\n", resp.Harmonized)
			if resp.Status == api.StatusError && resp.Detail != "" {
				fmt.Fprintf(out, "Detail:     %s\n", resp.Detail)
			}
			return nil
		},
	}
}
