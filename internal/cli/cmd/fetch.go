package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"taxoclean/internal/api"
	"taxoclean/internal/config"
	"taxoclean/internal/logging"
	"taxoclean/internal/util"
	"taxoclean/internal/util/format"
)

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "fetch <locator>",
		Short:         "Download a cleaned file by its result locator",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(getVerbose(cmd))
			client, err := api.NewClient(config.APIBase(), api.WithLogger(log))
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}

			outDir := resolveOutDir()
			if err := ensureDir(outDir); err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}

			locator := args[0]
			dest := filepath.Join(outDir, util.SanitizeFilename(locator))
			n, err := client.FetchResult(cmd.Context(), locator, dest)
			if err != nil {
				return &ExitError{Code: ExitFetchError, Err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved: %s (%s)\n", dest, format.HumanizeBytes(n))
			return nil
		},
	}
}
