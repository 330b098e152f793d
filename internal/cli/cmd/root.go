package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"taxoclean/internal/config"
	"taxoclean/internal/dirs"
)

const (
	ExitOK              = 0
	ExitCLIError        = 1
	ExitValidationError = 2
	ExitSubmitError     = 3
	ExitCleanError      = 4
	ExitFetchError      = 5
	ExitPaymentError    = 6
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taxoclean [files...]",
		Short:         "Clean biological taxonomy datasets",
		Long:          "Taxoclean uploads CSV datasets to the taxonomy cleaning service, tracks the server-side cleaning job to completion, and fetches the cleaned file. Scientific names are normalized and taxonomy hierarchies detected on the server; this tool drives the job and brings the result home.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default to the clean behavior when no subcommand is specified.
			return cleanExecute(cmd, args, cleanMode{ForceTUI: false})
		},
	}

	// Persistent flags available to all subcommands
	root.PersistentFlags().String("api-base", config.DefaultAPIBase, "Base address of the cleaning service")
	root.PersistentFlags().StringP("out-dir", "o", "", "Directory cleaned files are fetched into (defaults to the user data dir)")
	root.PersistentFlags().BoolP("verbose", "v", false, "Show diagnostic logging")
	root.PersistentFlags().Int("jobs", 2, "Max concurrent files in TUI")
	root.PersistentFlags().String("publishable-key", "", "Payment gateway publishable key (donate)")

	// Also bind clean-specific flags on root, so `taxoclean <file>` works.
	bindCleanFlags(root.Flags())

	// Subcommands
	root.AddCommand(newCleanCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newFetchCmd())
	root.AddCommand(newDonateCmd())
	root.AddCommand(newTuiCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newCompletionCmd())

	return root
}

func bindCleanFlags(fs *pflag.FlagSet) {
	fs.Duration("poll-interval", 0, "Interval between job status polls (0 uses the service default of 1s)")
	fs.Int("poll-retries", 0, "Consecutive poll failures tolerated before the job is declared failed (0 uses default of 3)")
	fs.Duration("deadline", 0, "Overall per-file tracking deadline (0 uses default of 30m)")
	fs.Bool("no-fetch", false, "Stop once the job is ready; print the download URL instead of fetching")
	fs.Bool("no-ui", false, "Disable TUI; use plain textual output")
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	root := newRootCmd()
	if err := config.Init(root); err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	return root.ExecuteContext(ctx)
}

func getVerbose(_ *cobra.Command) bool {
	return viper.GetBool("verbose")
}

// resolveOutDir applies the out-dir precedence: flag/env/config, then the
// per-user data dir, then the working directory.
func resolveOutDir() string {
	if d := viper.GetString("out_dir"); d != "" {
		return filepath.Clean(d)
	}
	if d, err := dirs.DefaultOutputDir(); err == nil {
		return d
	}
	return "."
}

func ensureDir(path string) error {
	if path == "" {
		path = "."
	}
	return os.MkdirAll(filepath.Clean(path), 0o755)
}
