package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"taxoclean/internal/api"
	"taxoclean/internal/config"
	"taxoclean/internal/logging"
	"taxoclean/internal/model"
	"taxoclean/internal/pipeline"
	"taxoclean/internal/progress"
	"taxoclean/internal/ui"
)

type cleanMode struct {
	ForceTUI bool
}

func newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "clean [files...]",
		Short:         "Upload CSV files and track the cleaning job to completion",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		PreRunE:       cleanPreRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cleanExecute(cmd, args, cleanMode{ForceTUI: false})
		},
	}
	// Bind same flags as root for explicit subcommand usage
	bindCleanFlags(cmd.Flags())
	return cmd
}

type ctxKey string

const cleanInputsKey ctxKey = "cleanInputs"

type cleanInputs struct {
	Files   []string
	Options model.CLIOptions
}

func cleanPreRun(cmd *cobra.Command, args []string) error {
	files, opts, err := assembleCleanInputs(cmd, args)
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	ctx := context.WithValue(cmd.Context(), cleanInputsKey, cleanInputs{
		Files:   files,
		Options: opts,
	})
	cmd.SetContext(ctx)
	return nil
}

func assembleCleanInputs(cmd *cobra.Command, args []string) ([]string, model.CLIOptions, error) {
	// Persistent values with precedence: flag > env/config > default (viper)
	apiBase := config.APIBase()
	outDir := resolveOutDir()
	verbose := viper.GetBool("verbose")
	jobs := viper.GetInt("jobs")
	if jobs <= 0 {
		jobs = 2
	}

	// Clean flags
	pollInterval, _ := cmd.Flags().GetDuration("poll-interval")
	pollRetries, _ := cmd.Flags().GetInt("poll-retries")
	deadline, _ := cmd.Flags().GetDuration("deadline")
	noFetch, _ := cmd.Flags().GetBool("no-fetch")
	noUI, _ := cmd.Flags().GetBool("no-ui")

	if pollInterval < 0 || deadline < 0 || pollRetries < 0 {
		return nil, model.CLIOptions{}, fmt.Errorf("poll-interval, poll-retries, and deadline must not be negative")
	}

	files := append([]string(nil), args...)

	opts := model.CLIOptions{
		APIBase:      apiBase,
		OutDir:       outDir,
		PollInterval: pollInterval,
		PollRetries:  pollRetries,
		Deadline:     deadline,
		NoFetch:      noFetch,
		Verbose:      verbose,
		NoUI:         noUI,
		Jobs:         jobs,
	}
	return files, opts, nil
}

func cleanExecute(cmd *cobra.Command, args []string, mode cleanMode) error {
	// Grab inputs from context; if not present (root directly called without
	// PreRunE), assemble now.
	var in cleanInputs
	if v := cmd.Context().Value(cleanInputsKey); v != nil {
		in = v.(cleanInputs)
	} else {
		files, opts, err := assembleCleanInputs(cmd, args)
		if err != nil {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
		in = cleanInputs{Files: files, Options: opts}
	}

	if err := ensureDir(in.Options.OutDir); err != nil {
		return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("failed to create output dir: %v", err)}
	}

	log := logging.New(in.Options.Verbose)
	defer log.Sync() //nolint:errcheck

	client, err := api.NewClient(in.Options.APIBase, api.WithLogger(log))
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}

	// TUI path (forced or auto if TTY and not disabled)
	useTUI := mode.ForceTUI || (!in.Options.NoUI && isTerminal())
	if useTUI {
		if err := ui.Run(cmd.Context(), client, in.Files, in.Options); err != nil {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
		return nil
	}

	for _, file := range in.Files {
		if err := processOne(cmd.Context(), client, file, in.Options); err != nil {
			var ee *ExitError
			if errors.As(err, &ee) {
				return ee
			}
			return &ExitError{Code: ExitCLIError, Err: err}
		}
	}
	return nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func processOne(ctx context.Context, client *api.Client, file string, opts model.CLIOptions) error {
	svc := pipeline.NewService(
		pipeline.WithClient(client),
		pipeline.WithCLIOptions(opts),
		pipeline.WithReporter(consoleReporter{}),
		pipeline.WithTrackID(filepath.Base(file)),
		pipeline.WithLogger(logging.New(opts.Verbose)),
	)

	res, err := svc.RunJob(ctx, file)
	if err != nil {
		return &ExitError{Code: exitCodeFor(err), Err: err}
	}

	if opts.NoFetch {
		fmt.Printf("Ready: %s\n", res.Publication.URL)
		return nil
	}
	fmt.Printf("Saved: %s (%0.2f KB)\n", res.OutputPath, float64(res.Bytes)/1024)
	return nil
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrValidation):
		return ExitValidationError
	case errors.Is(err, pipeline.ErrSubmit):
		return ExitSubmitError
	case errors.Is(err, pipeline.ErrFetch):
		return ExitFetchError
	default:
		return ExitCleanError
	}
}

// consoleReporter prints progress lines in plain (non-TUI) mode.
type consoleReporter struct{}

func (consoleReporter) Update(u progress.Update) {
	switch u.Stage {
	case progress.StageSubmitting, progress.StageFetching:
		fmt.Printf("%s: %s\n", u.JobID, u.Message)
	case progress.StageCleaning:
		if u.Percent >= 0 {
			fmt.Printf("%s: %s (%.1f%%)\n", u.JobID, u.Message, u.Percent)
		} else {
			fmt.Printf("%s: %s\n", u.JobID, u.Message)
		}
	}
}

func (consoleReporter) Log(l progress.Log) {
	fmt.Fprintln(os.Stderr, l.Line)
}

func (consoleReporter) Result(progress.Result) {}
