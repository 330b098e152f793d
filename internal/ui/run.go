package ui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"taxoclean/internal/api"
	"taxoclean/internal/model"
)

// Run launches the TUI tracking the provided files against the service.
func Run(ctx context.Context, client *api.Client, files []string, opts model.CLIOptions) error {
	m := NewModel(ctx, client, files, opts)
	prog := tea.NewProgram(m, tea.WithContext(ctx))
	final, err := prog.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok {
		var failed []string
		for _, id := range fm.jobOrder {
			js := fm.jobs[id]
			if js != nil && js.err != nil {
				file := js.file
				msg := js.err.Error()
				if file != "" {
					failed = append(failed, fmt.Sprintf("- %s: %s", file, msg))
				} else {
					failed = append(failed, fmt.Sprintf("- %s", msg))
				}
			}
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d file(s) failed:\n%s", len(failed), strings.Join(failed, "\n"))
		}
	}
	return nil
}
