package ui

import (
	bubblesprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"

	"taxoclean/internal/progress"
)

type jobState struct {
	id   string
	file string

	stage  progress.Stage
	status string
	err    error
	done   bool

	locator    string
	outputPath string
	bytes      int64
	percent    float64 // -1 means unknown
	processed  int
	harmonized int

	spinner spinner.Model
	bar     bubblesprogress.Model

	started bool

	// Optional: recent logs (kept small)
	logsRing []string
}

func newJobState(id, file string, styles Styles) jobState {
	sp := spinner.New()
	sp.Style = styles.Spinner
	bar := bubblesprogress.New(
		bubblesprogress.WithDefaultGradient(),
		bubblesprogress.WithWidth(40),
	)
	return jobState{
		id:      id,
		file:    file,
		stage:   progress.StageSubmitting,
		status:  "Queued",
		percent: -1,
		spinner: sp,
		bar:     bar,
	}
}
