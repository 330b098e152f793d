package model

import "time"

// State is the lifecycle state of a cleaning job as seen by this client.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateRunning    State = "running"
	StateReady      State = "ready"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions are permitted.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed
}

// Job is one submitted cleaning request, tracked from submission to a
// terminal outcome. A new submission replaces the previous Job; no history
// is kept.
type Job struct {
	JobID           string  // issued by the service; empty until submission succeeds
	SourceFileName  string  // display-only, captured at submission time
	TotalUnits      int     // expected name count; 0 if the service did not report one
	State           State
	Processed       int
	Harmonized      int
	ProgressPercent float64 // last reported value, clamped to [0,100]
	ResultLocator   string  // set iff State == StateReady
	ErrorDetail     string  // set iff State == StateFailed
	StartedAt       time.Time
}

// CLIOptions holds user-configurable runtime options as parsed from flags.
type CLIOptions struct {
	APIBase      string
	OutDir       string
	PollInterval time.Duration // 0 = default (1s)
	PollRetries  int           // consecutive poll failures tolerated; 0 = default
	Deadline     time.Duration // overall tracking deadline; 0 disables
	NoFetch      bool          // stop after the job is ready; do not download
	Verbose      bool

	NoUI bool // Disable TUI when true
	Jobs int  // Max concurrent files for TUI
}
