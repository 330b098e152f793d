package progress

// Stage identifies a high-level step in the cleaning workflow.
type Stage string

const (
	StageConnect    Stage = "connect"
	StageSubmitting Stage = "submitting"
	StageCleaning   Stage = "cleaning"
	StageFetching   Stage = "fetching"
	StageCompleted  Stage = "completed"
	StageError      Stage = "error"
)

// LogStream indicates which stream produced a log line.
type LogStream int

const (
	StreamStdout LogStream = iota
	StreamStderr
)

// Update conveys progress or stage changes for a tracked file.
// Percent is 0..100 when known; set to a negative value (e.g., -1) to mean unknown.
type Update struct {
	JobID   string
	Stage   Stage
	Percent float64 // 0..100, or <0 if unknown

	Processed  *int   // optional names processed so far
	Harmonized *int   // optional scientific names harmonized so far
	Bytes      *int64 // optional cumulative bytes (fetch stage)
	Message    string // short human-friendly status line
}

// Log is a structured log line associated with a tracked file.
type Log struct {
	JobID  string
	Stream LogStream
	Line   string
}

// Result is emitted once per tracked file when it completes or fails.
type Result struct {
	JobID      string
	Locator    string // result locator the artifact can be fetched by
	OutputPath string // local path when the artifact was fetched; empty otherwise
	Bytes      int64
	Err        error // nil on success
}

// Reporter is implemented by UI or any observer interested in progress events.
type Reporter interface {
	Update(u Update)
	Log(l Log)
	Result(r Result)
}
