// Package pipeline orchestrates the submit → track → publish → fetch
// workflow for one source file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"taxoclean/internal/api"
	"taxoclean/internal/job"
	"taxoclean/internal/model"
	"taxoclean/internal/progress"
	"taxoclean/internal/util"
)

var (
	// ErrValidation marks failures caught locally before any network call.
	ErrValidation = errors.New("validation failed")

	// ErrSubmit marks transport or server failures while creating the job.
	// The attempt is terminal; retry is a user-initiated resubmission.
	ErrSubmit = errors.New("submission failed")

	// ErrFetch marks failures while transferring a ready artifact.
	ErrFetch = errors.New("fetch failed")
)

// API is the slice of the service client the pipeline needs.
type API interface {
	SubmitCSV(ctx context.Context, filename string, r io.Reader) (api.SubmitResponse, error)
	JobProgress(ctx context.Context, jobID string) (api.ProgressResponse, error)
	FetchResult(ctx context.Context, locator, destPath string) (int64, error)
	DownloadURL(locator string) string
}

// Service drives one file through the cleaning service. It never prints;
// when a Reporter is present, it emits progress and a final Result.
type Service struct {
	client   API
	store    *job.Store
	opts     model.CLIOptions
	reporter progress.Reporter
	trackID  string
	log      *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClient injects the service client.
func WithClient(c API) Option {
	return func(s *Service) {
		s.client = c
	}
}

// WithStore injects the job state store the UI reads from.
func WithStore(st *job.Store) Option {
	return func(s *Service) {
		s.store = st
	}
}

// WithCLIOptions sets the options used for tracking and fetching.
func WithCLIOptions(o model.CLIOptions) Option {
	return func(s *Service) {
		s.opts = o
	}
}

// WithReporter attaches a progress reporter (used by TUI).
func WithReporter(rp progress.Reporter) Option {
	return func(s *Service) {
		s.reporter = rp
	}
}

// WithTrackID sets the client-side ID associated with reporter events.
func WithTrackID(id string) Option {
	return func(s *Service) {
		s.trackID = id
	}
}

// WithLogger attaches a diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

// NewService constructs a new Service with the provided options.
// It applies sensible defaults for missing components.
func NewService(opts ...Option) *Service {
	s := &Service{}
	for _, o := range opts {
		o(s)
	}
	if s.store == nil {
		s.store = job.NewStore()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Store exposes the state store for presentation-layer reads.
func (s *Service) Store() *job.Store {
	return s.store
}

// Result is the outcome of RunJob.
type Result struct {
	SourceFile  string
	JobID       string
	Publication Publication
	OutputPath  string // local path of the fetched artifact; empty with NoFetch
	Bytes       int64
	Job         model.Job
}

// RunJob submits the file and tracks the job to a terminal state, then
// publishes the artifact locator and (unless NoFetch) downloads it.
//
// Validation failures happen before any network call and leave the store
// untouched: the record remains Idle and the user simply resubmits.
// Submission is never retried automatically; polling follows the tracker's
// bounded consecutive-failure policy.
func (s *Service) RunJob(ctx context.Context, path string) (Result, error) {
	var res Result
	res.SourceFile = path

	if s.client == nil {
		return res, fmt.Errorf("service client is required")
	}
	if err := util.ValidateSourceFile(path); err != nil {
		return res, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	name := filepath.Base(path)
	gen := s.store.Begin(name)
	s.emitUpdate(progress.StageSubmitting, -1, "Uploading "+name)

	f, err := os.Open(path)
	if err != nil {
		_ = s.store.Fail(gen, err.Error())
		return s.fail(res, fmt.Errorf("%w: %v", ErrSubmit, err))
	}
	sub, serr := s.client.SubmitCSV(ctx, name, f)
	f.Close()
	if serr != nil {
		_ = s.store.Fail(gen, serr.Error())
		return s.fail(res, fmt.Errorf("%w: %v", ErrSubmit, serr))
	}

	if err := s.store.Activate(gen, sub.JobID, sub.TotalNames); err != nil {
		return s.fail(res, err)
	}
	res.JobID = sub.JobID
	s.log.Debug("tracking job",
		zap.String("job_id", sub.JobID),
		zap.String("source", name))

	locator := sub.Filename
	if locator == "" {
		locator = name
	}

	tracker := job.NewTracker(s.client, s.store,
		job.WithInterval(s.opts.PollInterval),
		job.WithMaxFailures(s.opts.PollRetries),
		job.WithDeadline(s.opts.Deadline),
		job.WithTrackerLogger(s.log),
	)
	out := tracker.Track(ctx, gen, sub.JobID, locator, func(j model.Job) {
		s.emitPoll(j)
	})
	res.Job = out.Job
	if out.Err != nil {
		return s.fail(res, out.Err)
	}

	pub, perr := Publish(s.client, out.Job)
	if perr != nil {
		return s.fail(res, perr)
	}
	res.Publication = pub

	if s.opts.NoFetch {
		s.emitReady(pub)
		return res, nil
	}

	destDir := s.opts.OutDir
	if destDir == "" {
		destDir = "."
	}
	dest := filepath.Join(destDir, util.SanitizeFilename(pub.Locator))
	s.emitUpdate(progress.StageFetching, 100, "Fetching "+pub.Locator)
	n, ferr := s.client.FetchResult(ctx, pub.Locator, dest)
	if ferr != nil {
		return s.fail(res, fmt.Errorf("%w: %v", ErrFetch, ferr))
	}
	res.OutputPath = dest
	res.Bytes = n

	s.emitSaved(dest, pub, n)
	return res, nil
}

func (s *Service) fail(res Result, err error) (Result, error) {
	if s.reporter != nil {
		s.reporter.Update(progress.Update{
			JobID:   s.trackID,
			Stage:   progress.StageError,
			Percent: -1,
			Message: err.Error(),
		})
		s.reporter.Result(progress.Result{JobID: s.trackID, Err: err})
	}
	res.Job = s.store.Snapshot()
	return res, err
}

func (s *Service) emitUpdate(stage progress.Stage, percent float64, msg string) {
	if s.reporter == nil {
		return
	}
	s.reporter.Update(progress.Update{
		JobID:   s.trackID,
		Stage:   stage,
		Percent: percent,
		Message: msg,
	})
}

// emitPoll surfaces one successful poll as a cleaning-stage update.
func (s *Service) emitPoll(j model.Job) {
	if s.reporter == nil {
		return
	}
	processed := j.Processed
	harmonized := j.Harmonized
	msg := fmt.Sprintf("Cleaned %d names", processed)
	if j.TotalUnits > 0 {
		msg = fmt.Sprintf("Cleaned %d of %d names", processed, j.TotalUnits)
	}
	if harmonized > 0 {
		msg += fmt.Sprintf(" • %d harmonized", harmonized)
	}
	s.reporter.Update(progress.Update{
		JobID:      s.trackID,
		Stage:      progress.StageCleaning,
		Percent:    j.ProgressPercent,
		Processed:  &processed,
		Harmonized: &harmonized,
		Message:    msg,
	})
}

// emitReady sends the final update and result when fetching was skipped.
func (s *Service) emitReady(pub Publication) {
	if s.reporter == nil {
		return
	}
	s.reporter.Update(progress.Update{
		JobID:   s.trackID,
		Stage:   progress.StageCompleted,
		Percent: 100,
		Message: fmt.Sprintf("Ready: %s (not fetched)", pub.Locator),
	})
	s.reporter.Result(progress.Result{
		JobID:   s.trackID,
		Locator: pub.Locator,
	})
}

// emitSaved sends the final "saved" update and result.
func (s *Service) emitSaved(dest string, pub Publication, bytes int64) {
	if s.reporter == nil {
		return
	}
	s.reporter.Update(progress.Update{
		JobID:   s.trackID,
		Stage:   progress.StageCompleted,
		Percent: 100,
		Bytes:   &bytes,
		Message: "Saved: " + filepath.Base(dest),
	})
	s.reporter.Result(progress.Result{
		JobID:      s.trackID,
		Locator:    pub.Locator,
		OutputPath: dest,
		Bytes:      bytes,
	})
}
