// Package job holds the client-side lifecycle of one cleaning job: the
// state store the UI renders from and the tracker that polls the service.
package job

import (
	"errors"
	"sync"
	"time"

	"taxoclean/internal/model"
)

var (
	// ErrSuperseded is returned for writes carrying a stale generation
	// token: a newer submission has replaced the job they belong to.
	ErrSuperseded = errors.New("job superseded by a newer submission")

	// ErrTerminal is returned for writes against a job that has already
	// reached Ready or Failed.
	ErrTerminal = errors.New("job is in a terminal state")
)

// Store is the single source of truth for the active Job. It holds exactly
// one record; Begin supersedes whatever was there before. Writes are
// serialized with a mutex and fenced with a generation token so an
// abandoned tracker can never mutate a replaced job.
type Store struct {
	mu  sync.Mutex
	job model.Job
	gen uint64
}

// NewStore returns a Store holding an idle record.
func NewStore() *Store {
	return &Store{job: model.Job{State: model.StateIdle}}
}

// Begin replaces the current record with a fresh job in Submitting state
// and returns the generation token all subsequent writes must carry.
func (s *Store) Begin(sourceFileName string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.job = model.Job{
		SourceFileName: sourceFileName,
		State:          model.StateSubmitting,
		StartedAt:      time.Now(),
	}
	return s.gen
}

// guard validates the generation token and rejects writes past a terminal
// state. Callers must hold s.mu.
func (s *Store) guard(gen uint64) error {
	if gen != s.gen {
		return ErrSuperseded
	}
	if s.job.State.Terminal() {
		return ErrTerminal
	}
	return nil
}

// Activate records the service-issued job ID and moves Submitting → Running.
func (s *Store) Activate(gen uint64, jobID string, totalUnits int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(gen); err != nil {
		return err
	}
	s.job.JobID = jobID
	s.job.TotalUnits = totalUnits
	s.job.State = model.StateRunning
	return nil
}

// SetProgress records the latest poll while Running. Percent is clamped to
// [0,100]; reported counts are stored as-is for display.
func (s *Store) SetProgress(gen uint64, processed, harmonized int, percent float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(gen); err != nil {
		return err
	}
	if s.job.State != model.StateRunning {
		return ErrTerminal
	}
	s.job.Processed = processed
	s.job.Harmonized = harmonized
	s.job.ProgressPercent = clampPercent(percent)
	return nil
}

// Complete finalizes the job as Ready and publishes its result locator.
// The locator is set here and nowhere else, so it is non-empty iff Ready.
func (s *Store) Complete(gen uint64, locator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(gen); err != nil {
		return err
	}
	s.job.State = model.StateReady
	s.job.ResultLocator = locator
	s.job.ProgressPercent = 100
	if s.job.TotalUnits > 0 {
		s.job.Processed = s.job.TotalUnits
	}
	return nil
}

// Fail finalizes the job as Failed with a descriptive detail.
func (s *Store) Fail(gen uint64, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(gen); err != nil {
		return err
	}
	s.job.State = model.StateFailed
	s.job.ErrorDetail = detail
	return nil
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job
}

// Ratio returns processed/total as a percentage clamped to [0,100].
// Falls back to the last reported percent when the total is unknown.
func (s *Store) Ratio() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job.TotalUnits <= 0 {
		return clampPercent(s.job.ProgressPercent)
	}
	return clampPercent(float64(s.job.Processed) / float64(s.job.TotalUnits) * 100)
}

// ReadyForDownload reports whether the artifact can be fetched.
func (s *Store) ReadyForDownload() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job.State == model.StateReady
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
