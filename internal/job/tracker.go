package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"taxoclean/internal/api"
	"taxoclean/internal/model"
)

const (
	// DefaultPollInterval matches the service's observed 1s progress cadence.
	DefaultPollInterval = time.Second
	// DefaultMaxFailures is the consecutive poll failures tolerated before
	// the job is declared Failed. Any successful poll resets the budget.
	DefaultMaxFailures = 3
	// DefaultDeadline bounds the whole tracking loop.
	DefaultDeadline = 30 * time.Minute
)

var (
	// ErrProcessing means the service itself reported status "error",
	// as opposed to a transport failure while polling.
	ErrProcessing = errors.New("service reported a processing error")

	// ErrPollExhausted means the consecutive poll-failure budget ran out.
	ErrPollExhausted = errors.New("poll retries exhausted")

	// ErrDeadline means the overall tracking deadline expired.
	ErrDeadline = errors.New("tracking deadline exceeded")
)

// StatusSource is the one call the tracker needs from the API boundary.
type StatusSource interface {
	JobProgress(ctx context.Context, jobID string) (api.ProgressResponse, error)
}

// Outcome is delivered exactly once per tracked job.
type Outcome struct {
	Locator string // non-empty iff Err is nil
	Job     model.Job
	Err     error
}

// Tracker polls one job to a terminal state. Polls are strictly sequential:
// a new request is not issued until the previous exchange finished, so
// state transitions observe poll order. Transient failures are retried up
// to a consecutive budget; the service saying "error" is terminal at once.
type Tracker struct {
	source      StatusSource
	store       *Store
	interval    time.Duration
	maxFailures int
	deadline    time.Duration
	log         *zap.Logger
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithInterval sets the poll cadence.
func WithInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithMaxFailures sets the consecutive poll-failure budget.
func WithMaxFailures(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.maxFailures = n
		}
	}
}

// WithDeadline bounds the whole loop; 0 disables the bound.
func WithDeadline(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		t.deadline = d
	}
}

// WithTrackerLogger attaches a diagnostic logger.
func WithTrackerLogger(l *zap.Logger) TrackerOption {
	return func(t *Tracker) {
		if l != nil {
			t.log = l
		}
	}
}

// NewTracker constructs a Tracker for the given status source and store.
func NewTracker(source StatusSource, store *Store, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		source:      source,
		store:       store,
		interval:    DefaultPollInterval,
		maxFailures: DefaultMaxFailures,
		deadline:    DefaultDeadline,
		log:         zap.NewNop(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Track polls jobID until it reaches a terminal state, recording every
// transition in the store under gen, and returns exactly one Outcome.
// locator is published on completion (set iff the job becomes Ready).
// Cancelling ctx stops the loop without touching the store: a superseded
// or abandoned job must not be mutated by a late poll.
//
// Track also feeds onPoll (when non-nil) after every successful poll so a
// caller can surface intermediate progress; it is never called after the
// terminal transition's Outcome is decided.
func (t *Tracker) Track(ctx context.Context, gen uint64, jobID, locator string, onPoll func(model.Job)) Outcome {
	if t.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, t.deadline, ErrDeadline)
		defer cancel()
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	failures := 0
	var lastErr error

	for {
		select {
		case <-ctx.Done():
			if errors.Is(context.Cause(ctx), ErrDeadline) {
				_ = t.store.Fail(gen, ErrDeadline.Error())
				return t.outcome(ErrDeadline)
			}
			// Abandoned by the consumer: stop scheduling polls, leave
			// the record to whoever superseded it.
			return Outcome{Job: t.store.Snapshot(), Err: ctx.Err()}
		case <-ticker.C:
		}

		if t.store.Snapshot().State.Terminal() {
			// Idempotent termination: never poll a finished job.
			return t.outcome(lastErr)
		}

		resp, err := t.source.JobProgress(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				continue // let the select above classify the cancellation
			}
			failures++
			lastErr = err
			t.log.Warn("poll failed",
				zap.String("job_id", jobID),
				zap.Int("consecutive", failures),
				zap.Error(err))
			if failures >= t.maxFailures {
				detail := fmt.Sprintf("%v (after %d consecutive poll failures)", err, failures)
				_ = t.store.Fail(gen, detail)
				return t.outcome(fmt.Errorf("%w: %s", ErrPollExhausted, detail))
			}
			continue
		}
		failures = 0
		lastErr = nil

		switch {
		case resp.Status == api.StatusError:
			detail := resp.Detail
			if detail == "" {
				detail = "the cleaning service reported an error"
			}
			_ = t.store.Fail(gen, detail)
			return t.outcome(fmt.Errorf("%w: %s", ErrProcessing, detail))

		case t.finished(resp):
			if err := t.store.Complete(gen, locator); err != nil {
				return Outcome{Job: t.store.Snapshot(), Err: err}
			}
			t.log.Debug("job ready",
				zap.String("job_id", jobID),
				zap.String("locator", locator))
			return Outcome{Locator: locator, Job: t.store.Snapshot()}

		default:
			percent := derivePercent(resp)
			if err := t.store.SetProgress(gen, resp.Processed, resp.Harmonized, percent); err != nil {
				// Superseded mid-flight; a late poll must not win.
				return Outcome{Job: t.store.Snapshot(), Err: err}
			}
			if onPoll != nil {
				onPoll(t.store.Snapshot())
			}
		}
	}
}

// finished applies the terminal-detection rule: status says done, or the
// reported counts say everything is processed.
func (t *Tracker) finished(resp api.ProgressResponse) bool {
	if resp.Status == api.StatusDone {
		return true
	}
	return resp.Total > 0 && resp.Processed >= resp.Total
}

func (t *Tracker) outcome(err error) Outcome {
	snap := t.store.Snapshot()
	if err == nil && snap.State == model.StateReady {
		return Outcome{Locator: snap.ResultLocator, Job: snap}
	}
	if err == nil {
		err = errors.New(snap.ErrorDetail)
	}
	return Outcome{Job: snap, Err: err}
}

func derivePercent(resp api.ProgressResponse) float64 {
	if resp.Total <= 0 {
		return -1
	}
	return float64(resp.Processed) / float64(resp.Total) * 100
}
