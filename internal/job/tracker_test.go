package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"taxoclean/internal/api"
	"taxoclean/internal/model"
)

// scriptedSource replays a fixed poll script and then repeats its last entry.
type scriptedSource struct {
	mu     sync.Mutex
	script []pollReply
	calls  int
}

type pollReply struct {
	resp api.ProgressResponse
	err  error
}

func (s *scriptedSource) JobProgress(_ context.Context, _ string) (api.ProgressResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.calls++
	r := s.script[i]
	return r.resp, r.err
}

func (s *scriptedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func activeStore(t *testing.T, jobID string, total int) (*Store, uint64) {
	t.Helper()
	s := NewStore()
	gen := s.Begin("species.csv")
	if err := s.Activate(gen, jobID, total); err != nil {
		t.Fatal(err)
	}
	return s, gen
}

func TestTracker_RunsToCompletion(t *testing.T) {
	src := &scriptedSource{script: []pollReply{
		{resp: api.ProgressResponse{Processed: 200, Harmonized: 150, Total: 500, Status: api.StatusRunning}},
		{resp: api.ProgressResponse{Processed: 500, Harmonized: 430, Total: 500, Status: api.StatusRunning}},
	}}
	store, gen := activeStore(t, "abc123", 500)
	tr := NewTracker(src, store, WithInterval(time.Millisecond))

	var seen []float64
	out := tr.Track(context.Background(), gen, "abc123", "species.csv", func(j model.Job) {
		seen = append(seen, j.ProgressPercent)
	})

	if out.Err != nil {
		t.Fatalf("Track: %v", out.Err)
	}
	if out.Locator != "species.csv" {
		t.Errorf("Locator = %q, want species.csv", out.Locator)
	}
	if out.Job.State != model.StateReady {
		t.Errorf("state = %s, want ready", out.Job.State)
	}
	if out.Job.ProgressPercent != 100 {
		t.Errorf("ProgressPercent = %v, want 100", out.Job.ProgressPercent)
	}
	if len(seen) != 1 || seen[0] != 40 {
		t.Errorf("intermediate percents = %v, want [40]", seen)
	}
	if !store.ReadyForDownload() {
		t.Error("store not ready for download after completion")
	}
}

func TestTracker_ProcessedReachingTotalIsTerminal(t *testing.T) {
	// Some responses omit status entirely; the counts alone must finish the job.
	src := &scriptedSource{script: []pollReply{
		{resp: api.ProgressResponse{Processed: 500, Harmonized: 500, Total: 500}},
	}}
	store, gen := activeStore(t, "abc123", 500)
	tr := NewTracker(src, store, WithInterval(time.Millisecond))

	out := tr.Track(context.Background(), gen, "abc123", "out.csv", nil)
	if out.Err != nil {
		t.Fatalf("Track: %v", out.Err)
	}
	if out.Job.State != model.StateReady {
		t.Errorf("state = %s, want ready", out.Job.State)
	}
}

func TestTracker_ServiceErrorIsTerminal(t *testing.T) {
	src := &scriptedSource{script: []pollReply{
		{resp: api.ProgressResponse{Processed: 10, Total: 500, Status: api.StatusError, Detail: "malformed row 11"}},
	}}
	store, gen := activeStore(t, "abc123", 500)
	tr := NewTracker(src, store, WithInterval(time.Millisecond))

	out := tr.Track(context.Background(), gen, "abc123", "out.csv", nil)
	if !errors.Is(out.Err, ErrProcessing) {
		t.Fatalf("err = %v, want ErrProcessing", out.Err)
	}
	snap := store.Snapshot()
	if snap.State != model.StateFailed {
		t.Errorf("state = %s, want failed", snap.State)
	}
	if snap.ErrorDetail != "malformed row 11" {
		t.Errorf("ErrorDetail = %q", snap.ErrorDetail)
	}
	if snap.ResultLocator != "" {
		t.Errorf("failed job carries locator %q", snap.ResultLocator)
	}

	// The terminal transition must stop the loop: no trailing polls.
	calls := src.callCount()
	time.Sleep(5 * time.Millisecond)
	if got := src.callCount(); got != calls {
		t.Errorf("polls continued after failure: %d -> %d", calls, got)
	}
}

func TestTracker_TransientFailuresAreRetried(t *testing.T) {
	src := &scriptedSource{script: []pollReply{
		{err: errors.New("connection refused")},
		{err: errors.New("connection refused")},
		{resp: api.ProgressResponse{Processed: 500, Total: 500, Status: api.StatusDone}},
	}}
	store, gen := activeStore(t, "abc123", 500)
	tr := NewTracker(src, store, WithInterval(time.Millisecond), WithMaxFailures(3))

	out := tr.Track(context.Background(), gen, "abc123", "out.csv", nil)
	if out.Err != nil {
		t.Fatalf("Track after transient failures: %v", out.Err)
	}
	if out.Job.State != model.StateReady {
		t.Errorf("state = %s, want ready", out.Job.State)
	}
}

func TestTracker_ConsecutiveFailureBudgetExhausted(t *testing.T) {
	src := &scriptedSource{script: []pollReply{
		{err: errors.New("connection refused")},
	}}
	store, gen := activeStore(t, "abc123", 500)
	tr := NewTracker(src, store, WithInterval(time.Millisecond), WithMaxFailures(3))

	out := tr.Track(context.Background(), gen, "abc123", "out.csv", nil)
	if !errors.Is(out.Err, ErrPollExhausted) {
		t.Fatalf("err = %v, want ErrPollExhausted", out.Err)
	}
	if src.callCount() != 3 {
		t.Errorf("polls = %d, want exactly 3", src.callCount())
	}
	snap := store.Snapshot()
	if snap.State != model.StateFailed || snap.ErrorDetail == "" {
		t.Errorf("store after exhaustion: %+v", snap)
	}
}

func TestTracker_CancellationLeavesStoreUntouched(t *testing.T) {
	src := &scriptedSource{script: []pollReply{
		{resp: api.ProgressResponse{Processed: 10, Total: 500, Status: api.StatusRunning}},
	}}
	store, gen := activeStore(t, "abc123", 500)
	tr := NewTracker(src, store, WithInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Outcome, 1)
	go func() { done <- tr.Track(ctx, gen, "abc123", "out.csv", nil) }()
	time.Sleep(5 * time.Millisecond)
	cancel()

	out := <-done
	if !errors.Is(out.Err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", out.Err)
	}
	if snap := store.Snapshot(); snap.State != model.StateRunning {
		t.Errorf("state after cancel = %s, want running", snap.State)
	}
}

func TestTracker_DeadlineFailsTheJob(t *testing.T) {
	src := &scriptedSource{script: []pollReply{
		{resp: api.ProgressResponse{Processed: 10, Total: 500, Status: api.StatusRunning}},
	}}
	store, gen := activeStore(t, "abc123", 500)
	tr := NewTracker(src, store,
		WithInterval(time.Millisecond),
		WithDeadline(10*time.Millisecond))

	out := tr.Track(context.Background(), gen, "abc123", "out.csv", nil)
	if !errors.Is(out.Err, ErrDeadline) {
		t.Fatalf("err = %v, want ErrDeadline", out.Err)
	}
	if snap := store.Snapshot(); snap.State != model.StateFailed {
		t.Errorf("state = %s, want failed", snap.State)
	}
}

func TestTracker_SupersededPollerStops(t *testing.T) {
	src := &scriptedSource{script: []pollReply{
		{resp: api.ProgressResponse{Processed: 10, Total: 500, Status: api.StatusRunning}},
	}}
	store, gen := activeStore(t, "abc123", 500)
	tr := NewTracker(src, store, WithInterval(time.Millisecond))

	// A new submission arrives before the first poll lands.
	store.Begin("replacement.csv")

	out := tr.Track(context.Background(), gen, "abc123", "out.csv", nil)
	if !errors.Is(out.Err, ErrSuperseded) {
		t.Fatalf("err = %v, want ErrSuperseded", out.Err)
	}
	if snap := store.Snapshot(); snap.SourceFileName != "replacement.csv" {
		t.Errorf("stale tracker mutated the record: %+v", snap)
	}
}
