package job

import (
	"errors"
	"testing"

	"taxoclean/internal/model"
)

func TestStore_LifecycleTransitions(t *testing.T) {
	s := NewStore()

	if got := s.Snapshot().State; got != model.StateIdle {
		t.Fatalf("initial state = %s, want idle", got)
	}

	gen := s.Begin("species.csv")
	snap := s.Snapshot()
	if snap.State != model.StateSubmitting {
		t.Errorf("state after Begin = %s, want submitting", snap.State)
	}
	if snap.SourceFileName != "species.csv" {
		t.Errorf("SourceFileName = %q", snap.SourceFileName)
	}

	if err := s.Activate(gen, "abc123", 500); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	snap = s.Snapshot()
	if snap.State != model.StateRunning || snap.JobID != "abc123" || snap.TotalUnits != 500 {
		t.Errorf("after Activate: %+v", snap)
	}

	if err := s.SetProgress(gen, 200, 150, 40); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	if got := s.Ratio(); got != 40 {
		t.Errorf("Ratio = %v, want 40", got)
	}
	if s.ReadyForDownload() {
		t.Error("ReadyForDownload true while running")
	}

	if err := s.Complete(gen, "species.csv"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	snap = s.Snapshot()
	if snap.State != model.StateReady {
		t.Errorf("state = %s, want ready", snap.State)
	}
	if snap.ResultLocator != "species.csv" {
		t.Errorf("ResultLocator = %q", snap.ResultLocator)
	}
	if !s.ReadyForDownload() {
		t.Error("ReadyForDownload false after Complete")
	}
}

func TestStore_TerminalStateIsLatched(t *testing.T) {
	s := NewStore()
	gen := s.Begin("a.csv")
	if err := s.Activate(gen, "j1", 10); err != nil {
		t.Fatal(err)
	}
	if err := s.Complete(gen, "a.csv"); err != nil {
		t.Fatal(err)
	}

	// No transition may follow a terminal state, even with a valid token.
	if err := s.Fail(gen, "late failure"); !errors.Is(err, ErrTerminal) {
		t.Errorf("Fail after Ready = %v, want ErrTerminal", err)
	}
	if err := s.SetProgress(gen, 5, 5, 50); !errors.Is(err, ErrTerminal) {
		t.Errorf("SetProgress after Ready = %v, want ErrTerminal", err)
	}
	snap := s.Snapshot()
	if snap.State != model.StateReady || snap.ErrorDetail != "" {
		t.Errorf("terminal record mutated: %+v", snap)
	}
}

func TestStore_LocatorOnlyWhenReady(t *testing.T) {
	s := NewStore()
	gen := s.Begin("a.csv")
	_ = s.Activate(gen, "j1", 10)
	if loc := s.Snapshot().ResultLocator; loc != "" {
		t.Errorf("locator set while running: %q", loc)
	}
	_ = s.Fail(gen, "server error")
	snap := s.Snapshot()
	if snap.ResultLocator != "" {
		t.Errorf("locator set on failed job: %q", snap.ResultLocator)
	}
	if snap.ErrorDetail == "" {
		t.Error("failed job must carry an error detail")
	}
}

func TestStore_SupersededWritesAreFenced(t *testing.T) {
	s := NewStore()
	old := s.Begin("old.csv")
	_ = s.Activate(old, "j-old", 10)

	// A new submission replaces the record; the old token must be useless.
	fresh := s.Begin("new.csv")

	if err := s.SetProgress(old, 9, 9, 90); !errors.Is(err, ErrSuperseded) {
		t.Errorf("stale SetProgress = %v, want ErrSuperseded", err)
	}
	if err := s.Complete(old, "old.csv"); !errors.Is(err, ErrSuperseded) {
		t.Errorf("stale Complete = %v, want ErrSuperseded", err)
	}
	if err := s.Fail(old, "boom"); !errors.Is(err, ErrSuperseded) {
		t.Errorf("stale Fail = %v, want ErrSuperseded", err)
	}

	snap := s.Snapshot()
	if snap.SourceFileName != "new.csv" || snap.State != model.StateSubmitting {
		t.Errorf("new record mutated by stale writer: %+v", snap)
	}

	if err := s.Activate(fresh, "j-new", 5); err != nil {
		t.Errorf("fresh token rejected: %v", err)
	}
}

func TestStore_RatioClamped(t *testing.T) {
	s := NewStore()
	gen := s.Begin("a.csv")
	_ = s.Activate(gen, "j1", 100)

	// Reported processed may overshoot the expected total.
	if err := s.SetProgress(gen, 250, 0, 250); err != nil {
		t.Fatal(err)
	}
	if got := s.Ratio(); got != 100 {
		t.Errorf("Ratio = %v, want clamped 100", got)
	}
	if got := s.Snapshot().ProgressPercent; got != 100 {
		t.Errorf("ProgressPercent = %v, want clamped 100", got)
	}
}

func TestStore_RatioWithoutTotalFallsBackToPercent(t *testing.T) {
	s := NewStore()
	gen := s.Begin("a.csv")
	_ = s.Activate(gen, "j1", 0)
	if err := s.SetProgress(gen, 10, 0, 35); err != nil {
		t.Fatal(err)
	}
	if got := s.Ratio(); got != 35 {
		t.Errorf("Ratio = %v, want 35", got)
	}
}
