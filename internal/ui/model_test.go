package ui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"taxoclean/internal/api"
	"taxoclean/internal/model"
)

// countingService fakes the cleaning service and counts upload requests.
func countingService(t *testing.T) (*httptest.Server, func() int) {
	t.Helper()
	var mu sync.Mutex
	submissions := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/api/csv", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		submissions++
		mu.Unlock()
		json.NewEncoder(w).Encode(api.SubmitResponse{
			Message:    "upload accepted",
			Filename:   "species_cleaned.csv",
			JobID:      "abc123",
			TotalNames: 2,
		})
	})
	mux.HandleFunc("/progress/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.ProgressResponse{
			Processed: 2, Harmonized: 2, Total: 2, Status: api.StatusDone,
		})
	})
	mux.HandleFunc("/download/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("name,matched\nPanthera leo,Panthera leo\n"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return submissions
	}
	return srv, count
}

func TestModelStartsEachFileOnce(t *testing.T) {
	srv, submissions := countingService(t)
	client, err := api.NewClient(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(t.TempDir(), "species.csv")
	if err := os.WriteFile(src, []byte("name\nPanthera leo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	opts := model.CLIOptions{
		OutDir:       t.TempDir(),
		PollInterval: time.Millisecond,
		Jobs:         2,
	}
	m := NewModel(context.Background(), client, []string{src}, opts)

	// Service reachable: the model schedules the first (and only) file.
	next, cmd := m.Update(connCheckedMsg{APIBase: srv.URL})
	m = next.(Model)
	if m.running != 1 || m.next != 1 {
		t.Fatalf("after scheduling: running=%d next=%d, want 1/1", m.running, m.next)
	}
	if cmd == nil {
		t.Fatal("no launch command returned")
	}
	if msg := cmd(); msg != nil {
		t.Fatalf("launch command returned %T, want nil", msg)
	}

	// Drain reporter events until the job's single result arrives.
	var res jobResultMsg
	deadline := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case msg := <-m.eventCh:
			if r, ok := msg.(jobResultMsg); ok {
				res = r
				done = true
				break
			}
			next, _ = m.Update(msg)
			m = next.(Model)
		case <-deadline:
			t.Fatal("no job result arrived")
		}
	}
	if res.R.Err != nil {
		t.Fatalf("job failed: %v", res.R.Err)
	}

	// Feeding the result back must finish the run, not relaunch the file.
	next, cmd = m.Update(res)
	m = next.(Model)
	if m.running != 0 {
		t.Errorf("running = %d after the only job finished", m.running)
	}
	if cmd == nil {
		t.Fatal("no command after final result")
	}
	if msg := cmd(); msg != (allDoneMsg{}) {
		t.Errorf("final command yielded %T, want allDoneMsg", msg)
	}

	// Give a wrongly relaunched job time to reach the server.
	time.Sleep(50 * time.Millisecond)
	if got := submissions(); got != 1 {
		t.Errorf("submissions = %d, want exactly 1", got)
	}
}

func TestModelSchedulesUpToWorkerLimit(t *testing.T) {
	srv, _ := countingService(t)
	client, err := api.NewClient(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	var files []string
	for _, name := range []string{"a.csv", "b.csv", "c.csv"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("name\nx\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		files = append(files, p)
	}
	opts := model.CLIOptions{
		OutDir:       t.TempDir(),
		PollInterval: time.Millisecond,
		Jobs:         2,
	}
	m := NewModel(context.Background(), client, files, opts)

	// Only two of the three files may start; the third waits for a slot.
	cmd := m.scheduleNext()
	if m.running != 2 || m.next != 2 {
		t.Fatalf("running=%d next=%d, want 2/2", m.running, m.next)
	}
	if cmd == nil {
		t.Fatal("no launch command for the first batch")
	}
	started := 0
	for _, id := range m.jobOrder {
		if m.jobs[id].started {
			started++
		}
	}
	if started != 2 {
		t.Errorf("started jobs = %d, want 2", started)
	}

	// A finished job frees its slot for the remaining file.
	m.running--
	if c := m.scheduleNext(); c == nil {
		t.Fatal("remaining file was not scheduled")
	}
	if m.running != 2 || m.next != 3 {
		t.Errorf("running=%d next=%d after refill, want 2/3", m.running, m.next)
	}
}
