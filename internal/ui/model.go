package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	bubblesprogress "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"taxoclean/internal/api"
	"taxoclean/internal/model"
	"taxoclean/internal/pipeline"
	"taxoclean/internal/progress"
	"taxoclean/internal/util/format"
)

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	// App state (service connectivity)
	connChecked bool
	connErr     error
	client      *api.Client

	// Jobs
	files    []string
	opts     model.CLIOptions
	jobOrder []string
	jobs     map[string]*jobState
	workers  int
	running  int
	next     int // next index in files to start

	// UI
	width, height int
	styles        Styles

	// Internal event channel used by reporter to feed tea messages
	eventCh chan tea.Msg
}

func NewModel(ctx context.Context, client *api.Client, files []string, opts model.CLIOptions) Model {
	c, cancel := context.WithCancel(ctx)
	sty := defaultStyles()

	jobs := make(map[string]*jobState, len(files))
	order := make([]string, 0, len(files))
	for _, f := range files {
		id := uuid.NewString()
		js := newJobState(id, f, sty)
		js.bar = bubblesprogress.New(bubblesprogress.WithDefaultGradient(), bubblesprogress.WithWidth(40))
		jobs[id] = &js
		order = append(order, id)
	}

	workers := opts.Jobs
	if workers <= 0 {
		workers = 2
	}

	return Model{
		ctx:      c,
		cancel:   cancel,
		client:   client,
		files:    files,
		opts:     opts,
		jobs:     jobs,
		jobOrder: order,
		workers:  workers,
		styles:   sty,
		eventCh:  make(chan tea.Msg, 256),
	}
}

func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	for _, id := range m.jobOrder {
		sp := m.jobs[id].spinner
		cmds = append(cmds, sp.Tick)
	}
	// Listen for reporter events
	cmds = append(cmds, m.listenEventsCmd())
	// Kick off the service reachability check
	cmds = append(cmds, m.checkConnCmd())
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case connCheckedMsg:
		m.connChecked = true
		m.connErr = msg.Err
		if m.connErr != nil {
			// Mark all as errored
			for _, id := range m.jobOrder {
				js := m.jobs[id]
				js.stage = progress.StageError
				js.status = fmt.Sprintf("Service error: %v", m.connErr)
				js.err = m.connErr
				js.done = true
			}
			return m, tea.Quit
		}
		// Start initial workers
		return m, m.scheduleNext()

	case jobUpdateMsg:
		u := msg.U
		if js, ok := m.jobs[u.JobID]; ok {
			js.stage = u.Stage
			js.percent = u.Percent
			js.status = u.Message
			if u.Processed != nil {
				js.processed = *u.Processed
			}
			if u.Harmonized != nil {
				js.harmonized = *u.Harmonized
			}
			if u.Bytes != nil {
				js.bytes = *u.Bytes
			}
		}
	case jobLogMsg:
		l := msg.L
		if js, ok := m.jobs[l.JobID]; ok {
			// small ring buffer
			line := strings.TrimRight(l.Line, "\r\n")
			if len(js.logsRing) > 1000 {
				js.logsRing = js.logsRing[1:]
			}
			js.logsRing = append(js.logsRing, line)
		}
	case jobResultMsg:
		r := msg.R
		if js, ok := m.jobs[r.JobID]; ok {
			js.done = true
			js.err = r.Err
			if r.Err == nil {
				js.stage = progress.StageCompleted
				js.percent = 100
				js.locator = r.Locator
				js.outputPath = r.OutputPath
				js.bytes = r.Bytes
				switch {
				case r.OutputPath != "":
					name := filepath.Base(r.OutputPath)
					size := format.HumanizeBytes(r.Bytes)
					js.status = fmt.Sprintf("Saved: %s (%s)", name, size)
				case r.Locator != "":
					js.status = fmt.Sprintf("Ready: %s (not fetched)", r.Locator)
				default:
					js.status = "Completed"
				}
			} else {
				js.stage = progress.StageError
				js.status = r.Err.Error()
				js.percent = -1
			}
			m.running--
			// Start next job if any remain
			return m, m.scheduleNext()
		}
	case allDoneMsg:
		return m, tea.Quit
	}

	// Update per-job components (spinner)
	var cmds []tea.Cmd
	for _, id := range m.jobOrder {
		js := m.jobs[id]
		var c tea.Cmd
		js.spinner, c = js.spinner.Update(msg)
		if c != nil {
			cmds = append(cmds, c)
		}
	}
	// Keep listening for events
	cmds = append(cmds, m.listenEventsCmd())
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	summary := m.viewSummary()
	if summary != "" {
		return m.viewHeader() + "\n\n" + m.viewJobs() + "\n" + summary
	}
	return m.viewHeader() + "\n\n" + m.viewJobs()
}

func (m Model) listenEventsCmd() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return allDoneMsg{}
		case msg := <-m.eventCh:
			return msg
		}
	}
}

func (m Model) checkConnCmd() tea.Cmd {
	return func() tea.Msg {
		if err := m.client.Ping(m.ctx); err != nil {
			return connCheckedMsg{APIBase: m.client.BaseURL(), Err: err}
		}
		return connCheckedMsg{APIBase: m.client.BaseURL()}
	}
}

// scheduleNext decides which files start now and returns a command that
// only launches them. The bookkeeping (m.next, m.running, jobState) must
// happen here, on the model the program keeps, not inside the command
// closure: a closure mutates a copy, and a lost increment would hand a
// finished file out a second time.
func (m *Model) scheduleNext() tea.Cmd {
	select {
	case <-m.ctx.Done():
		return func() tea.Msg { return allDoneMsg{} }
	default:
	}

	type launch struct {
		jobID string
		file  string
	}
	var launches []launch
	for m.running < m.workers && m.next < len(m.files) {
		idx := m.next
		jobID := m.jobOrder[idx]
		m.next++
		m.running++
		// Mark job started
		if js := m.jobs[jobID]; js != nil {
			js.started = true
			js.status = "Queued"
			js.stage = progress.StageSubmitting
		}
		launches = append(launches, launch{jobID: jobID, file: m.files[idx]})
	}

	if len(launches) == 0 {
		if m.next >= len(m.files) && m.running == 0 {
			return func() tea.Msg { return allDoneMsg{} }
		}
		// Workers still running; rely on reporter events
		return nil
	}

	runJob := m.runJob // method value: the goroutines get their own copy
	return func() tea.Msg {
		for _, l := range launches {
			go runJob(l.jobID, l.file)
		}
		return nil
	}
}

func (m Model) runJob(jobID, file string) {
	rep := teaReporter{ch: m.eventCh}

	svc := pipeline.NewService(
		pipeline.WithClient(m.client),
		pipeline.WithCLIOptions(m.opts),
		pipeline.WithReporter(rep),
		pipeline.WithTrackID(jobID),
	)
	// The service emits every update and the final result through the
	// reporter; nothing to do with the return values here.
	_, _ = svc.RunJob(m.ctx, file)
}

type teaReporter struct {
	ch chan tea.Msg
}

func (r teaReporter) Update(u progress.Update) {
	// Block on completion messages to ensure they're delivered
	if u.Stage == progress.StageCompleted || u.Stage == progress.StageError {
		r.ch <- jobUpdateMsg{U: u}
		return
	}
	select {
	case r.ch <- jobUpdateMsg{U: u}:
	default:
	}
}
func (r teaReporter) Log(l progress.Log) {
	select {
	case r.ch <- jobLogMsg{L: l}:
	default:
	}
}
func (r teaReporter) Result(res progress.Result) {
	// Always block on Result messages - they're critical
	r.ch <- jobResultMsg{R: res}
}
