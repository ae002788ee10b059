// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backtest provides the prompt-backtest view for the perpdeck TUI:
// submit a strategy prompt against historical data, poll the job, and show
// the run summary when it completes.
package backtest

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/perpdeck/perpdeck-tui/internal/api"
	"github.com/perpdeck/perpdeck-tui/internal/ui/styles"
)

const (
	requestTimeout = 15 * time.Second
	pollInterval   = 2 * time.Second
)

// Runner is the slice of the API client the backtest view needs.
type Runner interface {
	SubmitBacktest(ctx context.Context, req *api.BacktestRequest) (*api.BacktestJob, error)
	BacktestStatus(ctx context.Context, jobID int64) (*api.BacktestJob, error)
	BacktestResult(ctx context.Context, jobID int64) (*api.BacktestResult, error)
}

// =============================================================================
// MESSAGES
// =============================================================================

type submittedMsg struct {
	job *api.BacktestJob
	err error
}

type statusMsg struct {
	job *api.BacktestJob
	err error
}

type resultMsg struct {
	result *api.BacktestResult
	err    error
}

type pollTickMsg struct {
	Time time.Time
}

// =============================================================================
// MODEL
// =============================================================================

// form field indexes, in focus order.
const (
	fieldPrompt = iota
	fieldSymbol
	fieldTimeframe
	fieldStart
	fieldEnd
	fieldCount
)

// Model is the Bubble Tea model for the backtest view.
type Model struct {
	theme  *styles.Theme
	client Runner

	width  int
	height int

	fields  [fieldCount]textinput.Model
	focused int

	job     *api.BacktestJob
	result  *api.BacktestResult
	lastErr error
	running bool
}

// New creates the backtest view.
func New(client Runner, theme *styles.Theme) *Model {
	m := &Model{
		theme:  theme,
		client: client,
	}

	labels := [fieldCount]struct {
		placeholder string
		limit       int
	}{
		fieldPrompt:    {"Strategy prompt, e.g. 'short when funding exceeds 0.1%'", 2000},
		fieldSymbol:    {"BTC", 20},
		fieldTimeframe: {"4h", 8},
		fieldStart:     {"2025-01-01", 10},
		fieldEnd:       {"2025-06-30", 10},
	}

	for i := range m.fields {
		in := textinput.New()
		in.Placeholder = labels[i].placeholder
		in.CharLimit = labels[i].limit
		in.Prompt = ""
		in.PlaceholderStyle = theme.InputPlaceholder
		in.TextStyle = theme.InputText
		m.fields[i] = in
	}
	m.fields[fieldPrompt].Focus()

	return m
}

// Init is a no-op; the form waits for input.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update is the Bubble Tea update loop for the backtest view.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case submittedMsg:
		m.running = false
		if msg.err != nil {
			m.lastErr = msg.err
			return m, nil
		}
		m.lastErr = nil
		m.job = msg.job
		m.result = nil
		m.running = true
		return m, m.pollTickCmd()

	case pollTickMsg:
		if !m.running || m.job == nil {
			return m, nil
		}
		return m, m.statusCmd(m.job.ID)

	case statusMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			m.running = false
			return m, nil
		}
		m.job = msg.job
		switch msg.job.Status {
		case api.BacktestCompleted:
			m.running = false
			return m, m.resultCmd(msg.job.ID)
		case api.BacktestFailed:
			m.running = false
			return m, nil
		default:
			return m, m.pollTickCmd()
		}

	case resultMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			return m, nil
		}
		m.result = msg.result
		return m, nil
	}

	var cmd tea.Cmd
	m.fields[m.focused], cmd = m.fields[m.focused].Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "down":
		m.focusField((m.focused + 1) % fieldCount)
		return m, nil
	case "shift+tab", "up":
		m.focusField((m.focused + fieldCount - 1) % fieldCount)
		return m, nil
	case "enter":
		return m, m.submit()
	}

	var cmd tea.Cmd
	m.fields[m.focused], cmd = m.fields[m.focused].Update(msg)
	return m, cmd
}

func (m *Model) focusField(i int) {
	m.fields[m.focused].Blur()
	m.focused = i
	m.fields[m.focused].Focus()
}

// submit validates the form and submits the job.
func (m *Model) submit() tea.Cmd {
	req := &api.BacktestRequest{
		Prompt:    m.fields[fieldPrompt].Value(),
		Symbol:    m.fields[fieldSymbol].Value(),
		Timeframe: m.fields[fieldTimeframe].Value(),
		StartDate: m.fields[fieldStart].Value(),
		EndDate:   m.fields[fieldEnd].Value(),
	}

	if err := validateRequest(req); err != nil {
		m.lastErr = err
		return nil
	}
	if m.running {
		return nil
	}

	m.running = true
	m.lastErr = nil
	client := m.client

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		job, err := client.SubmitBacktest(ctx, req)
		return submittedMsg{job: job, err: err}
	}
}

func (m *Model) statusCmd(jobID int64) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		job, err := client.BacktestStatus(ctx, jobID)
		return statusMsg{job: job, err: err}
	}
}

func (m *Model) resultCmd(jobID int64) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		result, err := client.BacktestResult(ctx, jobID)
		return resultMsg{result: result, err: err}
	}
}

func (m *Model) pollTickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return pollTickMsg{Time: t}
	})
}
