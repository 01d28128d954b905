package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/seedpool/internal/application"
)

type statsFetchedMsg struct {
	stats application.Stats
	err   error
}

// statsSpinnerModel shows which server is being queried and keeps the fetched
// stats as its result.
type statsSpinnerModel struct {
	spinner spinner.Model
	target  string
	fetch   tea.Cmd

	stats application.Stats
	err   error
	done  bool
}

func newStatsSpinnerModel(target string, fetch tea.Cmd) statsSpinnerModel {
	return statsSpinnerModel{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
		),
		target: target,
		fetch:  fetch,
	}
}

func (m statsSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch)
}

func (m statsSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statsFetchedMsg:
		m.stats, m.err, m.done = msg.stats, msg.err, true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m statsSpinnerModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s Fetching pool statistics from %s...", m.spinner.View(), m.target)
}

// fetchStatsWithSpinner queries baseURL while a spinner runs on output.
func (a *app) fetchStatsWithSpinner(ctx context.Context, output io.Writer, baseURL, key string) (application.Stats, error) {
	fetch := func() tea.Msg {
		stats, err := a.fetchStats(ctx, baseURL, key)
		return statsFetchedMsg{stats: stats, err: err}
	}

	final, err := tea.NewProgram(
		newStatsSpinnerModel(baseURL, fetch),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	).Run()
	if err != nil {
		return application.Stats{}, err
	}

	m, ok := final.(statsSpinnerModel)
	if !ok {
		return application.Stats{}, fmt.Errorf("unexpected final spinner model type %T", final)
	}

	return m.stats, m.err
}
