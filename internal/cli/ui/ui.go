// Package ui renders interactive CLI operations: a spinner while the
// operation runs, then a summary of what happened.
package ui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	detailStyle  = lipgloss.NewStyle().Faint(true)
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type tickMsg struct{}

type doneMsg struct {
	details []string
	err     error
}

type model struct {
	title   string
	frame   int
	done    bool
	details []string
	err     error
	cancel  context.CancelFunc
	results <-chan doneMsg
}

func tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m model) waitForDone() tea.Cmd {
	return func() tea.Msg { return <-m.results }
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tick(), m.waitForDone())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, tick()
	case doneMsg:
		m.done = true
		m.details = msg.details
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			// The operation observes cancellation through its context; the
			// program exits when it reports back.
			m.cancel()
		}
	}
	return m, nil
}

func (m model) View() string {
	var out string
	if m.done {
		mark := okStyle.Render("✓")
		if m.err != nil {
			mark = failStyle.Render("✗")
		}
		out = fmt.Sprintf("%s %s\n", mark, titleStyle.Render(m.title))
	} else {
		out = fmt.Sprintf("%s %s\n", spinnerStyle.Render(spinnerFrames[m.frame]), titleStyle.Render(m.title))
	}
	for _, d := range m.details {
		out += detailStyle.Render("  "+d) + "\n"
	}
	if m.done && m.err != nil {
		out += failStyle.Render("  "+m.err.Error()) + "\n"
	}
	return out
}

// Run executes fn under a spinner and returns its result. Ctrl+C cancels the
// operation's context rather than killing the process.
func Run(title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan doneMsg, 1)
	go func() {
		details, err := fn(ctx)
		results <- doneMsg{details: details, err: err}
	}()

	m := model{title: title, cancel: cancel, results: results}
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, err
	}
	out := final.(model)
	return out.details, out.err
}

// RunPlain executes fn without terminal UI, printing details line by line.
// It serves non-interactive shells and the --plain flag.
func RunPlain(title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	fmt.Println(title)
	details, err := fn(context.Background())
	for _, d := range details {
		fmt.Println("  " + d)
	}
	return details, err
}
