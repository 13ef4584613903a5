package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	m "trellis.dev/pkg/trellis/internal/model"
)

const (
	maxRecentProblems = 8
	progressWidth     = 48
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	passStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	ignoredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// TUI implements UI with a Bubble Tea progress view while a run is going on.
// Listings and summaries are printed like SimpleUI once the program is gone.
type TUI struct {
	*SimpleUI

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

var _ UI = (*TUI)(nil)

// NewTUI creates a new TUI.
func NewTUI(cmd *cobra.Command) *TUI {
	return &TUI{SimpleUI: NewSimpleUI(cmd)}
}

// Start launches the progress program in run mode. Other modes print only.
func (p *TUI) Start(ctx context.Context, options ...StartOption) error {
	if err := p.SimpleUI.Start(ctx, options...); err != nil {
		return err
	}

	if p.config.mode != ModeRun {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.program != nil {
		return nil
	}

	p.program = tea.NewProgram(
		newRunModel(p.config.interrupt),
		tea.WithContext(ctx),
		tea.WithOutput(p.cmd.OutOrStdout()),
		tea.WithInput(p.cmd.InOrStdin()),
	)
	p.done = make(chan struct{})

	program, done := p.program, p.done

	go func() {
		defer close(done)

		if _, err := program.Run(); err != nil {
			p.printf("display error: %v\n", err)
		}
	}()

	return nil
}

// Close stops the program and waits for it to restore the terminal.
func (p *TUI) Close(ctx context.Context) {
	p.mu.Lock()
	program, done := p.program, p.done
	p.program = nil
	p.mu.Unlock()

	if program == nil {
		return
	}

	program.Send(closeMsg{})

	select {
	case <-done:
	case <-ctx.Done():
		program.Kill()
	}
}

// Wait blocks until the program exits.
func (p *TUI) Wait(ctx context.Context) {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done == nil {
		return
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (p *TUI) send(msg tea.Msg) {
	p.mu.Lock()
	program := p.program
	p.mu.Unlock()

	if program != nil {
		program.Send(msg)
	}
}

func (p *TUI) RunStarted(name string, testCount int) {
	p.send(runStartedMsg{name: name, total: testCount})
}

func (p *TUI) RunFinished(_ m.Result, err error) {
	p.send(runFinishedMsg{err: err})
}

func (p *TUI) SuiteFinished(result *m.SuiteResult) {
	if result.State == m.StateFailure || result.State == m.StateError {
		p.send(problemMsg{name: result.FullName, state: result.State, message: result.Message})
	}
}

func (p *TUI) TestStarted(info m.TestInfo) {
	p.send(testStartedMsg{name: info.FullName})
}

func (p *TUI) TestFinished(result *m.CaseResult) {
	p.send(testFinishedMsg{name: result.FullName, state: result.State, message: result.Message})
}

func (p *TUI) TestOutput(m.TestOutput) {}

func (p *TUI) UnhandledException(err error) {
	p.send(problemMsg{name: "unhandled", state: m.StateError, message: err.Error()})
}

type (
	runStartedMsg struct {
		name  string
		total int
	}
	runFinishedMsg struct{ err error }
	testStartedMsg struct{ name string }
	testFinishedMsg struct {
		name    string
		state   m.ResultState
		message string
	}
	problemMsg struct {
		name    string
		state   m.ResultState
		message string
	}
	closeMsg struct{}
)

// runModel is the Bubble Tea model following a run.
type runModel struct {
	spinner   spinner.Model
	progress  progress.Model
	interrupt func()

	name     string
	total    int
	current  string
	counts   map[m.ResultState]int
	finished int
	problems []problem
	err      error
	done     bool
	quitting bool
}

func newRunModel(interrupt func()) runModel {
	return runModel{
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		progress:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressWidth)),
		interrupt: interrupt,
		counts:    map[m.ResultState]int{},
	}
}

func (rm runModel) Init() tea.Cmd {
	return rm.spinner.Tick
}

func (rm runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runStartedMsg:
		rm.name = msg.name
		rm.total = msg.total

		return rm, nil

	case testStartedMsg:
		rm.current = msg.name

		return rm, nil

	case testFinishedMsg:
		rm.finished++
		rm.counts[msg.state]++

		if msg.state == m.StateFailure || msg.state == m.StateError {
			rm = rm.addProblem(problem{name: msg.name, state: msg.state, message: msg.message})
		}

		return rm, nil

	case problemMsg:
		return rm.addProblem(problem(msg)), nil

	case runFinishedMsg:
		rm.done = true
		rm.current = ""
		rm.err = msg.err

		return rm, nil

	case closeMsg:
		rm.done = true

		return rm, tea.Quit

	case tea.WindowSizeMsg:
		rm.progress.Width = min(progressWidth, max(msg.Width-4, 10))

		return rm, nil

	case tea.KeyMsg:
		return rm.handleKeyPress(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		rm.spinner, cmd = rm.spinner.Update(msg)

		return rm, cmd
	}

	return rm, nil
}

func (rm runModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		if rm.done {
			return rm, tea.Quit
		}

		if !rm.quitting && rm.interrupt != nil {
			rm.interrupt()
		}

		rm.quitting = true
	}

	return rm, nil
}

func (rm runModel) addProblem(p problem) runModel {
	rm.problems = append(rm.problems, p)
	if len(rm.problems) > maxRecentProblems {
		rm.problems = rm.problems[len(rm.problems)-maxRecentProblems:]
	}

	return rm
}

func (rm runModel) percent() float64 {
	if rm.total == 0 {
		return 0
	}

	return min(float64(rm.finished)/float64(rm.total), 1)
}

func (rm runModel) View() string {
	var b strings.Builder

	if rm.done {
		b.WriteString(titleStyle.Render("Finished "+rm.name) + "\n")
	} else {
		fmt.Fprintf(&b, "%s %s\n", rm.spinner.View(), titleStyle.Render("Running "+rm.name))
	}

	fmt.Fprintf(&b, "%s %d/%d\n", rm.progress.ViewAs(rm.percent()), rm.finished, rm.total)

	fmt.Fprintf(&b, "%s  %s  %s  %s\n",
		passStyle.Render(fmt.Sprintf("passed %d", rm.counts[m.StateSuccess])),
		failStyle.Render(fmt.Sprintf("failed %d", rm.counts[m.StateFailure])),
		failStyle.Render(fmt.Sprintf("errors %d", rm.counts[m.StateError])),
		ignoredStyle.Render(fmt.Sprintf("ignored %d", rm.counts[m.StateIgnored]+rm.counts[m.StateNotRun])),
	)

	if rm.current != "" {
		b.WriteString(faintStyle.Render("  "+rm.current) + "\n")
	}

	for _, p := range rm.problems {
		line, _, _ := strings.Cut(p.message, "\n")
		fmt.Fprintf(&b, "  %s %s: %s\n", failStyle.Render(strings.ToUpper(p.state.String())), p.name, line)
	}

	switch {
	case rm.err != nil:
		b.WriteString(failStyle.Render("  run aborted: "+rm.err.Error()) + "\n")
	case rm.quitting && !rm.done:
		b.WriteString(faintStyle.Render("  stopping after the current test...") + "\n")
	}

	return b.String()
}
