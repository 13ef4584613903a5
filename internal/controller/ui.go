// Package controller provides the console front ends that display test runs.
package controller

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	m "trellis.dev/pkg/trellis/internal/model"
)

// StartMode defines the mode of operation for the UI.
type StartMode int

// Available StartMode values.
const (
	ModeRun StartMode = iota
	ModeList
	ModeView
)

// StartOption is a functional option for Start method.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	mode      StartMode
	verbose   bool
	interrupt func()
}

// WithRunMode sets the UI to follow a running test tree.
func WithRunMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeRun
	}
}

// WithListMode sets the UI to list a loaded tree.
func WithListMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeList
	}
}

// WithViewMode sets the UI to show a stored report.
func WithViewMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeView
	}
}

// WithVerbose echoes every finished case and its captured output.
func WithVerbose(verbose bool) StartOption {
	return func(c *StartConfig) {
		c.verbose = verbose
	}
}

// WithInterrupt registers fn to be called when the user asks to stop the run.
func WithInterrupt(fn func()) StartOption {
	return func(c *StartConfig) {
		c.interrupt = fn
	}
}

func newStartConfig(options []StartOption) StartConfig {
	var cfg StartConfig
	for _, opt := range options {
		opt(&cfg)
	}

	return cfg
}

// UI displays runs. It is the listener handed to the runner, so events arrive
// from the run goroutine; Start must be called before the run begins and
// Close after RunFinished.
type UI interface {
	m.Listener
	Start(ctx context.Context, options ...StartOption) error
	Close(ctx context.Context)
	Wait(ctx context.Context) // Wait for UI to finish (user closes it)
	DisplayTests(ctx context.Context, tree m.Test, filter m.Filter) error
	DisplaySummary(ctx context.Context, report m.Report, summary m.Summary) error
	DisplayComparison(ctx context.Context, diff string) error
	DisplayLoadError(ctx context.Context, err error)
}

// NewUI returns a TUI when tty is set and a SimpleUI otherwise. Both write to
// the command's output.
func NewUI(cmd *cobra.Command, tty bool) UI {
	if tty {
		return NewTUI(cmd)
	}

	return NewSimpleUI(cmd)
}

// IsTTY reports whether w is an interactive terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	fd := f.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
