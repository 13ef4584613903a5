package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// DefaultCommandTimeout bounds a single command when nothing else is configured.
const DefaultCommandTimeout = 2 * time.Minute

// ErrCommandTimeout is returned when a command outlives its timeout.
var ErrCommandTimeout = errors.New("command timed out")

// Command is a shell script to execute.
type Command struct {
	Script  string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// CommandRunner abstracts command execution for plan cases and hooks.
type CommandRunner interface {
	// RunCommand runs cmd, streaming its output to stdout and stderr. A
	// non-zero exit status is reported as an *exec.ExitError.
	RunCommand(ctx context.Context, cmd Command, stdout, stderr io.Writer) error
}

// LocalCommandRunner runs commands with os/exec through a shell.
type LocalCommandRunner struct {
	shell   []string
	timeout time.Duration
}

// NewLocalCommandRunner constructs a LocalCommandRunner using "sh -c" and DefaultCommandTimeout.
func NewLocalCommandRunner() *LocalCommandRunner {
	return &LocalCommandRunner{
		shell:   []string{"sh", "-c"},
		timeout: DefaultCommandTimeout,
	}
}

// RunCommand implements CommandRunner.
func (a *LocalCommandRunner) RunCommand(ctx context.Context, cmd Command, stdout, stderr io.Writer) error {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = a.timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, a.shell[1:]...), cmd.Script)

	c := exec.CommandContext(ctx, a.shell[0], args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	c.Stdout = stdout
	c.Stderr = stderr
	c.WaitDelay = time.Second

	err := c.Run()
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrCommandTimeout, timeout)
	}

	return err
}

// ExitCode returns the exit status carried by err, or -1.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return -1
}
