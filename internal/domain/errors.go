package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotLoaded is returned by run operations before a successful Load.
	ErrNotLoaded = errors.New("no test loaded")
	// ErrAlreadyRunning is returned when a run is requested while one is in progress.
	ErrAlreadyRunning = errors.New("a run is already in progress")
	// ErrNoRunStarted is returned by EndRun when BeginRun was never called.
	ErrNoRunStarted = errors.New("no run started")
	// ErrRunCancelled is reported when CancelRun stopped a run early.
	ErrRunCancelled = errors.New("run cancelled")
	// ErrRunTimeout is reported when a run exceeded its configured timeout.
	ErrRunTimeout = errors.New("run timed out")
	// ErrTestNotFound is matched by a LoadError whose source or test name does not exist.
	ErrTestNotFound = errors.New("test not found")
	// ErrNoRunner is returned by a proxy that has no downstream runner.
	ErrNoRunner = errors.New("no downstream runner")
	// ErrWorkerStopped is returned by an isolated runner whose worker has exited.
	ErrWorkerStopped = errors.New("isolated worker stopped")
	// ErrEngineFault wraps a panic that escaped the traversal of a run.
	ErrEngineFault = errors.New("engine fault")
	// ErrNoLoader is returned by Load on a runner constructed without a loader.
	ErrNoLoader = errors.New("no loader configured")
	// ErrTestsFailed is returned by Workflow.Run when the run completed with failures or errors.
	ErrTestsFailed = errors.New("tests failed")
)

// LoadError describes a failed Load.
type LoadError struct {
	Spec     LoadSpec
	Message  string
	Cause    error
	NotFound bool
}

func (e *LoadError) Error() string {
	var b strings.Builder

	b.WriteString("load ")
	b.WriteString(e.Spec.String())

	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

func (e *LoadError) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, ErrTestNotFound) match not-found load failures.
func (e *LoadError) Is(target error) bool {
	return target == ErrTestNotFound && e.NotFound
}

// IsolationError reports a fault raised inside an isolated worker.
type IsolationError struct {
	Op    string
	Value any
	Stack string
}

func (e *IsolationError) Error() string {
	return fmt.Sprintf("isolated %s: %v", e.Op, e.Value)
}

// Unwrap exposes the panic value when it was an error.
func (e *IsolationError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}

	return nil
}
