package domain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	m "trellis.dev/pkg/trellis/internal/model"
)

// DefaultProjectName names the suite wrapping a multi-source load without a name.
const DefaultProjectName = "Project"

var nextRunnerID atomic.Int64

func newRunnerID() int {
	return int(nextRunnerID.Add(1))
}

var errStoppedOnFailure = errors.New("stopped on failure")

// SimpleRunner runs a tree in the calling process.
type SimpleRunner struct {
	id       int
	loader   Loader
	settings *m.Settings

	mu     sync.Mutex
	state  RunnerState
	test   m.Test
	result m.Result
	active *runHandle
}

type runHandle struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
	result m.Result
	err    error
}

var _ Runner = (*SimpleRunner)(nil)

// NewSimpleRunner creates a runner loading trees through loader.
func NewSimpleRunner(loader Loader) *SimpleRunner {
	return &SimpleRunner{
		id:       newRunnerID(),
		loader:   loader,
		settings: m.NewSettings(),
	}
}

// ID returns the process-unique id of the runner.
func (r *SimpleRunner) ID() int { return r.id }

// Settings returns the settings read at load and run time.
func (r *SimpleRunner) Settings() *m.Settings { return r.settings }

// State returns the lifecycle state.
func (r *SimpleRunner) State() RunnerState {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// Running reports whether a run is in progress.
func (r *SimpleRunner) Running() bool {
	return r.State() == StateRunning
}

// Test returns the loaded tree, or nil.
func (r *SimpleRunner) Test() m.Test {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.test
}

// Result returns the result of the last finished run, or nil.
func (r *SimpleRunner) Result() m.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.result
}

// Load resolves spec through the loader. Several sources are wrapped in a
// project suite; a TestName narrows the loaded tree to that node.
func (r *SimpleRunner) Load(ctx context.Context, spec LoadSpec) error {
	if r.Running() {
		return ErrAlreadyRunning
	}

	tree, err := r.build(ctx, spec)
	if err != nil {
		slog.Debug("Load failed", "runner", r.id, "spec", spec.String(), "error", err)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRunning {
		return ErrAlreadyRunning
	}

	r.test = tree
	r.result = nil
	r.active = nil
	r.state = StateLoaded

	slog.Debug("Loaded tests", "runner", r.id, "spec", spec.String(), "tests", tree.TestCount())

	return nil
}

func (r *SimpleRunner) build(ctx context.Context, spec LoadSpec) (m.Test, error) {
	if r.loader == nil {
		return nil, &LoadError{Spec: spec, Cause: ErrNoLoader}
	}

	if len(spec.Sources) == 0 {
		return nil, &LoadError{Spec: spec, Message: "no sources"}
	}

	trees := make([]m.Test, 0, len(spec.Sources))

	for _, source := range spec.Sources {
		tree, err := r.loader.LoadSource(ctx, source, r.settings)
		if err != nil {
			return nil, &LoadError{
				Spec:     spec,
				Message:  fmt.Sprintf("source %s", source),
				Cause:    err,
				NotFound: errors.Is(err, fs.ErrNotExist) || errors.Is(err, ErrTestNotFound),
			}
		}

		if tree == nil {
			return nil, &LoadError{Spec: spec, Message: fmt.Sprintf("source %s has no tests", source), NotFound: true}
		}

		trees = append(trees, tree)
	}

	var tree m.Test
	if len(trees) == 1 {
		tree = trees[0]
	} else {
		name := spec.Name
		if name == "" {
			name = DefaultProjectName
		}

		project := m.NewSuite(name)
		if err := project.Add(trees...); err != nil {
			return nil, &LoadError{Spec: spec, Cause: err}
		}

		tree = project
	}

	if spec.TestName == "" {
		return tree, nil
	}

	found := m.Find(tree, spec.TestName)
	if found == nil {
		return nil, &LoadError{Spec: spec, Message: fmt.Sprintf("no test named %s", spec.TestName), NotFound: true}
	}

	return found, nil
}

// Unload drops the loaded tree and the last result.
func (r *SimpleRunner) Unload(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRunning {
		return ErrAlreadyRunning
	}

	r.test = nil
	r.result = nil
	r.active = nil
	r.state = StateUnloaded

	return nil
}

// CountTestCases counts the cases a run with filter would start.
func (r *SimpleRunner) CountTestCases(filter m.Filter) int {
	test := r.Test()
	if test == nil {
		return 0
	}

	return test.CountTestCases(filter)
}

// Categories lists the categories used in the loaded tree.
func (r *SimpleRunner) Categories() []string {
	test := r.Test()
	if test == nil {
		return nil
	}

	return m.Categories(test)
}

// Run runs the loaded tree on the calling goroutine, so listener callbacks
// arrive there too. A cancelled run returns the partial result together with
// ErrRunCancelled.
func (r *SimpleRunner) Run(ctx context.Context, listener m.Listener, filter m.Filter) (m.Result, error) {
	handle, run, err := r.prepare(ctx, listener, filter)
	if err != nil {
		return nil, err
	}

	run()

	return handle.result, handle.err
}

// BeginRun starts a run in the background.
func (r *SimpleRunner) BeginRun(ctx context.Context, listener m.Listener, filter m.Filter) error {
	_, run, err := r.prepare(ctx, listener, filter)
	if err != nil {
		return err
	}

	go run()

	return nil
}

// prepare marks the runner as running and returns the traversal to execute.
func (r *SimpleRunner) prepare(ctx context.Context, listener m.Listener, filter m.Filter) (*runHandle, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.test == nil {
		return nil, nil, ErrNotLoaded
	}

	if r.state == StateRunning {
		return nil, nil, ErrAlreadyRunning
	}

	if listener == nil {
		listener = m.NullListener{}
	}

	if filter == nil {
		filter = m.Empty
	}

	runCtx, cancel := context.WithCancelCause(ctx)

	var stop context.CancelFunc = func() {}
	if timeout := r.settings.GetDuration(SettingRunTimeout, 0); timeout > 0 {
		runCtx, stop = context.WithTimeoutCause(runCtx, timeout, ErrRunTimeout)
	}

	if r.settings.GetBool(SettingStopOnFailure, false) {
		listener = stopOnFailure{Listener: listener, cancel: cancel}
	}

	test := r.test
	handle := &runHandle{cancel: cancel, done: make(chan struct{})}
	r.active = handle
	r.state = StateRunning

	run := func() {
		defer close(handle.done)
		defer cancel(nil)
		defer stop()

		result, err := r.execute(runCtx, test, listener, filter)

		r.finish(handle, result, err)
	}

	return handle, run, nil
}

func (r *SimpleRunner) execute(ctx context.Context, test m.Test, listener m.Listener, filter m.Filter) (result m.Result, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("%w: %v", ErrEngineFault, v)
			result = nil

			slog.Error("Run aborted", "runner", r.id, "error", err, "stack", string(debug.Stack()))
			listener.UnhandledException(err)
			listener.RunFinished(nil, err)
		}
	}()

	listener.RunStarted(test.FullName(), test.CountTestCases(filter))

	result = test.RunFiltered(ctx, listener, filter)
	err = runError(ctx)

	listener.RunFinished(result, err)

	return result, err
}

// runError maps the cancellation cause of a run context to the error reported with the result.
func runError(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}

	cause := context.Cause(ctx)

	switch {
	case errors.Is(cause, errStoppedOnFailure):
		return nil
	case errors.Is(cause, ErrRunTimeout), errors.Is(cause, context.DeadlineExceeded):
		return ErrRunTimeout
	default:
		return ErrRunCancelled
	}
}

func (r *SimpleRunner) finish(handle *runHandle, result m.Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle.result = result
	handle.err = err
	r.result = result

	if errors.Is(err, ErrRunCancelled) || errors.Is(err, ErrRunTimeout) {
		r.state = StateCancelled
	} else {
		r.state = StateCompleted
	}
}

// EndRun waits for the run started by BeginRun and returns its outcome.
func (r *SimpleRunner) EndRun() (m.Result, error) {
	r.mu.Lock()
	handle := r.active
	r.mu.Unlock()

	if handle == nil {
		return nil, ErrNoRunStarted
	}

	<-handle.done

	return handle.result, handle.err
}

// Wait blocks until the current run, if any, has finished.
func (r *SimpleRunner) Wait() {
	r.mu.Lock()
	handle := r.active
	r.mu.Unlock()

	if handle != nil {
		<-handle.done
	}
}

// CancelRun stops the current run after the case in flight.
func (r *SimpleRunner) CancelRun() {
	r.mu.Lock()
	handle := r.active
	r.mu.Unlock()

	if handle != nil {
		handle.cancel(ErrRunCancelled)
	}
}

// Close cancels any run and unloads the tree.
func (r *SimpleRunner) Close() error {
	r.CancelRun()
	r.Wait()

	return r.Unload(context.Background())
}

type stopOnFailure struct {
	m.Listener
	cancel context.CancelCauseFunc
}

func (s stopOnFailure) TestFinished(result *m.CaseResult) {
	s.Listener.TestFinished(result)

	if result.IsFailure() || result.IsError() {
		s.cancel(errStoppedOnFailure)
	}
}
