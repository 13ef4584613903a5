package domain

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	m "trellis.dev/pkg/trellis/internal/model"
)

const eventBuffer = 64

// RunnerFactory builds the downstream runner of an IsolatedRunner. It is
// called on the worker goroutine.
type RunnerFactory func() (Runner, error)

// IsolatedRunner executes every runner operation on a dedicated worker
// goroutine. Listener callbacks raised during a run travel back over one
// ordered channel and are replayed on the caller's listener by a separate
// goroutine, so the caller never observes the worker directly.
type IsolatedRunner struct {
	*ProxyRunner

	factory RunnerFactory

	mu     sync.Mutex
	worker *worker
	active *isolatedRun
}

var _ Runner = (*IsolatedRunner)(nil)

// NewIsolatedRunner creates a runner whose downstream runner is built by
// factory on first Load.
func NewIsolatedRunner(factory RunnerFactory) *IsolatedRunner {
	return &IsolatedRunner{
		ProxyRunner: NewDeferredProxyRunner(newRunnerID()),
		factory:     factory,
	}
}

// Load starts the worker if needed and loads spec inside it.
func (r *IsolatedRunner) Load(ctx context.Context, spec LoadSpec) error {
	if r.Running() {
		return ErrAlreadyRunning
	}

	w, err := r.ensureWorker()
	if err != nil {
		return err
	}

	return w.call("load", func(runner Runner) error {
		return runner.Load(ctx, spec)
	})
}

func (r *IsolatedRunner) ensureWorker() (*worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.worker != nil {
		return r.worker, nil
	}

	w := startWorker()

	var downstream Runner

	err := w.call("create", func(Runner) error {
		created, err := r.factory()
		if err != nil {
			return err
		}

		w.runner = created
		downstream = created

		return nil
	})
	if err != nil {
		w.stop()
		return nil, err
	}

	r.SetRunner(downstream)
	r.worker = w

	slog.Debug("Started isolated worker", "runner", r.ID())

	return w, nil
}

func (r *IsolatedRunner) currentWorker() *worker {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.worker
}

// Unload unloads the downstream runner and stops the worker.
func (r *IsolatedRunner) Unload(ctx context.Context) error {
	if r.Running() {
		return ErrAlreadyRunning
	}

	w := r.currentWorker()
	if w == nil {
		return nil
	}

	err := w.call("unload", func(runner Runner) error {
		return runner.Unload(ctx)
	})

	r.stopWorker()

	return err
}

func (r *IsolatedRunner) stopWorker() {
	r.mu.Lock()
	w := r.worker
	r.worker = nil
	r.active = nil
	r.mu.Unlock()

	if w == nil {
		return
	}

	r.SetRunner(nil)
	w.stop()

	slog.Debug("Stopped isolated worker", "runner", r.ID())
}

// Running reports whether a run started through this runner is still in progress.
func (r *IsolatedRunner) Running() bool {
	r.mu.Lock()
	run := r.active
	r.mu.Unlock()

	return run != nil && !run.finished()
}

// Test returns the tree loaded in the worker.
func (r *IsolatedRunner) Test() m.Test {
	var test m.Test

	r.query("test", func(runner Runner) { test = runner.Test() })

	return test
}

// Result returns the last result, preferring the one replayed to the caller.
func (r *IsolatedRunner) Result() m.Result {
	r.mu.Lock()
	run := r.active
	r.mu.Unlock()

	if run != nil && run.finished() {
		return run.result
	}

	var result m.Result

	r.query("result", func(runner Runner) { result = runner.Result() })

	return result
}

// CountTestCases counts inside the worker.
func (r *IsolatedRunner) CountTestCases(filter m.Filter) int {
	count := 0

	r.query("count", func(runner Runner) { count = runner.CountTestCases(filter) })

	return count
}

// Categories lists categories inside the worker.
func (r *IsolatedRunner) Categories() []string {
	var categories []string

	r.query("categories", func(runner Runner) { categories = runner.Categories() })

	return categories
}

func (r *IsolatedRunner) query(op string, fn func(Runner)) {
	w := r.currentWorker()
	if w == nil {
		return
	}

	if err := w.call(op, func(runner Runner) error {
		fn(runner)
		return nil
	}); err != nil {
		slog.Debug("Isolated query failed", "op", op, "error", err)
	}
}

// Run runs inside the worker and waits for the replay to finish.
func (r *IsolatedRunner) Run(ctx context.Context, listener m.Listener, filter m.Filter) (m.Result, error) {
	if err := r.BeginRun(ctx, listener, filter); err != nil {
		return nil, err
	}

	return r.EndRun()
}

// BeginRun starts a run inside the worker. Queries are still answered while
// the run is in progress; CancelRun does not wait for it.
func (r *IsolatedRunner) BeginRun(ctx context.Context, listener m.Listener, filter m.Filter) error {
	w := r.currentWorker()
	if w == nil {
		return ErrNotLoaded
	}

	if listener == nil {
		listener = m.NullListener{}
	}

	r.mu.Lock()
	if r.active != nil && !r.active.finished() {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.mu.Unlock()

	r.setListener(listener)

	runCtx, cancel := context.WithCancelCause(ctx)
	run := &isolatedRun{
		cancel: cancel,
		pipe:   newEventPipe(),
		done:   make(chan struct{}),
	}

	err := w.submit("run",
		func(runner Runner) error {
			return runner.BeginRun(runCtx, run.pipe.listener(), filter)
		},
		func(runner Runner) {
			run.result, run.err = runner.EndRun()
		},
		func(fault error) {
			run.result, run.err = nil, fault
		},
		run.pipe.close,
	)
	if err != nil {
		cancel(nil)
		return err
	}

	r.mu.Lock()
	r.active = run
	r.mu.Unlock()

	go run.replay(listener)

	return nil
}

// EndRun waits for the events of the current run to be replayed and returns its outcome.
func (r *IsolatedRunner) EndRun() (m.Result, error) {
	r.mu.Lock()
	run := r.active
	r.mu.Unlock()

	if run == nil {
		return nil, ErrNoRunStarted
	}

	<-run.done

	return run.result, run.err
}

// Wait blocks until the current run has been replayed.
func (r *IsolatedRunner) Wait() {
	r.mu.Lock()
	run := r.active
	r.mu.Unlock()

	if run != nil {
		<-run.done
	}
}

// CancelRun cancels the run context shared with the worker. It bypasses the
// worker's request queue.
func (r *IsolatedRunner) CancelRun() {
	r.mu.Lock()
	run := r.active
	r.mu.Unlock()

	if run != nil {
		run.cancel(ErrRunCancelled)
	}
}

// Close cancels any run, closes the downstream runner and stops the worker.
func (r *IsolatedRunner) Close() error {
	r.CancelRun()
	r.Wait()

	w := r.currentWorker()
	if w == nil {
		return nil
	}

	err := w.call("close", func(runner Runner) error {
		return runner.Close()
	})

	r.stopWorker()

	return err
}

type isolatedRun struct {
	cancel context.CancelCauseFunc
	pipe   *eventPipe
	done   chan struct{}
	result m.Result
	err    error
}

func (run *isolatedRun) finished() bool {
	select {
	case <-run.done:
		return true
	default:
		return false
	}
}

func (run *isolatedRun) replay(listener m.Listener) {
	defer close(run.done)

	for e := range run.pipe.events {
		e.Dispatch(listener)
	}
}

// eventPipe carries the listener events of one run in order. After close,
// late events are dropped.
type eventPipe struct {
	mu       sync.Mutex
	events   chan m.Event
	closed   bool
	finished bool
}

func newEventPipe() *eventPipe {
	return &eventPipe{events: make(chan m.Event, eventBuffer)}
}

func (p *eventPipe) listener() m.Listener {
	return m.EventSink(p.send)
}

func (p *eventPipe) send(e m.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	if e.Kind == m.EventRunFinished {
		p.finished = true
	}

	p.events <- e
}

// close ends the stream. fault, when non-nil and no RunFinished was seen,
// is delivered as a synthetic RunFinished.
func (p *eventPipe) close(fault error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	if fault != nil && !p.finished {
		p.events <- m.Event{Kind: m.EventUnhandledException, Err: fault}
		p.events <- m.Event{Kind: m.EventRunFinished, Err: fault}
	}

	p.closed = true
	close(p.events)
}

type request struct {
	op    string
	fn    func(Runner) error
	reply chan error

	// then runs on the worker after a successful fn has been acknowledged.
	then func(Runner)
	// fault receives a panic raised by then.
	fault func(error)
	// cleanup always runs last with the fault of then, if any.
	cleanup func(error)
}

type worker struct {
	requests chan request
	stopped  chan struct{}
	cancel   context.CancelFunc
	group    *errgroup.Group

	// runner is set on the worker goroutine; run follow-ups read it from their own.
	runner Runner
}

func startWorker() *worker {
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	w := &worker{
		requests: make(chan request),
		stopped:  make(chan struct{}),
		cancel:   cancel,
		group:    group,
	}

	group.Go(func() error {
		defer close(w.stopped)
		w.loop(ctx)

		return nil
	})

	return w
}

func (w *worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.requests:
			w.serve(req)
		}
	}
}

func (w *worker) serve(req request) {
	runner := w.runner

	err := w.protect(req.op, runner, func() error { return req.fn(runner) })
	req.reply <- err

	if req.cleanup == nil {
		return
	}

	if err != nil {
		req.cleanup(nil)
		return
	}

	// then may block until a run ends; the worker keeps serving queries meanwhile.
	w.group.Go(func() error {
		w.follow(req, runner)
		return nil
	})
}

func (w *worker) follow(req request, runner Runner) {
	var fault error

	if req.then != nil {
		fault = w.protect(req.op, runner, func() error {
			req.then(runner)
			return nil
		})
		if fault != nil && req.fault != nil {
			req.fault(fault)
		}
	}

	req.cleanup(fault)
}

func (w *worker) protect(op string, runner Runner, fn func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &IsolationError{Op: op, Value: v, Stack: string(debug.Stack())}
			slog.Error("Isolated worker fault", "op", op, "error", err)
		}
	}()

	if runner == nil && op != "create" {
		return ErrWorkerStopped
	}

	return fn()
}

// call runs fn on the worker and waits for its result.
func (w *worker) call(op string, fn func(Runner) error) error {
	return w.submit(op, fn, nil, nil, nil)
}

// submit queues a request and waits until fn has run. then and cleanup run
// afterwards on a goroutine of the worker's group, without the caller or the
// request loop waiting for them.
func (w *worker) submit(op string, fn func(Runner) error, then func(Runner), fault, cleanup func(error)) error {
	req := request{
		op:      op,
		fn:      fn,
		reply:   make(chan error, 1),
		then:    then,
		fault:   fault,
		cleanup: cleanup,
	}

	select {
	case w.requests <- req:
	case <-w.stopped:
		return ErrWorkerStopped
	}

	select {
	case err := <-req.reply:
		return err
	case <-w.stopped:
		select {
		case err := <-req.reply:
			return err
		default:
			return ErrWorkerStopped
		}
	}
}

func (w *worker) stop() {
	w.cancel()

	if err := w.group.Wait(); err != nil {
		slog.Error("Isolated worker exited with error", "error", err)
	}
}
