package model

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// T is handed to a running Body. It satisfies the TestingT interfaces of
// github.com/stretchr/testify's assert and require packages, so bodies can use
// them directly.
type T struct {
	ctx      context.Context
	name     string
	listener Listener

	// emitMu serializes output written from several goroutines.
	emitMu sync.Mutex

	mu       sync.Mutex
	failed   bool
	messages []string
	asserts  int
}

type failNowSignal struct{}

func newT(ctx context.Context, name string, listener Listener) *T {
	return &T{ctx: ctx, name: name, listener: listener}
}

// Context returns the run context. It is cancelled when the run is cancelled.
func (t *T) Context() context.Context { return t.ctx }

// Name returns the full name of the running case.
func (t *T) Name() string { return t.name }

// Errorf records a failure and keeps running.
func (t *T) Errorf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failed = true
	t.messages = append(t.messages, strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Fail marks the case as failed without a message.
func (t *T) Fail() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failed = true
}

// FailNow marks the case as failed and stops the body. It must be called from
// the goroutine running the body.
func (t *T) FailNow() {
	t.Fail()
	panic(failNowSignal{})
}

// Fatalf is Errorf followed by FailNow.
func (t *T) Fatalf(format string, args ...any) {
	t.Errorf(format, args...)
	t.FailNow()
}

// Failed reports whether a failure was recorded.
func (t *T) Failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.failed
}

// Helper is a no-op; it lets testify mark helper frames.
func (t *T) Helper() {}

// CountAssert records n evaluated assertions for the case result.
func (t *T) CountAssert(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.asserts += n
}

// AssertCount returns the number of assertions recorded so far.
func (t *T) AssertCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.asserts
}

// Logf sends a line of log output to the listener.
func (t *T) Logf(format string, args ...any) {
	t.emit(OutputLog, fmt.Sprintf(format, args...)+"\n")
}

// Output returns a writer whose writes reach the listener as TestOutput events.
func (t *T) Output() io.Writer {
	return outputWriter{t: t, kind: OutputStdout}
}

// ErrorOutput is like Output but tags the text as error output.
func (t *T) ErrorOutput() io.Writer {
	return outputWriter{t: t, kind: OutputStderr}
}

func (t *T) emit(kind OutputKind, text string) {
	if text == "" {
		return
	}

	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.listener.TestOutput(TestOutput{Test: t.name, Kind: kind, Text: text})
}

func (t *T) failureMessage() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return strings.Join(t.messages, "\n")
}

type outputWriter struct {
	t    *T
	kind OutputKind
}

func (w outputWriter) Write(p []byte) (int, error) {
	w.t.emit(w.kind, string(p))
	return len(p), nil
}
