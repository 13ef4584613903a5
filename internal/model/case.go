package model

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/pkg/errors"
)

// FixtureSetUpFailedMessage is the message every case of a fixture receives
// when the fixture's SetUp returned an error.
const FixtureSetUpFailedMessage = "TestFixtureSetUp Failed"

// Body is the executable part of a test case.
//
// Returning an *AssertionError, or reporting through t.Errorf/t.FailNow, records a
// Failure. Any other returned error, or a panic, records an Error.
type Body func(t *T) error

// Case is a leaf of the test tree.
type Case struct {
	node
	Description string
	body        Body
}

var _ Test = (*Case)(nil)

// NewCase creates a test case running body.
func NewCase(name string, body Body, opts ...Option) *Case {
	return &Case{node: newNode(name, opts), body: body}
}

// ShouldRun reports whether the case body will be invoked when reached.
func (c *Case) ShouldRun() bool { return c.shouldRun }

// IgnoreReason is reported as the message of an ignored case.
func (c *Case) IgnoreReason() string { return c.ignoreReason }

// IsSuite is always false for a case.
func (c *Case) IsSuite() bool { return false }

// TestCount is always 1 for a case.
func (c *Case) TestCount() int { return 1 }

// CountTestCases returns 1 when filter selects the case, 0 otherwise.
func (c *Case) CountTestCases(filter Filter) int {
	return c.count(orEmpty(filter), false)
}

func (c *Case) count(filter Filter, selectedOnly bool) int {
	if (c.explicit || selectedOnly) && !SelectsExplicitly(filter, c) {
		return 0
	}

	if c.Filter(filter) {
		return 1
	}

	return 0
}

// Filter reports whether filter passes the case.
func (c *Case) Filter(filter Filter) bool {
	return orEmpty(filter).Pass(c)
}

// Run executes the case unconditionally, even when it is explicit.
func (c *Case) Run(ctx context.Context, listener Listener) Result {
	return c.run(ctx, orNull(listener), Empty, false)
}

// RunFiltered ignores filter: selection happens before a leaf is reached.
func (c *Case) RunFiltered(ctx context.Context, listener Listener, _ Filter) Result {
	return c.Run(ctx, listener)
}

func (c *Case) run(ctx context.Context, listener Listener, _ Filter, _ bool) Result {
	result := NewCaseResult(c)

	listener.TestStarted(InfoOf(c))

	switch {
	case c.setUpFailed():
		result.Failure(FixtureSetUpFailedMessage, "")
	case !c.ShouldRun():
		result.Ignore(c.IgnoreReason())
	default:
		c.execute(ctx, listener, result)
	}

	listener.TestFinished(result)

	return result
}

func (c *Case) execute(ctx context.Context, listener Listener, result *CaseResult) {
	t := newT(ctx, c.FullName(), listener)
	fixture := c.fixture()

	start := time.Now()
	err := c.invoke(t, fixture)
	result.Time = time.Since(start).Seconds()
	result.AssertCount = t.AssertCount()

	var (
		panicked *panicError
		assert   *AssertionError
	)

	switch {
	case stderrors.As(err, &panicked):
		result.Error(panicked.Error(), panicked.stack)
	case stderrors.As(err, &assert):
		result.Failure(assert.Message, "")
	case err != nil:
		result.Error(err.Error(), stackTraceOf(err))
	case t.Failed():
		result.Failure(t.failureMessage(), "")
	default:
		result.Success()
	}
}

func (c *Case) invoke(t *T, fixture *Suite) error {
	if fixture != nil && fixture.CaseSetUp != nil {
		if err := protect(t, fixture.CaseSetUp); err != nil {
			return fmt.Errorf("SetUp : %w", err)
		}

		if t.Failed() {
			return nil
		}
	}

	err := protect(t, c.body)

	if fixture != nil && fixture.CaseTearDown != nil {
		if tearErr := protect(t, fixture.CaseTearDown); tearErr != nil && err == nil && !t.Failed() {
			err = fmt.Errorf("TearDown : %w", tearErr)
		}
	}

	return err
}

func (c *Case) setUpFailed() bool {
	for s := c.parent; s != nil; s = s.parent {
		if s.SetUpFailed() {
			return true
		}
	}

	return false
}

// fixture returns the nearest fixture ancestor, whose per-case hooks apply to this case.
func (c *Case) fixture() *Suite {
	for s := c.parent; s != nil; s = s.parent {
		if s.IsFixture() {
			return s
		}
	}

	return nil
}

func protect(t *T, fn Body) (err error) {
	if fn == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(failNowSignal); ok {
				return
			}

			err = &panicError{value: r, stack: string(debug.Stack())}
		}
	}()

	return fn(t)
}

type panicError struct {
	value any
	stack string
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// stackTraceOf extracts the innermost recorded stack from errors built with github.com/pkg/errors.
func stackTraceOf(err error) string {
	var (
		tracer stackTracer
		found  stackTracer
	)

	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if stderrors.As(e, &tracer) {
			found = tracer
		}
	}

	if found == nil {
		return ""
	}

	return fmt.Sprintf("%+v", found.StackTrace())
}

// AssertionError reports a failed expectation. Returning one from a Body records a Failure.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	return e.Message
}

// Fail builds an AssertionError from a format string.
func Fail(format string, args ...any) error {
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}
