package model

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidChild is returned by Suite.Add when the child cannot be attached.
var ErrInvalidChild = errors.New("invalid child")

// Hook is a fixture-level setup or teardown step.
type Hook func(ctx context.Context) error

// Suite is an ordered group of tests. A fixture is a suite whose cases share
// SetUp/TearDown and per-case hooks.
type Suite struct {
	node
	fixture bool
	tests   []Test

	// SetUp runs once before the first child. An error forces every case below
	// to fail with FixtureSetUpFailedMessage.
	SetUp Hook
	// TearDown runs after the last child whenever SetUp succeeded.
	TearDown Hook
	// CaseSetUp and CaseTearDown run around every case body of the fixture.
	CaseSetUp    Body
	CaseTearDown Body

	setUpFailed bool
}

var _ Test = (*Suite)(nil)

// NewSuite creates an empty suite.
func NewSuite(name string, opts ...Option) *Suite {
	return &Suite{node: newNode(name, opts)}
}

// NewFixture creates an empty fixture.
func NewFixture(name string, opts ...Option) *Suite {
	s := NewSuite(name, opts...)
	s.fixture = true

	return s
}

// Add appends children in order and makes s their parent.
func (s *Suite) Add(children ...Test) error {
	for _, child := range children {
		if child == nil {
			return fmt.Errorf("%w: nil test", ErrInvalidChild)
		}

		if child.Parent() != nil {
			return fmt.Errorf("%w: %s already belongs to %s", ErrInvalidChild, child.FullName(), child.Parent().FullName())
		}

		if s.hasAncestor(child) {
			return fmt.Errorf("%w: %s would create a cycle", ErrInvalidChild, child.FullName())
		}

		child.setParent(s)
		s.tests = append(s.tests, child)
	}

	return nil
}

// MustAdd is Add for statically built trees.
func (s *Suite) MustAdd(children ...Test) *Suite {
	if err := s.Add(children...); err != nil {
		panic(err)
	}

	return s
}

func (s *Suite) hasAncestor(test Test) bool {
	for cur := Test(s); cur != nil; cur = parentOf(cur) {
		if cur == test {
			return true
		}
	}

	return false
}

// Tests returns the children in declaration order.
func (s *Suite) Tests() []Test { return s.tests }

// IsSuite is always true for a suite.
func (s *Suite) IsSuite() bool { return true }

// IsFixture reports whether the suite was created with NewFixture.
func (s *Suite) IsFixture() bool { return s.fixture }

// SetUpFailed reports whether SetUp failed in the run currently visiting the suite.
func (s *Suite) SetUpFailed() bool { return s.setUpFailed }

// TestCount returns the number of leaves below the suite.
func (s *Suite) TestCount() int {
	count := 0
	for _, t := range s.tests {
		count += t.TestCount()
	}

	return count
}

// ShouldRun is false for ignored suites and for suites without tests.
func (s *Suite) ShouldRun() bool {
	return s.shouldRun && s.TestCount() > 0
}

// IgnoreReason explains why ShouldRun is false.
func (s *Suite) IgnoreReason() string {
	if s.shouldRun && s.TestCount() == 0 {
		return s.name + " does not have any tests"
	}

	return s.ignoreReason
}

// CountTestCases returns the number of leaves a run with filter would start.
func (s *Suite) CountTestCases(filter Filter) int {
	return s.count(orEmpty(filter), false)
}

func (s *Suite) count(filter Filter, selectedOnly bool) int {
	selectedOnly = s.requiresSelection(filter, selectedOnly)

	count := 0
	for _, t := range s.tests {
		count += t.count(filter, selectedOnly)
	}

	return count
}

// requiresSelection reports whether descendants need explicit selection: true
// below an explicit suite that filter does not itself select.
func (s *Suite) requiresSelection(filter Filter, selectedOnly bool) bool {
	if selectedOnly && SelectsExplicitly(filter, s) {
		return false
	}

	return selectedOnly || (s.explicit && !SelectsExplicitly(filter, s))
}

// Filter reports whether filter passes the suite itself.
func (s *Suite) Filter(filter Filter) bool {
	return orEmpty(filter).Pass(s)
}

// Run runs every non-explicit descendant.
func (s *Suite) Run(ctx context.Context, listener Listener) Result {
	return s.RunFiltered(ctx, listener, Empty)
}

// RunFiltered runs the descendants selected by filter. Calling it on a suite
// is a direct invocation: the suite runs even if it is explicit.
func (s *Suite) RunFiltered(ctx context.Context, listener Listener, filter Filter) Result {
	return s.execute(ctx, orNull(listener), orEmpty(filter), false)
}

func (s *Suite) run(ctx context.Context, listener Listener, filter Filter, selectedOnly bool) Result {
	return s.execute(ctx, listener, filter, s.requiresSelection(filter, selectedOnly))
}

func (s *Suite) execute(ctx context.Context, listener Listener, filter Filter, selectedOnly bool) Result {
	result := NewSuiteResult(s)

	listener.SuiteStarted(InfoOf(s))

	if s.ShouldRun() {
		s.runChildren(ctx, listener, filter, selectedOnly, result)
	} else {
		result.Ignore(s.IgnoreReason())
	}

	listener.SuiteFinished(result)

	return result
}

func (s *Suite) runChildren(ctx context.Context, listener Listener, filter Filter, selectedOnly bool, result *SuiteResult) {
	result.Executed = true
	result.State = StateSuccess

	start := time.Now()

	// Below a failed SetUp the hooks are skipped; the cases report the failure.
	hooks := !s.ancestorSetUpFailed()

	var setUpErr error
	if hooks {
		setUpErr = runHook(ctx, s.SetUp)
	}

	if setUpErr != nil {
		result.Failure(setUpErr.Error(), stackTraceOf(setUpErr))
	}

	s.setUpFailed = setUpErr != nil
	defer func() { s.setUpFailed = false }()

	self := time.Since(start)

	for _, child := range s.tests {
		if ctx.Err() != nil {
			break
		}

		if child.count(filter, selectedOnly) == 0 {
			continue
		}

		result.AddResult(child.run(ctx, listener, filter, selectedOnly))
	}

	if hooks && setUpErr == nil {
		start = time.Now()

		if err := runHook(ctx, s.TearDown); err != nil {
			result.Error("TearDown : "+err.Error(), stackTraceOf(err))
		}

		self += time.Since(start)
	}

	result.Time = self.Seconds()
}

func (s *Suite) ancestorSetUpFailed() bool {
	for p := s.parent; p != nil; p = p.parent {
		if p.SetUpFailed() {
			return true
		}
	}

	return false
}

func runHook(ctx context.Context, hook Hook) (err error) {
	if hook == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return hook(ctx)
}
