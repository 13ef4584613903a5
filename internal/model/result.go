package model

import (
	"fmt"
	"strings"
)

// ResultState is the outcome of a case or suite.
type ResultState int

const (
	// StateNotRun is the zero state: the node was reached but not executed.
	StateNotRun ResultState = iota
	// StateIgnored marks nodes skipped because they should not run.
	StateIgnored
	// StateSuccess marks a passing node.
	StateSuccess
	// StateFailure marks a failed assertion or a failed fixture setup.
	StateFailure
	// StateError marks an unexpected error or panic.
	StateError
)

var stateNames = [...]string{"not-run", "ignored", "success", "failure", "error"}

func (s ResultState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}

	return stateNames[s]
}

// ParseResultState is the inverse of ResultState.String.
func ParseResultState(value string) (ResultState, error) {
	for i, name := range stateNames {
		if strings.EqualFold(name, value) {
			return ResultState(i), nil
		}
	}

	return StateNotRun, fmt.Errorf("unknown result state %q", value)
}

// Result is a *CaseResult or a *SuiteResult.
type Result interface {
	Info() *ResultInfo
	IsSuite() bool
	// IsFailure and IsError report aggregate status; for suites they are
	// recomputed from the children.
	IsFailure() bool
	IsError() bool
}

// ResultInfo holds the fields shared by case and suite results.
type ResultInfo struct {
	Name       string
	FullName   string
	Executed   bool
	State      ResultState
	Message    string
	StackTrace string
	// Time is the elapsed wall-clock time of this node only, in seconds.
	Time float64
}

// Info returns the shared fields.
func (r *ResultInfo) Info() *ResultInfo { return r }

// IsSuccess reports a passing node.
func (r *ResultInfo) IsSuccess() bool { return r.State == StateSuccess }

// Success marks the node as executed and passing.
func (r *ResultInfo) Success() {
	r.Executed = true
	r.State = StateSuccess
}

// Failure marks the node as executed and failed.
func (r *ResultInfo) Failure(message, stackTrace string) {
	r.Executed = true
	r.State = StateFailure
	r.Message = message
	r.StackTrace = stackTrace
}

// Error marks the node as executed with an unexpected error.
func (r *ResultInfo) Error(message, stackTrace string) {
	r.Executed = true
	r.State = StateError
	r.Message = message
	r.StackTrace = stackTrace
}

// Ignore marks the node as not executed because it should not run.
func (r *ResultInfo) Ignore(reason string) {
	r.Executed = false
	r.State = StateIgnored
	r.Message = reason
}

// NotRun marks the node as not executed.
func (r *ResultInfo) NotRun(reason string) {
	r.Executed = false
	r.State = StateNotRun
	r.Message = reason
}

// CaseResult is the result of one test case.
type CaseResult struct {
	ResultInfo
	AssertCount int
}

// NewCaseResult creates an unexecuted result for c.
func NewCaseResult(c *Case) *CaseResult {
	return &CaseResult{ResultInfo: ResultInfo{Name: c.Name(), FullName: c.FullName()}}
}

// IsSuite is always false for a case result.
func (r *CaseResult) IsSuite() bool { return false }

// IsFailure reports a Failure outcome.
func (r *CaseResult) IsFailure() bool { return r.State == StateFailure }

// IsError reports an Error outcome.
func (r *CaseResult) IsError() bool { return r.State == StateError }

// SuiteResult is the result of a suite: its own outcome plus the results of
// the children that were visited, in order.
type SuiteResult struct {
	ResultInfo
	Results []Result
}

// NewSuiteResult creates an unexecuted result for s.
func NewSuiteResult(s *Suite) *SuiteResult {
	return &SuiteResult{ResultInfo: ResultInfo{Name: s.Name(), FullName: s.FullName()}}
}

// AddResult appends a child result.
func (r *SuiteResult) AddResult(child Result) {
	r.Results = append(r.Results, child)
}

// IsSuite is always true for a suite result.
func (r *SuiteResult) IsSuite() bool { return true }

// IsFailure reports a failure recorded on the suite or anywhere below it.
func (r *SuiteResult) IsFailure() bool {
	if r.State == StateFailure {
		return true
	}

	for _, child := range r.Results {
		if child.IsFailure() {
			return true
		}
	}

	return false
}

// IsError reports an error recorded on the suite or anywhere below it.
func (r *SuiteResult) IsError() bool {
	if r.State == StateError {
		return true
	}

	for _, child := range r.Results {
		if child.IsError() {
			return true
		}
	}

	return false
}

// FindResult returns the first result in tree whose full name or name equals name.
func FindResult(tree Result, name string) Result {
	if tree == nil {
		return nil
	}

	if info := tree.Info(); info.FullName == name || info.Name == name {
		return tree
	}

	suite, ok := tree.(*SuiteResult)
	if !ok {
		return nil
	}

	for _, child := range suite.Results {
		if found := FindResult(child, name); found != nil {
			return found
		}
	}

	return nil
}

// WalkCases calls fn for every case result in tree, in order.
func WalkCases(tree Result, fn func(*CaseResult)) {
	switch r := tree.(type) {
	case *CaseResult:
		fn(r)
	case *SuiteResult:
		for _, child := range r.Results {
			WalkCases(child, fn)
		}
	}
}
