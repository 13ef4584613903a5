package domain

import (
	m "trellis.dev/pkg/trellis/internal/model"
)

// ResultSummarizer walks a result tree once and exposes its counts.
type ResultSummarizer struct {
	summary m.Summary
}

// NewResultSummarizer summarizes result. A nil result yields zero counts.
func NewResultSummarizer(result m.Result) *ResultSummarizer {
	s := &ResultSummarizer{}

	if result != nil {
		s.summary.Name = result.Info().Name
		s.visit(result)
	}

	return s
}

// visit returns whether any leaf below result was executed.
func (s *ResultSummarizer) visit(result m.Result) bool {
	switch r := result.(type) {
	case *m.CaseResult:
		return s.visitCase(r)
	case *m.SuiteResult:
		return s.visitSuite(r)
	default:
		return false
	}
}

func (s *ResultSummarizer) visitCase(r *m.CaseResult) bool {
	if !r.Executed {
		s.summary.TestsNotRun++
		return false
	}

	s.summary.ResultCount++
	s.summary.Time += r.Time

	switch r.State {
	case m.StateFailure:
		s.summary.Failures++
	case m.StateError:
		s.summary.Errors++
	}

	return true
}

func (s *ResultSummarizer) visitSuite(r *m.SuiteResult) bool {
	if r.State == m.StateFailure || r.State == m.StateError {
		s.summary.SuiteFailures++
	}

	executed := false

	for _, child := range r.Results {
		if s.visit(child) {
			executed = true
		}
	}

	if !executed {
		s.summary.SuitesNotRun++
	}

	return executed
}

// Name returns the name of the summarized root.
func (s *ResultSummarizer) Name() string { return s.summary.Name }

// ResultCount returns the number of executed cases.
func (s *ResultSummarizer) ResultCount() int { return s.summary.ResultCount }

// Failures returns the number of cases that failed.
func (s *ResultSummarizer) Failures() int { return s.summary.Failures }

// Errors returns the number of cases that raised an unexpected error.
func (s *ResultSummarizer) Errors() int { return s.summary.Errors }

// TestsNotRun returns the number of cases that were reached but not executed.
func (s *ResultSummarizer) TestsNotRun() int { return s.summary.TestsNotRun }

// SuitesNotRun returns the number of suites none of whose cases executed.
func (s *ResultSummarizer) SuitesNotRun() int { return s.summary.SuitesNotRun }

// SuiteFailures returns the number of suites whose own setup or teardown failed.
func (s *ResultSummarizer) SuiteFailures() int { return s.summary.SuiteFailures }

// Time returns the summed case time in seconds.
func (s *ResultSummarizer) Time() float64 { return s.summary.Time }

// Success reports a run without failures or errors at any level.
func (s *ResultSummarizer) Success() bool { return s.summary.Success() }

// Summary returns the counts as a value.
func (s *ResultSummarizer) Summary() m.Summary { return s.summary }
