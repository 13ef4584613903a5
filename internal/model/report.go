package model

import "time"

// Report is a finished run as persisted by the report store.
type Report struct {
	RunID     string
	Name      string
	StartedAt time.Time
	Duration  time.Duration
	Result    Result
	// Error is the run error reported by RunFinished, if any.
	Error string
}

// Summary holds the counts a summarizer derives from a result tree.
type Summary struct {
	Name          string
	ResultCount   int
	Failures      int
	Errors        int
	TestsNotRun   int
	SuitesNotRun  int
	SuiteFailures int
	// Time is the sum of case times in seconds.
	Time float64
}

// Success reports a run without failures or errors at any level.
func (s Summary) Success() bool {
	return s.Failures == 0 && s.Errors == 0 && s.SuiteFailures == 0
}

// Passed returns the number of executed cases that succeeded.
func (s Summary) Passed() int {
	return s.ResultCount - s.Failures - s.Errors
}
