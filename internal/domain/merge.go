package domain

import (
	"errors"
	"fmt"
	"strings"

	m "trellis.dev/pkg/trellis/internal/model"
)

// ErrNothingToMerge is returned when fewer than two reports are given.
var ErrNothingToMerge = errors.New("at least two reports are needed to merge")

// MergeReports combines the reports of runs over the same tree, typically
// the shards of one run, into a single report. Suites are matched by full
// name; a case keeps the outcome of the last run that executed it.
func MergeReports(runID string, reports ...m.Report) (m.Report, error) {
	if len(reports) < 2 {
		return m.Report{}, ErrNothingToMerge
	}

	merged := m.Report{
		RunID:     runID,
		Name:      reports[0].Name,
		StartedAt: reports[0].StartedAt,
		Result:    reports[0].Result,
	}

	end := reports[0].StartedAt.Add(reports[0].Duration)

	var runErrors []string
	if reports[0].Error != "" {
		runErrors = append(runErrors, reports[0].Error)
	}

	for _, report := range reports[1:] {
		result, err := mergeResults(merged.Result, report.Result)
		if err != nil {
			return m.Report{}, fmt.Errorf("merge run %s: %w", report.RunID, err)
		}

		merged.Result = result

		if report.StartedAt.Before(merged.StartedAt) {
			merged.StartedAt = report.StartedAt
		}

		if e := report.StartedAt.Add(report.Duration); e.After(end) {
			end = e
		}

		if report.Error != "" {
			runErrors = append(runErrors, report.Error)
		}
	}

	merged.Duration = end.Sub(merged.StartedAt)
	merged.Error = strings.Join(runErrors, "; ")

	return merged, nil
}

func mergeResults(a, b m.Result) (m.Result, error) {
	switch {
	case a == nil:
		return b, nil
	case b == nil:
		return a, nil
	}

	if a.Info().FullName != b.Info().FullName {
		return nil, fmt.Errorf("cannot merge %s into %s", b.Info().FullName, a.Info().FullName)
	}

	sa, aSuite := a.(*m.SuiteResult)
	sb, bSuite := b.(*m.SuiteResult)

	if aSuite != bSuite {
		return nil, fmt.Errorf("%s is a suite in one report and a case in the other", a.Info().FullName)
	}

	if !aSuite {
		if a.Info().Executed && !b.Info().Executed {
			return a, nil
		}

		return b, nil
	}

	return mergeSuites(sa, sb)
}

func mergeSuites(a, b *m.SuiteResult) (*m.SuiteResult, error) {
	merged := &m.SuiteResult{ResultInfo: *mergeSuiteInfo(&a.ResultInfo, &b.ResultInfo)}
	merged.Time = a.Time + b.Time

	fromB := make(map[string]m.Result, len(b.Results))
	for _, child := range b.Results {
		fromB[child.Info().FullName] = child
	}

	for _, child := range a.Results {
		name := child.Info().FullName

		result, err := mergeResults(child, fromB[name])
		if err != nil {
			return nil, err
		}

		delete(fromB, name)
		merged.AddResult(result)
	}

	for _, child := range b.Results {
		if _, ok := fromB[child.Info().FullName]; ok {
			merged.AddResult(child)
		}
	}

	return merged, nil
}

// mergeSuiteInfo keeps a failure or error recorded by either run, then an
// executed outcome over one that did not run.
func mergeSuiteInfo(a, b *m.ResultInfo) *m.ResultInfo {
	bad := func(r *m.ResultInfo) bool { return r.State == m.StateFailure || r.State == m.StateError }

	info := *a

	switch {
	case bad(a):
	case bad(b):
		info = *b
	case b.Executed && !a.Executed:
		info = *b
	}

	return &info
}
