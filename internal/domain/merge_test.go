package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "trellis.dev/pkg/trellis/internal/model"
)

// shardReport builds a smoke report holding only the named cases, with
// failing names marked as failures.
func shardReport(runID string, started time.Time, cases []string, failing ...string) m.Report {
	root := &m.SuiteResult{}
	root.Name, root.FullName = "smoke", "smoke"
	root.Success()
	root.Time = 0.5

	for _, name := range cases {
		r := &m.CaseResult{}
		r.Name, r.FullName = name, "smoke."+name
		r.Success()

		for _, f := range failing {
			if f == name {
				r.Failure("boom", "")
			}
		}

		root.AddResult(r)
	}

	return m.Report{RunID: runID, Name: "smoke", StartedAt: started, Duration: time.Second, Result: root}
}

func fullNames(r m.Result) []string {
	var names []string

	for _, child := range r.(*m.SuiteResult).Results {
		names = append(names, child.Info().FullName)
	}

	return names
}

func TestMergeReports(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	first := shardReport("shard-0", start, []string{"a", "c"})
	second := shardReport("shard-1", start.Add(2*time.Second), []string{"b"}, "b")
	second.Error = "worker exited"

	merged, err := MergeReports("merged", first, second)
	require.NoError(t, err)

	assert.Equal(t, "merged", merged.RunID)
	assert.Equal(t, "smoke", merged.Name)
	assert.Equal(t, start, merged.StartedAt)
	assert.Equal(t, 3*time.Second, merged.Duration)
	assert.Equal(t, "worker exited", merged.Error)
	assert.Equal(t, []string{"smoke.a", "smoke.c", "smoke.b"}, fullNames(merged.Result))
	assert.InDelta(t, 1.0, merged.Result.Info().Time, 1e-9)

	summary := NewResultSummarizer(merged.Result).Summary()
	assert.Equal(t, 3, summary.ResultCount)
	assert.Equal(t, 1, summary.Failures)
}

func TestMergeReports_PrefersExecutedCases(t *testing.T) {
	first := shardReport("shard-0", time.Time{}, []string{"a", "b"})
	first.Result.(*m.SuiteResult).Results[1].Info().NotRun("other shard")

	second := shardReport("shard-1", time.Time{}, []string{"a", "b"}, "b")
	second.Result.(*m.SuiteResult).Results[0].Info().NotRun("other shard")

	merged, err := MergeReports("merged", first, second)
	require.NoError(t, err)

	results := merged.Result.(*m.SuiteResult).Results
	require.Len(t, results, 2)
	assert.Equal(t, m.StateSuccess, results[0].Info().State)
	assert.Equal(t, m.StateFailure, results[1].Info().State)
}

func TestMergeReports_SuiteFailureWins(t *testing.T) {
	first := shardReport("shard-0", time.Time{}, []string{"a"})

	second := shardReport("shard-1", time.Time{}, []string{"b"})
	second.Result.Info().Failure("setup failed", "")

	merged, err := MergeReports("merged", first, second)
	require.NoError(t, err)

	assert.Equal(t, m.StateFailure, merged.Result.Info().State)
	assert.Equal(t, "setup failed", merged.Result.Info().Message)
	assert.Equal(t, "success", first.Result.Info().State.String())
}

func TestMergeReports_Errors(t *testing.T) {
	other := shardReport("other", time.Time{}, []string{"a"})
	other.Result.Info().FullName = "other"

	caseRoot := m.Report{RunID: "case", Result: &m.CaseResult{ResultInfo: m.ResultInfo{FullName: "smoke"}}}

	tests := []struct {
		name    string
		reports []m.Report
		wantErr string
	}{
		{name: "single report", reports: []m.Report{other}, wantErr: ErrNothingToMerge.Error()},
		{name: "different trees", reports: []m.Report{shardReport("s", time.Time{}, nil), other}, wantErr: "cannot merge other into smoke"},
		{name: "suite and case", reports: []m.Report{shardReport("s", time.Time{}, nil), caseRoot}, wantErr: "smoke is a suite in one report and a case in the other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MergeReports("merged", tt.reports...)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
