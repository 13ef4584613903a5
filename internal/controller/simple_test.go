package controller

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "trellis.dev/pkg/trellis/internal/model"
)

func newTestUI(t *testing.T, options ...StartOption) (*SimpleUI, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer

	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	ui := NewSimpleUI(cmd)
	require.NoError(t, ui.Start(context.Background(), options...))

	return ui, &buf
}

func caseResult(fullName string, mark func(*m.CaseResult)) *m.CaseResult {
	r := &m.CaseResult{}
	r.FullName = fullName
	r.Name = fullName[strings.LastIndex(fullName, ".")+1:]
	mark(r)

	return r
}

func replayRun(listener m.Listener) {
	listener.RunStarted("smoke", 3)
	listener.SuiteStarted(m.TestInfo{Name: "smoke", FullName: "smoke", IsSuite: true})

	listener.TestStarted(m.TestInfo{Name: "passes", FullName: "smoke.passes"})
	listener.TestOutput(m.TestOutput{Test: "smoke.passes", Kind: m.OutputStdout, Text: "hello\nworld\n"})
	listener.TestFinished(caseResult("smoke.passes", func(r *m.CaseResult) {
		r.Success()
		r.Time = 0.25
	}))

	listener.TestFinished(caseResult("smoke.fails", func(r *m.CaseResult) {
		r.Failure("command exited with status 3", "")
	}))
	listener.TestFinished(caseResult("smoke.ignored", func(r *m.CaseResult) {
		r.Ignore("not ready yet")
	}))
	listener.TestFinished(caseResult("smoke.errored", func(r *m.CaseResult) {
		r.Error("boom\nline2", "")
	}))

	suite := &m.SuiteResult{}
	suite.Name, suite.FullName = "smoke", "smoke"
	suite.Failure("SetUp failed", "")
	listener.SuiteFinished(suite)

	listener.UnhandledException(errors.New("disk full"))
	listener.RunFinished(nil, errors.New("run cancelled"))
}

func TestSimpleUI_Listener(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
	}{
		{name: "run_verbose", verbose: true},
		{name: "run_quiet", verbose: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ui, buf := newTestUI(t, WithRunMode(), WithVerbose(tt.verbose))

			replayRun(ui)

			g := goldie.New(t,
				goldie.WithFixtureDir("testdata/golden"),
				goldie.WithNameSuffix(".golden"),
			)
			g.Assert(t, tt.name, buf.Bytes())
		})
	}
}

func sampleTree() *m.Suite {
	pass := func(*m.T) error { return nil }

	api := m.NewFixture("api", m.WithCategories("fast"))
	api.MustAdd(
		m.NewCase("health", pass, m.WithPath("api")),
		m.NewCase("slow", pass, m.WithPath("api"), m.WithExplicit()),
	)

	db := m.NewFixture("db", m.WithIgnore("no database"))
	db.MustAdd(m.NewCase("select", pass, m.WithPath("db")))

	root := m.NewSuite("plans")
	root.MustAdd(api, db)

	return root
}

func TestSimpleUI_DisplayTests(t *testing.T) {
	tests := []struct {
		name       string
		filter     m.Filter
		verbose    bool
		want       []string
		notWant    []string
		wantFooter string
	}{
		{
			name:       "all suites",
			filter:     m.Empty,
			want:       []string{"plans", "api", "fast", "db", "ignored: no database"},
			notWant:    []string{"health"},
			wantFooter: "total suites 3",
		},
		{
			name:       "with cases",
			filter:     m.Empty,
			verbose:    true,
			want:       []string{"health", "slow", "explicit"},
			wantFooter: "total suites 3",
		},
		{
			name:       "category filter skips unselected suites",
			filter:     m.NewCategoryFilter("fast"),
			want:       []string{"api"},
			notWant:    []string{"db", "health"},
			wantFooter: "total suites 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ui, buf := newTestUI(t, WithListMode(), WithVerbose(tt.verbose))

			require.NoError(t, ui.DisplayTests(context.Background(), sampleTree(), tt.filter))

			out := buf.String()
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}

			for _, notWant := range tt.notWant {
				assert.NotContains(t, out, notWant)
			}

			assert.Contains(t, strings.ToLower(out), tt.wantFooter)
		})
	}
}

func TestSimpleUI_DisplaySummary(t *testing.T) {
	failed := caseResult("smoke.fails", func(r *m.CaseResult) {
		r.Failure("command exited with status 3\nmore detail", "")
	})
	suite := &m.SuiteResult{}
	suite.Name, suite.FullName = "smoke", "smoke"
	suite.Success()
	suite.AddResult(failed)

	tests := []struct {
		name    string
		report  m.Report
		summary m.Summary
		want    []string
		notWant []string
	}{
		{
			name: "failed run",
			report: m.Report{
				RunID:     "run-1",
				StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
				Duration:  1500 * time.Millisecond,
				Result:    suite,
			},
			summary: m.Summary{ResultCount: 2, Failures: 1, TestsNotRun: 1, Time: 0.5},
			want: []string{
				"Run run-1 started 2026-03-01 12:00:00 took 1.5s",
				"smoke.fails",
				"command exited with status 3",
				"Tests run: 2, Passed: 1, Failures: 1, Errors: 0, Not run: 1, Time: 0.500s",
				"Result: FAILED",
			},
			notWant: []string{"more detail", "Suites not run"},
		},
		{
			name:    "passed run",
			report:  m.Report{},
			summary: m.Summary{ResultCount: 1},
			want:    []string{"Tests run: 1, Passed: 1", "Result: PASSED"},
			notWant: []string{"Run "},
		},
		{
			name:    "run error fails the run",
			report:  m.Report{Error: "run cancelled"},
			summary: m.Summary{SuitesNotRun: 2},
			want:    []string{"Suites not run: 2, Suite failures: 0", "Run error: run cancelled", "Result: FAILED"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ui, buf := newTestUI(t, WithViewMode())

			require.NoError(t, ui.DisplaySummary(context.Background(), tt.report, tt.summary))

			out := buf.String()
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}

			for _, notWant := range tt.notWant {
				assert.NotContains(t, out, notWant)
			}
		})
	}
}

func TestSimpleUI_DisplayComparison(t *testing.T) {
	ui, buf := newTestUI(t, WithViewMode())

	require.NoError(t, ui.DisplayComparison(context.Background(), ""))
	require.NoError(t, ui.DisplayComparison(context.Background(), "-a\n+b\n"))

	assert.Equal(t, "No differences\n-a\n+b\n", buf.String())
}

func TestSimpleUI_CancelledContext(t *testing.T) {
	ui, buf := newTestUI(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, ui.Start(ctx), context.Canceled)
	require.ErrorIs(t, ui.DisplayTests(ctx, sampleTree(), m.Empty), context.Canceled)
	ui.DisplayLoadError(ctx, errors.New("ignored"))
	assert.Empty(t, buf.String())

	ui.DisplayLoadError(context.Background(), errors.New("no plan files"))
	assert.Equal(t, "Load error: no plan files\n", buf.String())
}
