package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "trellis.dev/pkg/trellis/internal/model"
)

func reportOf(runID string, states map[string]m.ResultState) m.Report {
	root := &m.SuiteResult{}
	root.Name, root.FullName = "smoke", "smoke"
	root.Success()

	for _, name := range []string{"a", "b", "c"} {
		r := &m.CaseResult{}
		r.Name, r.FullName = name, "smoke."+name

		switch states[name] {
		case m.StateFailure:
			r.Failure("exit 1\nstderr tail", "")
		case m.StateIgnored:
			r.Ignore("later")
		default:
			r.Success()
		}

		root.AddResult(r)
	}

	return m.Report{RunID: runID, Name: "smoke", Result: root}
}

func TestDiffReports(t *testing.T) {
	tests := []struct {
		name   string
		before m.Report
		after  m.Report
		want   string
	}{
		{
			name:   "same outcomes",
			before: reportOf("run-1", nil),
			after:  reportOf("run-2", nil),
			want:   "",
		},
		{
			name:   "case started failing",
			before: reportOf("run-1", nil),
			after:  reportOf("run-2", map[string]m.ResultState{"b": m.StateFailure}),
			want: "--- run-1\n+++ run-2\n@@ -1,3 +1,3 @@\n" +
				" smoke.a: success\n" +
				"-smoke.b: success\n" +
				"+smoke.b: failure (exit 1)\n" +
				" smoke.c: success\n",
		},
		{
			name:   "labels fall back to names",
			before: m.Report{Name: "old", Result: reportOf("", nil).Result},
			after:  m.Report{Name: "new", Result: reportOf("", map[string]m.ResultState{"a": m.StateIgnored}).Result},
			want: "--- old\n+++ new\n@@ -1,2 +1,2 @@\n" +
				"-smoke.a: success\n" +
				"+smoke.a: ignored\n" +
				" smoke.b: success\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiffReports(tt.before, tt.after)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
