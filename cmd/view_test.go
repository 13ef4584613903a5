package cmd

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"trellis.dev/pkg/trellis/internal/adapter"
	"trellis.dev/pkg/trellis/internal/domain"
)

func TestViewCmd(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		match func(domain.ViewArgs) bool
	}{
		{
			name: "latest report in the default directory",
			args: []string{"view"},
			match: func(args domain.ViewArgs) bool {
				return args.Reports == defaultReportsDir && args.RunID == adapter.LatestRun && args.Compare == ""
			},
		},
		{
			name: "root output flag is passed through",
			args: []string{"view", "--output", "./reports-dir"},
			match: func(args domain.ViewArgs) bool {
				return args.Reports == "./reports-dir"
			},
		},
		{
			name: "run and compare",
			args: []string{"view", "--run", "run-2", "--compare", "run-1"},
			match: func(args domain.ViewArgs) bool {
				return args.RunID == "run-2" && args.Compare == "run-1"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockWorkflow := useWorkflow(t)
			cmd, _ := newTestRoot(t, newViewCmd)

			mockWorkflow.On("View", mock.Anything, mock.MatchedBy(tt.match)).Return(nil).Once()

			cmd.SetArgs(tt.args)
			require.NoError(t, cmd.Execute())
		})
	}
}

func TestViewCmd_PositionalArgsAreRejected(t *testing.T) {
	useWorkflow(t)
	cmd, _ := newTestRoot(t, newViewCmd)

	cmd.SetArgs([]string{"view", "./custom-reports"})
	require.Error(t, cmd.Execute())
}

func TestViewCmd_ShowsSavedRun(t *testing.T) {
	reports := t.TempDir()

	run, _ := newTestRoot(t, newRunCmd)
	run.SetArgs([]string{"run", "--tui=false", "-o", reports, "../examples/tree/api.yaml"})
	require.NoError(t, run.Execute())

	view, out := newTestRoot(t, newViewCmd)
	view.SetArgs([]string{"view", "-o", reports})
	require.NoError(t, view.Execute())

	require.Contains(t, out.String(), "Tests run: 2, Passed: 2")
}
