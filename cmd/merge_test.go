package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"trellis.dev/pkg/trellis/internal/adapter"
	"trellis.dev/pkg/trellis/internal/domain"
	m "trellis.dev/pkg/trellis/internal/model"
)

func TestMergeCmd(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		match func(domain.MergeArgs) bool
	}{
		{
			name: "default reports directory",
			args: []string{"merge", "run-1", "run-2"},
			match: func(args domain.MergeArgs) bool {
				return args.Reports == defaultReportsDir && assert.ObjectsAreEqual([]string{"run-1", "run-2"}, args.RunIDs)
			},
		},
		{
			name: "root output flag is passed through",
			args: []string{"merge", "--output", "./reports-dir", "run-1", "run-2", "run-3"},
			match: func(args domain.MergeArgs) bool {
				return args.Reports == "./reports-dir" && len(args.RunIDs) == 3
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockWorkflow := useWorkflow(t)
			cmd, _ := newTestRoot(t, newMergeCmd)

			mockWorkflow.On("Merge", mock.Anything, mock.MatchedBy(tt.match)).Return(m.Summary{}, nil).Once()

			cmd.SetArgs(tt.args)
			require.NoError(t, cmd.Execute())
		})
	}
}

func TestMergeCmd_NeedsTwoRuns(t *testing.T) {
	useWorkflow(t)
	cmd, _ := newTestRoot(t, newMergeCmd)

	cmd.SetArgs([]string{"merge", "run-1"})
	require.Error(t, cmd.Execute())
}

func TestMergeCmd_MergesShards(t *testing.T) {
	reports := t.TempDir()

	for _, shard := range []string{"0/2", "1/2"} {
		run, _ := newTestRoot(t, newRunCmd)
		run.SetArgs([]string{"run", "--tui=false", "-o", reports, "--shard", shard, "../examples/tree/api.yaml"})
		require.NoError(t, run.Execute())
	}

	runIDs, err := adapter.NewReportStore(reports).ListReports()
	require.NoError(t, err)
	require.Len(t, runIDs, 2)

	merge, out := newTestRoot(t, newMergeCmd)
	merge.SetArgs(append([]string{"merge", "-o", reports}, runIDs...))
	require.NoError(t, merge.Execute())

	assert.Contains(t, out.String(), "Tests run: 2, Passed: 2")
}
