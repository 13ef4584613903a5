package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"trellis.dev/pkg/trellis/internal/domain"
)

func TestListCmd_PassesSelection(t *testing.T) {
	mockWorkflow := useWorkflow(t)
	cmd, _ := newTestRoot(t, newListCmd)

	mockWorkflow.On("List", mock.Anything, mock.MatchedBy(func(args domain.ListArgs) bool {
		return assert.ObjectsAreEqual([]string{"plans"}, args.Sources) &&
			assert.ObjectsAreEqual([]string{"fast"}, args.Categories) &&
			args.Verbose
	})).Return(nil).Once()

	cmd.SetArgs([]string{"list", "-c", "fast", "-v", "plans"})
	require.NoError(t, cmd.Execute())
}

func TestListCmd_ListsPlans(t *testing.T) {
	cmd, out := newTestRoot(t, newListCmd)
	cmd.SetArgs([]string{"list", "-v", "../examples/tree"})

	require.NoError(t, cmd.Execute())

	for _, want := range []string{"tree", "api", "health", "migrations", "slow", "select"} {
		assert.Contains(t, out.String(), want)
	}
}

func TestListCmd_MissingSource(t *testing.T) {
	cmd, out := newTestRoot(t, newListCmd)
	cmd.SetArgs([]string{"list", "../examples/does-not-exist"})

	require.ErrorIs(t, cmd.Execute(), domain.ErrTestNotFound)
	assert.Contains(t, out.String(), "Load error")
}
