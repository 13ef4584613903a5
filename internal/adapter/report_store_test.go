package adapter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "trellis.dev/pkg/trellis/internal/model"
)

func sampleReport(runID string) m.Report {
	passed := &m.CaseResult{AssertCount: 2}
	passed.Name, passed.FullName = "passes", "smoke.passes"
	passed.Success()
	passed.Time = 0.25

	failed := &m.CaseResult{}
	failed.Name, failed.FullName = "fails", "smoke.fails"
	failed.Failure("command exited with status 3", "")

	suite := &m.SuiteResult{}
	suite.Name, suite.FullName = "smoke", "smoke"
	suite.Success()
	suite.AddResult(passed)
	suite.AddResult(failed)

	return m.Report{
		RunID:     runID,
		Name:      "smoke",
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Result:    suite,
	}
}

func TestFileReportStore_SaveAndLoad(t *testing.T) {
	store := NewReportStore(t.TempDir())
	report := sampleReport("run-1")

	dir, err := store.SaveReport(report, nil)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "report.yaml"))
	assert.NoFileExists(t, filepath.Join(dir, "output.log"))

	loaded, err := store.LoadReport("run-1")
	require.NoError(t, err)
	assert.Equal(t, report, loaded)

	latest, err := store.LoadReport(LatestRun)
	require.NoError(t, err)
	assert.Equal(t, "run-1", latest.RunID)
}

func TestFileReportStore_AssignsRunID(t *testing.T) {
	store := NewReportStore(t.TempDir())

	dir, err := store.SaveReport(sampleReport(""), nil)
	require.NoError(t, err)

	runID := filepath.Base(dir)
	parsed, err := uuid.Parse(runID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	loaded, err := store.LoadReport("")
	require.NoError(t, err)
	assert.Equal(t, runID, loaded.RunID)
}

func TestFileReportStore_Output(t *testing.T) {
	store := NewReportStore(t.TempDir())

	_, err := store.SaveReport(sampleReport("run-1"), strings.NewReader("captured\n"))
	require.NoError(t, err)

	path, err := store.OutputPath(LatestRun)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "captured\n", string(data))
}

func TestFileReportStore_List(t *testing.T) {
	root := t.TempDir()
	store := NewReportStore(root)

	ids, err := store.ListReports()
	require.NoError(t, err)
	assert.Empty(t, ids)

	first, second := NewRunID(), NewRunID()

	_, err = store.SaveReport(sampleReport(second), nil)
	require.NoError(t, err)
	_, err = store.SaveReport(sampleReport(first), nil)
	require.NoError(t, err)

	require.NoError(t, os.Mkdir(filepath.Join(root, "stray"), 0o750))

	ids, err = store.ListReports()
	require.NoError(t, err)
	assert.Equal(t, []string{first, second}, ids)

	latest, err := store.LoadReport(LatestRun)
	require.NoError(t, err)
	assert.Equal(t, first, latest.RunID)
}

func TestFileReportStore_NotFound(t *testing.T) {
	store := NewReportStore(t.TempDir())

	_, err := store.LoadReport(LatestRun)
	require.ErrorIs(t, err, ErrReportNotFound)

	_, err = store.LoadReport("missing")
	require.ErrorIs(t, err, ErrReportNotFound)

	_, err = store.SaveReport(sampleReport("run-1"), nil)
	require.NoError(t, err)

	_, err = store.OutputPath("run-1")
	require.ErrorIs(t, err, ErrReportNotFound)
}

func TestFileReportStore_CorruptReport(t *testing.T) {
	root := t.TempDir()
	store := NewReportStore(root)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "bad"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad", "report.yaml"), []byte("result:\n  state: sideways\n"), 0o600))

	_, err := store.LoadReport("bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown result state "sideways"`)
}
