package adapter

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "trellis.dev/pkg/trellis/internal/model"
)

func TestOutputRecorder(t *testing.T) {
	recorder, err := NewOutputRecorder(t.TempDir())
	require.NoError(t, err)

	var listener m.Listener = recorder

	listener.TestStarted(m.TestInfo{FullName: "smoke.passes"})
	listener.TestOutput(m.TestOutput{Test: "smoke.passes", Kind: m.OutputStdout, Text: "one\ntwo\n"})
	listener.TestOutput(m.TestOutput{Test: "smoke.fails", Kind: m.OutputStderr, Text: "partial"})
	listener.TestOutput(m.TestOutput{Test: "smoke.fails", Kind: m.OutputLog, Text: "logged\n"})

	require.Equal(t, uint64(3), recorder.Len())

	var out bytes.Buffer

	n, err := recorder.WriteTo(&out)
	require.NoError(t, err)

	want := "[smoke.passes] stdout: one\n" +
		"[smoke.passes] stdout: two\n" +
		"[smoke.fails] stderr: partial\n" +
		"[smoke.fails] log: logged\n"
	assert.Equal(t, want, out.String())
	assert.Equal(t, int64(len(want)), n)

	path := recorder.spool.Path()
	require.NoError(t, recorder.Close())

	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
