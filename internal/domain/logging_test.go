package domain

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "trellis.dev/pkg/trellis/internal/model"
)

func TestLoggingRunner(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	inner := NewSimpleRunner(newCatalog())
	runner := NewLoggingRunner(inner, logger)

	require.NoError(t, runner.Load(context.Background(), LoadSpec{Sources: []string{"smoke"}}))

	var events m.RecordingListener

	_, err := runner.Run(context.Background(), events.Listener(), m.NewCategoryFilter("fast"))
	require.NoError(t, err)
	require.NoError(t, runner.Close())

	out := buf.String()
	for _, want := range []string{
		"msg=Loaded",
		"spec=smoke",
		`msg="Run requested"`,
		"filter=category(fast)",
		`msg="Run started"`,
		`msg="Test finished" runner=`,
		"test=smoke.fails state=failure",
		`msg="Run finished"`,
		"msg=Closed",
	} {
		assert.Contains(t, out, want)
	}

	assert.Contains(t, events.Trace(), "TestFinished:smoke.passes")
}

func TestLoggingRunner_LoadFailure(t *testing.T) {
	var buf bytes.Buffer

	runner := NewLoggingRunner(NewSimpleRunner(newCatalog()), slog.New(slog.NewTextHandler(&buf, nil)))

	err := runner.Load(context.Background(), LoadSpec{Sources: []string{"nope"}})
	require.ErrorIs(t, err, ErrTestNotFound)
	assert.Contains(t, buf.String(), `msg="Load failed"`)
}

func TestFilterString(t *testing.T) {
	assert.Equal(t, "*", filterString(nil))
	assert.Equal(t, "*", filterString(m.Empty))
	assert.Equal(t, "name(a)", filterString(m.NewNameFilter("a")))
}
