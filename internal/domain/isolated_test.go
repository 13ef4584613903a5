package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "trellis.dev/pkg/trellis/internal/model"
)

func newIsolated(loader Loader) *IsolatedRunner {
	return NewIsolatedRunner(func() (Runner, error) {
		return NewSimpleRunner(loader), nil
	})
}

func TestIsolatedRunner_Run(t *testing.T) {
	runner := newIsolated(newCatalog())
	t.Cleanup(func() { _ = runner.Close() })

	runner.Settings().Set(SettingStopOnFailure, false)

	require.NoError(t, runner.Load(context.Background(), LoadSpec{Sources: []string{"smoke"}}))
	assert.Equal(t, "smoke", runner.Test().FullName())
	assert.Equal(t, 5, runner.CountTestCases(m.Empty))
	assert.Equal(t, []string{"fast", "slow"}, runner.Categories())

	direct := NewSimpleRunner(newCatalog())
	require.NoError(t, direct.Load(context.Background(), LoadSpec{Sources: []string{"smoke"}}))

	var isolatedEvents, directEvents m.RecordingListener

	result, err := runner.Run(context.Background(), isolatedEvents.Listener(), nil)
	require.NoError(t, err)
	assert.Same(t, result, runner.Result())

	_, err = direct.Run(context.Background(), directEvents.Listener(), nil)
	require.NoError(t, err)

	assert.Equal(t, directEvents.Trace(), isolatedEvents.Trace())
	assert.False(t, runner.Running())
}

func TestIsolatedRunner_SettingsReachWorker(t *testing.T) {
	var seen bool

	loader := LoaderFunc(func(_ context.Context, _ string, settings *m.Settings) (m.Test, error) {
		seen = settings.GetBool("custom", false)
		return smokeTree(), nil
	})

	runner := newIsolated(loader)
	t.Cleanup(func() { _ = runner.Close() })

	runner.Settings().Set("custom", true)
	require.NoError(t, runner.Load(context.Background(), LoadSpec{Sources: []string{"x"}}))
	assert.True(t, seen)
}

func TestIsolatedRunner_Cancel(t *testing.T) {
	started := make(chan struct{})

	catalog := NewCatalog()
	catalog.Register("block", blockingTree(started, nil))

	runner := newIsolated(catalog)
	t.Cleanup(func() { _ = runner.Close() })

	require.NoError(t, runner.Load(context.Background(), LoadSpec{Sources: []string{"block"}}))
	require.NoError(t, runner.BeginRun(context.Background(), nil, nil))
	<-started

	assert.True(t, runner.Running())
	require.ErrorIs(t, runner.BeginRun(context.Background(), nil, nil), ErrAlreadyRunning)
	require.ErrorIs(t, runner.Load(context.Background(), LoadSpec{Sources: []string{"block"}}), ErrAlreadyRunning)

	runner.CancelRun()

	_, err := runner.EndRun()
	require.ErrorIs(t, err, ErrRunCancelled)
	assert.False(t, runner.Running())
}

func TestIsolatedRunner_AnswersQueriesDuringRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	catalog := NewCatalog()
	catalog.Register("block", blockingTree(started, release))

	runner := newIsolated(catalog)
	t.Cleanup(func() { _ = runner.Close() })

	require.NoError(t, runner.Load(context.Background(), LoadSpec{Sources: []string{"block"}}))
	require.NoError(t, runner.BeginRun(context.Background(), nil, nil))
	<-started

	counted := make(chan int, 1)
	go func() { counted <- runner.CountTestCases(m.Empty) }()

	select {
	case n := <-counted:
		assert.Equal(t, 2, n)
	case <-time.After(5 * time.Second):
		t.Fatal("CountTestCases blocked while the run was in progress")
	}

	assert.Equal(t, "block", runner.Test().FullName())
	assert.True(t, runner.Running())

	close(release)

	result, err := runner.EndRun()
	require.NoError(t, err)
	assert.True(t, result.Info().IsSuccess())
	assert.Same(t, result, runner.Result())
}

func TestIsolatedRunner_NotLoaded(t *testing.T) {
	runner := newIsolated(newCatalog())

	require.ErrorIs(t, runner.BeginRun(context.Background(), nil, nil), ErrNotLoaded)

	_, err := runner.EndRun()
	require.ErrorIs(t, err, ErrNoRunStarted)

	assert.Nil(t, runner.Test())
	assert.Zero(t, runner.CountTestCases(nil))
	require.NoError(t, runner.Unload(context.Background()))
	require.NoError(t, runner.Close())
}

func TestIsolatedRunner_FactoryError(t *testing.T) {
	boom := errors.New("no runner today")
	runner := NewIsolatedRunner(func() (Runner, error) { return nil, boom })

	require.ErrorIs(t, runner.Load(context.Background(), LoadSpec{Sources: []string{"x"}}), boom)
	require.NoError(t, runner.Close())
}

func TestIsolatedRunner_LoaderPanic(t *testing.T) {
	runner := newIsolated(LoaderFunc(func(context.Context, string, *m.Settings) (m.Test, error) {
		panic("loader exploded")
	}))
	t.Cleanup(func() { _ = runner.Close() })

	err := runner.Load(context.Background(), LoadSpec{Sources: []string{"x"}})

	var isolation *IsolationError
	require.ErrorAs(t, err, &isolation)
	assert.Equal(t, "load", isolation.Op)
	assert.Equal(t, "loader exploded", isolation.Value)
	assert.NotEmpty(t, isolation.Stack)
}

func TestIsolatedRunner_UnloadStopsWorker(t *testing.T) {
	runner := newIsolated(newCatalog())

	require.NoError(t, runner.Load(context.Background(), LoadSpec{Sources: []string{"alpha"}}))
	require.NoError(t, runner.Unload(context.Background()))

	assert.Nil(t, runner.Runner())
	require.ErrorIs(t, runner.BeginRun(context.Background(), nil, nil), ErrNotLoaded)

	require.NoError(t, runner.Load(context.Background(), LoadSpec{Sources: []string{"alpha"}}))

	result, err := runner.Run(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, result.Info().IsSuccess())
	require.NoError(t, runner.Close())
}

func TestEventPipe_FaultAfterClose(t *testing.T) {
	pipe := newEventPipe()
	pipe.listener().RunStarted("x", 1)
	pipe.close(errors.New("worker died"))
	pipe.close(nil)
	pipe.listener().TestStarted(m.TestInfo{FullName: "late"})

	var kinds []m.EventKind
	for e := range pipe.events {
		kinds = append(kinds, e.Kind)
	}

	assert.Equal(t, []m.EventKind{m.EventRunStarted, m.EventUnhandledException, m.EventRunFinished}, kinds)
}
