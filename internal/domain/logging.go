package domain

import (
	"context"
	"log/slog"
	"time"

	m "trellis.dev/pkg/trellis/internal/model"
)

// LoggingRunner is a proxy that logs every operation and every listener
// event of the runner behind it.
type LoggingRunner struct {
	*ProxyRunner

	logger *slog.Logger
}

var _ Runner = (*LoggingRunner)(nil)

// NewLoggingRunner wraps runner. A nil logger uses slog.Default().
func NewLoggingRunner(runner Runner, logger *slog.Logger) *LoggingRunner {
	if logger == nil {
		logger = slog.Default()
	}

	return &LoggingRunner{
		ProxyRunner: NewProxyRunner(runner),
		logger:      logger.With("runner", runner.ID()),
	}
}

// Load logs and forwards.
func (r *LoggingRunner) Load(ctx context.Context, spec LoadSpec) error {
	start := time.Now()
	err := r.ProxyRunner.Load(ctx, spec)

	if err != nil {
		r.logger.Error("Load failed", "spec", spec.String(), "error", err)
		return err
	}

	if test := r.Test(); test != nil {
		r.logger.Info("Loaded", "spec", spec.String(), "root", m.NameOf(r.ID(), test).String(),
			"tests", r.CountTestCases(m.Empty), "elapsed", time.Since(start))
	}

	return nil
}

// Unload logs and forwards.
func (r *LoggingRunner) Unload(ctx context.Context) error {
	err := r.ProxyRunner.Unload(ctx)
	r.logger.Debug("Unloaded", "error", err)

	return err
}

// Run logs and forwards, wrapping listener.
func (r *LoggingRunner) Run(ctx context.Context, listener m.Listener, filter m.Filter) (m.Result, error) {
	r.logger.Info("Run requested", "filter", filterString(filter))

	result, err := r.ProxyRunner.Run(ctx, r.wrap(listener), filter)
	if err != nil {
		r.logger.Warn("Run ended with error", "error", err)
	}

	return result, err
}

// BeginRun logs and forwards, wrapping listener.
func (r *LoggingRunner) BeginRun(ctx context.Context, listener m.Listener, filter m.Filter) error {
	r.logger.Info("Background run requested", "filter", filterString(filter))

	err := r.ProxyRunner.BeginRun(ctx, r.wrap(listener), filter)
	if err != nil {
		r.logger.Error("Background run refused", "error", err)
	}

	return err
}

// EndRun logs and forwards.
func (r *LoggingRunner) EndRun() (m.Result, error) {
	result, err := r.ProxyRunner.EndRun()
	r.logger.Debug("Run collected", "error", err)

	return result, err
}

// CancelRun logs and forwards.
func (r *LoggingRunner) CancelRun() {
	r.logger.Info("Cancel requested")
	r.ProxyRunner.CancelRun()
}

// Close logs and forwards.
func (r *LoggingRunner) Close() error {
	err := r.ProxyRunner.Close()
	r.logger.Debug("Closed", "error", err)

	return err
}

func (r *LoggingRunner) wrap(listener m.Listener) m.Listener {
	if listener == nil {
		listener = m.NullListener{}
	}

	return loggingListener{Listener: listener, logger: r.logger}
}

func filterString(filter m.Filter) string {
	if m.IsEmpty(filter) {
		return "*"
	}

	if s, ok := filter.(interface{ String() string }); ok {
		return s.String()
	}

	return "custom"
}

type loggingListener struct {
	m.Listener

	logger *slog.Logger
}

func (l loggingListener) RunStarted(name string, testCount int) {
	l.logger.Info("Run started", "name", name, "tests", testCount)
	l.Listener.RunStarted(name, testCount)
}

func (l loggingListener) RunFinished(result m.Result, err error) {
	if err != nil {
		l.logger.Warn("Run finished", "error", err)
	} else if result != nil {
		l.logger.Info("Run finished", "name", result.Info().FullName, "state", result.Info().State.String(),
			"failed", result.IsFailure(), "errored", result.IsError())
	}

	l.Listener.RunFinished(result, err)
}

func (l loggingListener) SuiteStarted(info m.TestInfo) {
	l.logger.Debug("Suite started", "suite", info.FullName, "tests", info.TestCount)
	l.Listener.SuiteStarted(info)
}

func (l loggingListener) SuiteFinished(result *m.SuiteResult) {
	l.logger.Debug("Suite finished", "suite", result.FullName, "state", result.State.String())
	l.Listener.SuiteFinished(result)
}

func (l loggingListener) TestStarted(info m.TestInfo) {
	l.logger.Debug("Test started", "test", info.FullName)
	l.Listener.TestStarted(info)
}

func (l loggingListener) TestFinished(result *m.CaseResult) {
	l.logger.Debug("Test finished", "test", result.FullName, "state", result.State.String(), "time", result.Time)
	l.Listener.TestFinished(result)
}

func (l loggingListener) UnhandledException(err error) {
	l.logger.Error("Unhandled exception", "error", err)
	l.Listener.UnhandledException(err)
}
