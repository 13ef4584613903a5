// Package metrics records run outcomes as Prometheus metrics.
package metrics

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	m "trellis.dev/pkg/trellis/internal/model"
)

// Namespace prefixes every metric name.
const Namespace = "trellis"

// Recorder is a listener counting cases, suites and run errors.
type Recorder struct {
	m.NullListener

	registry *prometheus.Registry

	mu    sync.Mutex
	runID string

	testsTotal    *prometheus.CounterVec
	testDuration  *prometheus.HistogramVec
	suitesTotal   *prometheus.CounterVec
	outputBytes   *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	runsTotal     *prometheus.CounterVec
	testsExpected *prometheus.GaugeVec
}

var _ m.Listener = (*Recorder)(nil)

// NewRecorder creates a Recorder with its own registry. runID labels every series.
func NewRecorder(runID string) *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		runID:    runID,

		testsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tests_total",
			Help:      "Count of finished test cases by state",
		}, []string{"run_id", "state"}),

		testDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "test_duration_seconds",
			Help:      "Duration of executed test cases",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"run_id"}),

		suitesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "suites_total",
			Help:      "Count of finished suites by state",
		}, []string{"run_id", "state"}),

		outputBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "output_bytes_total",
			Help:      "Bytes of captured test output by stream",
		}, []string{"run_id", "stream"}),

		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "unhandled_errors_total",
			Help:      "Count of errors raised outside any test case",
		}, []string{"run_id"}),

		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Count of finished runs by outcome",
		}, []string{"run_id", "outcome"}),

		testsExpected: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "tests_expected",
			Help:      "Number of test cases the run announced",
		}, []string{"run_id"}),
	}
}

// Registry exposes the collectors, e.g. for an HTTP handler or tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) id() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.runID
}

// SetRunID changes the run_id label of series recorded afterwards.
func (r *Recorder) SetRunID(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runID = runID
}

func (r *Recorder) RunStarted(_ string, testCount int) {
	r.testsExpected.WithLabelValues(r.id()).Set(float64(testCount))
}

func (r *Recorder) RunFinished(result m.Result, err error) {
	outcome := "success"

	switch {
	case err != nil:
		outcome = "aborted"
	case result == nil:
		outcome = "empty"
	case result.IsFailure() || result.IsError():
		outcome = "failure"
	}

	slog.Debug("metric inc", "m", "runs_total", "run_id", r.id(), "outcome", outcome)
	r.runsTotal.WithLabelValues(r.id(), outcome).Inc()
}

func (r *Recorder) SuiteFinished(result *m.SuiteResult) {
	r.suitesTotal.WithLabelValues(r.id(), result.State.String()).Inc()
}

func (r *Recorder) TestFinished(result *m.CaseResult) {
	r.testsTotal.WithLabelValues(r.id(), result.State.String()).Inc()

	if result.Executed {
		r.testDuration.WithLabelValues(r.id()).Observe(result.Time)
	}
}

func (r *Recorder) TestOutput(output m.TestOutput) {
	r.outputBytes.WithLabelValues(r.id(), output.Kind.String()).Add(float64(len(output.Text)))
}

func (r *Recorder) UnhandledException(err error) {
	slog.Debug("metric inc", "m", "unhandled_errors_total", "run_id", r.id(), "error", err)
	r.errorsTotal.WithLabelValues(r.id()).Inc()
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		slog.Error("failed to write metrics", "path", path, "error", err)
		return fmt.Errorf("write metrics: %w", err)
	}

	return nil
}
