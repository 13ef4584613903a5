package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trellis.dev/pkg/trellis/internal/adapter"
	"trellis.dev/pkg/trellis/internal/controller"
	"trellis.dev/pkg/trellis/internal/metrics"
	m "trellis.dev/pkg/trellis/internal/model"
)

// SelectArgs chooses what to load and which cases to select.
type SelectArgs struct {
	Sources           []string
	Name              string
	TestName          string
	Names             []string
	Categories        []string
	ExcludeCategories []string
	ShardIndex        int
	TotalShardCount   int
	Verbose           bool
}

// RunArgs contains the arguments for running tests.
type RunArgs struct {
	SelectArgs
	Isolated      bool
	Timeout       time.Duration
	CaseTimeout   time.Duration
	StopOnFailure bool
	Reports       string
	SaveReport    bool
	MetricsFile   string
}

// ListArgs contains the arguments for listing tests.
type ListArgs struct {
	SelectArgs
}

// ViewArgs contains the arguments for viewing a stored report.
type ViewArgs struct {
	Reports string
	RunID   string
	// Compare is the run the viewed report is diffed against, if set.
	Compare string
}

// MergeArgs contains the arguments for merging stored reports.
type MergeArgs struct {
	Reports string
	RunIDs  []string
}

// Workflow drives the CLI commands.
type Workflow interface {
	Run(ctx context.Context, args RunArgs) (m.Summary, error)
	List(ctx context.Context, args ListArgs) error
	View(ctx context.Context, args ViewArgs) error
	Merge(ctx context.Context, args MergeArgs) (m.Summary, error)
}

// ReportStoreFactory opens the report store kept in a directory.
type ReportStoreFactory func(dir string) adapter.ReportStore

type workflow struct {
	Loader
	ui        controller.UI
	openStore ReportStoreFactory
	logger    *slog.Logger
}

// NewWorkflow creates a Workflow loading trees with loader and displaying on ui.
func NewWorkflow(loader Loader, ui controller.UI, openStore ReportStoreFactory) Workflow {
	return &workflow{
		Loader:    loader,
		ui:        ui,
		openStore: openStore,
		logger:    slog.Default(),
	}
}

func (w *workflow) newRunner(isolated bool) Runner {
	var runner Runner

	if isolated {
		runner = NewIsolatedRunner(func() (Runner, error) {
			return NewSimpleRunner(w.Loader), nil
		})
	} else {
		runner = NewSimpleRunner(w.Loader)
	}

	return NewLoggingRunner(runner, w.logger)
}

// load creates a runner, loads args into it and builds the filter.
func (w *workflow) load(ctx context.Context, runner Runner, args SelectArgs) (m.Filter, error) {
	err := runner.Load(ctx, LoadSpec{Name: args.Name, Sources: args.Sources, TestName: args.TestName})
	if err != nil {
		w.ui.DisplayLoadError(ctx, err)
		return nil, err
	}

	filter := BuildFilter(args.Names, args.Categories, args.ExcludeCategories)

	if args.TotalShardCount > 1 {
		shard, err := NewShardFilter(runner.Test(), args.ShardIndex, args.TotalShardCount)
		if err != nil {
			return nil, err
		}

		if m.IsEmpty(filter) {
			filter = shard
		} else {
			filter = m.AndFilter{Filters: []m.Filter{filter, shard}}
		}
	}

	return filter, nil
}

func (w *workflow) Run(ctx context.Context, args RunArgs) (m.Summary, error) {
	runner := w.newRunner(args.Isolated)

	defer func() {
		if err := runner.Close(); err != nil {
			slog.Error("failed to close runner", "error", err)
		}
	}()

	settings := runner.Settings()
	if args.Timeout > 0 {
		settings.Set(SettingRunTimeout, args.Timeout)
	}

	if args.CaseTimeout > 0 {
		settings.Set(adapter.SettingCaseTimeout, args.CaseTimeout)
	}

	settings.Set(SettingStopOnFailure, args.StopOnFailure)

	filter, err := w.load(ctx, runner, args.SelectArgs)
	if err != nil {
		return m.Summary{}, err
	}

	runID := adapter.NewRunID()
	recorder := metrics.NewRecorder(runID)
	listeners := []m.Listener{w.ui, recorder}

	var output *adapter.OutputRecorder

	if args.SaveReport {
		output, err = adapter.NewOutputRecorder("")
		if err != nil {
			return m.Summary{}, fmt.Errorf("capture output: %w", err)
		}

		defer func() {
			if err := output.Close(); err != nil {
				slog.Error("failed to remove captured output", "error", err)
			}
		}()

		listeners = append(listeners, output)
	}

	if err := w.ui.Start(ctx,
		controller.WithRunMode(),
		controller.WithVerbose(args.Verbose),
		controller.WithInterrupt(runner.CancelRun),
	); err != nil {
		return m.Summary{}, err
	}

	name := runner.Test().FullName()
	started := time.Now()

	if err := runner.BeginRun(ctx, m.Listeners(listeners...), filter); err != nil {
		w.ui.Close(ctx)
		return m.Summary{}, err
	}

	result, runErr := runner.EndRun()

	w.ui.Close(context.WithoutCancel(ctx))

	report := m.Report{
		RunID:     runID,
		Name:      name,
		StartedAt: started,
		Duration:  time.Since(started),
		Result:    result,
	}
	if runErr != nil {
		report.Error = runErr.Error()
	}

	summary := NewResultSummarizer(result).Summary()

	if args.SaveReport {
		dir, err := w.openStore(args.Reports).SaveReport(report, output)
		if err != nil {
			return summary, fmt.Errorf("save report: %w", err)
		}

		slog.Info("Saved report", "run", runID, "path", dir)
	}

	if args.MetricsFile != "" {
		if err := recorder.WriteTextfile(args.MetricsFile); err != nil {
			return summary, err
		}
	}

	if err := w.ui.DisplaySummary(context.WithoutCancel(ctx), report, summary); err != nil {
		return summary, err
	}

	switch {
	case runErr != nil:
		return summary, runErr
	case !summary.Success():
		return summary, ErrTestsFailed
	default:
		return summary, nil
	}
}

func (w *workflow) List(ctx context.Context, args ListArgs) error {
	runner := w.newRunner(false)

	defer func() {
		if err := runner.Close(); err != nil {
			slog.Error("failed to close runner", "error", err)
		}
	}()

	filter, err := w.load(ctx, runner, args.SelectArgs)
	if err != nil {
		return err
	}

	if err := w.ui.Start(ctx, controller.WithListMode(), controller.WithVerbose(args.Verbose)); err != nil {
		return err
	}
	defer w.ui.Close(ctx)

	return w.ui.DisplayTests(ctx, runner.Test(), filter)
}

func (w *workflow) View(ctx context.Context, args ViewArgs) error {
	store := w.openStore(args.Reports)

	report, err := store.LoadReport(args.RunID)
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}

	if err := w.ui.Start(ctx, controller.WithViewMode()); err != nil {
		return err
	}
	defer w.ui.Close(ctx)

	if err := w.ui.DisplaySummary(ctx, report, NewResultSummarizer(report.Result).Summary()); err != nil {
		return err
	}

	if args.Compare == "" {
		return nil
	}

	previous, err := store.LoadReport(args.Compare)
	if err != nil {
		return fmt.Errorf("load report to compare: %w", err)
	}

	diff, err := DiffReports(previous, report)
	if err != nil {
		return err
	}

	return w.ui.DisplayComparison(ctx, diff)
}

func (w *workflow) Merge(ctx context.Context, args MergeArgs) (m.Summary, error) {
	store := w.openStore(args.Reports)

	reports := make([]m.Report, 0, len(args.RunIDs))

	for _, runID := range args.RunIDs {
		report, err := store.LoadReport(runID)
		if err != nil {
			return m.Summary{}, fmt.Errorf("load report %s: %w", runID, err)
		}

		reports = append(reports, report)
	}

	merged, err := MergeReports(adapter.NewRunID(), reports...)
	if err != nil {
		return m.Summary{}, err
	}

	dir, err := store.SaveReport(merged, nil)
	if err != nil {
		return m.Summary{}, fmt.Errorf("save report: %w", err)
	}

	slog.Info("Saved merged report", "run", merged.RunID, "path", dir, "from", args.RunIDs)

	summary := NewResultSummarizer(merged.Result).Summary()

	if err := w.ui.Start(ctx, controller.WithViewMode()); err != nil {
		return summary, err
	}
	defer w.ui.Close(ctx)

	if err := w.ui.DisplaySummary(ctx, merged, summary); err != nil {
		return summary, err
	}

	if !summary.Success() {
		return summary, ErrTestsFailed
	}

	return summary, nil
}

// IsTestFailure reports whether err only says that tests failed, as opposed
// to the run itself going wrong.
func IsTestFailure(err error) bool {
	return errors.Is(err, ErrTestsFailed)
}
