package controller

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "trellis.dev/pkg/trellis/internal/model"
)

// SimpleUI implements UI by printing plain lines to the command output.
type SimpleUI struct {
	cmd    *cobra.Command
	config StartConfig
}

var _ UI = (*SimpleUI)(nil)

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.config = newStartConfig(options)

	return nil
}

// Close finalizes the UI.
func (s *SimpleUI) Close(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
}

// Wait blocks until the UI is closed (no-op for SimpleUI).
func (s *SimpleUI) Wait(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
}

func (s *SimpleUI) RunStarted(name string, testCount int) {
	s.printf("Running %s (%d %s)\n", name, testCount, plural(testCount, "test", "tests"))
}

func (s *SimpleUI) RunFinished(_ m.Result, err error) {
	if err != nil {
		s.printf("Run aborted: %v\n", err)
	}
}

func (s *SimpleUI) SuiteStarted(m.TestInfo) {}

func (s *SimpleUI) SuiteFinished(result *m.SuiteResult) {
	switch result.State {
	case m.StateFailure:
		s.printf("FAIL %s: %s\n", result.FullName, indent(result.Message))
	case m.StateError:
		s.printf("ERROR %s: %s\n", result.FullName, indent(result.Message))
	default:
	}
}

func (s *SimpleUI) TestStarted(m.TestInfo) {}

func (s *SimpleUI) TestFinished(result *m.CaseResult) {
	switch result.State {
	case m.StateFailure:
		s.printf("FAIL %s: %s\n", result.FullName, indent(result.Message))
	case m.StateError:
		s.printf("ERROR %s: %s\n", result.FullName, indent(result.Message))
	case m.StateSuccess:
		if s.config.verbose {
			s.printf("PASS %s (%.3fs)\n", result.FullName, result.Time)
		}
	case m.StateIgnored:
		if s.config.verbose {
			s.printf("IGNORED %s: %s\n", result.FullName, result.Message)
		}
	default:
		if s.config.verbose {
			s.printf("NOT RUN %s\n", result.FullName)
		}
	}
}

func (s *SimpleUI) TestOutput(output m.TestOutput) {
	if !s.config.verbose {
		return
	}

	for _, line := range strings.Split(strings.TrimRight(output.Text, "\n"), "\n") {
		s.printf("  %s | %s\n", output.Kind, line)
	}
}

func (s *SimpleUI) UnhandledException(err error) {
	s.printf("Unhandled error: %v\n", err)
}

// DisplayTests prints the suites of tree with the number of cases filter selects.
func (s *SimpleUI) DisplayTests(ctx context.Context, tree m.Test, filter m.Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("\n%s", renderTestsTable(tree, filter, s.config.verbose))

	return nil
}

func renderTestsTable(tree m.Test, filter m.Filter, withCases bool) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Test", "Selected", "Cases", "Categories", "Notes"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
	})

	suites := 0

	var walk func(test m.Test, depth int)

	walk = func(test m.Test, depth int) {
		selected := test.CountTestCases(filter)
		if !m.IsEmpty(filter) && selected == 0 {
			return
		}

		if !test.IsSuite() && !withCases {
			return
		}

		if test.IsSuite() {
			suites++
		}

		table.Append([]string{
			strings.Repeat("  ", depth) + test.Name(),
			fmt.Sprintf("%d", selected),
			fmt.Sprintf("%d", test.TestCount()),
			strings.Join(test.Categories(), ","),
			notes(test),
		})

		if suite, ok := test.(*m.Suite); ok {
			for _, child := range suite.Tests() {
				walk(child, depth+1)
			}
		}
	}

	walk(tree, 0)

	table.SetFooter([]string{
		fmt.Sprintf("Total Suites %d", suites),
		fmt.Sprintf("%d", tree.CountTestCases(filter)),
		fmt.Sprintf("%d", tree.TestCount()),
		"", "",
	})

	table.Render()

	return tableBuffer.String()
}

func notes(test m.Test) string {
	var out []string

	if test.IsExplicit() {
		out = append(out, "explicit")
	}

	if !test.ShouldRun() {
		out = append(out, "ignored: "+test.IgnoreReason())
	}

	return strings.Join(out, "; ")
}

// DisplaySummary prints the problems of a finished run followed by its counts.
func (s *SimpleUI) DisplaySummary(ctx context.Context, report m.Report, summary m.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("\n%s", renderSummary(report, summary))

	return nil
}

func renderSummary(report m.Report, summary m.Summary) string {
	var b strings.Builder

	if report.RunID != "" {
		fmt.Fprintf(&b, "Run %s", report.RunID)

		if !report.StartedAt.IsZero() {
			fmt.Fprintf(&b, " started %s", report.StartedAt.Format("2006-01-02 15:04:05"))
		}

		fmt.Fprintf(&b, " took %s\n", report.Duration)
	}

	if problems := collectProblems(report.Result); len(problems) > 0 {
		b.WriteString(renderProblemsTable(problems))
	}

	fmt.Fprintf(&b, "Tests run: %d, Passed: %d, Failures: %d, Errors: %d, Not run: %d, Time: %.3fs\n",
		summary.ResultCount, summary.Passed(), summary.Failures, summary.Errors, summary.TestsNotRun, summary.Time)

	if summary.SuitesNotRun > 0 || summary.SuiteFailures > 0 {
		fmt.Fprintf(&b, "Suites not run: %d, Suite failures: %d\n", summary.SuitesNotRun, summary.SuiteFailures)
	}

	if report.Error != "" {
		fmt.Fprintf(&b, "Run error: %s\n", report.Error)
	}

	if summary.Success() && report.Error == "" {
		b.WriteString("Result: PASSED\n")
	} else {
		b.WriteString("Result: FAILED\n")
	}

	return b.String()
}

type problem struct {
	name    string
	state   m.ResultState
	message string
}

func collectProblems(result m.Result) []problem {
	var out []problem

	var walk func(m.Result)

	walk = func(r m.Result) {
		if r == nil {
			return
		}

		info := r.Info()
		if info.State == m.StateFailure || info.State == m.StateError {
			out = append(out, problem{name: info.FullName, state: info.State, message: info.Message})
		}

		if suite, ok := r.(*m.SuiteResult); ok {
			for _, child := range suite.Results {
				walk(child)
			}
		}
	}

	walk(result)

	return out
}

func renderProblemsTable(problems []problem) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Test", "State", "Message"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_LEFT})

	for _, p := range problems {
		message, _, _ := strings.Cut(p.message, "\n")
		table.Append([]string{p.name, p.state.String(), message})
	}

	table.Render()

	return tableBuffer.String()
}

// DisplayComparison prints a diff between two reports.
func (s *SimpleUI) DisplayComparison(ctx context.Context, diff string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if diff == "" {
		s.printf("No differences\n")
		return nil
	}

	s.printf("%s", diff)

	return nil
}

// DisplayLoadError reports a tree that could not be loaded.
func (s *SimpleUI) DisplayLoadError(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}

	s.printf("Load error: %v\n", err)
}

func (s *SimpleUI) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}

func indent(message string) string {
	return strings.ReplaceAll(strings.TrimRight(message, "\n"), "\n", "\n    ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}

	return many
}
