package domain

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	m "trellis.dev/pkg/trellis/internal/model"
)

// DiffReports returns a unified diff of the case outcomes of two reports,
// or "" when every case ended the same way.
func DiffReports(before, after m.Report) (string, error) {
	a, b := outcomeLines(before.Result), outcomeLines(after.Result)
	if slices.Equal(a, b) {
		return "", nil
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: reportLabel(before),
		ToFile:   reportLabel(after),
		Context:  1,
	})
	if err != nil {
		return "", fmt.Errorf("diff reports: %w", err)
	}

	return diff, nil
}

func reportLabel(report m.Report) string {
	if report.RunID == "" {
		return report.Name
	}

	return report.RunID
}

func outcomeLines(result m.Result) []string {
	var lines []string

	m.WalkCases(result, func(r *m.CaseResult) {
		line := r.FullName + ": " + r.State.String()
		if r.State == m.StateFailure || r.State == m.StateError {
			message, _, _ := strings.Cut(r.Message, "\n")
			line += " (" + message + ")"
		}

		lines = append(lines, line+"\n")
	})

	return lines
}
