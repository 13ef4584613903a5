package adapter

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	m "trellis.dev/pkg/trellis/internal/model"
)

const (
	reportFileName = "report.yaml"
	outputFileName = "output.log"
	latestFileName = "latest"

	// LatestRun resolves to the most recently saved report.
	LatestRun = "latest"
)

// ErrReportNotFound is returned when a run ID has no saved report.
var ErrReportNotFound = errors.New("report not found")

// ReportStore persists finished runs.
type ReportStore interface {
	// SaveReport writes report, and output when not nil, and returns the run directory.
	SaveReport(report m.Report, output io.WriterTo) (string, error)
	// LoadReport reads the report of runID, or of the latest run for LatestRun.
	LoadReport(runID string) (m.Report, error)
	// OutputPath returns the captured output file of runID, if one was saved.
	OutputPath(runID string) (string, error)
	// ListReports returns saved run IDs, oldest first.
	ListReports() ([]string, error)
}

// NewRunID returns a time-ordered identifier for a new run.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FileReportStore keeps one directory per run below a root directory.
type FileReportStore struct {
	root string
}

var _ ReportStore = (*FileReportStore)(nil)

// NewReportStore creates a FileReportStore rooted at dir.
func NewReportStore(dir string) *FileReportStore {
	return &FileReportStore{root: dir}
}

// SaveReport implements ReportStore.
func (s *FileReportStore) SaveReport(report m.Report, output io.WriterTo) (string, error) {
	if report.RunID == "" {
		report.RunID = NewRunID()
	}

	dir := filepath.Join(s.root, report.RunID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		slog.Error("failed to create report directory", "path", dir, "error", err)
		return "", fmt.Errorf("create report directory: %w", err)
	}

	data, err := yaml.Marshal(toReportRecord(report))
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, reportFileName), data, 0o600); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	if output != nil {
		if err := writeOutput(filepath.Join(dir, outputFileName), output); err != nil {
			return "", err
		}
	}

	if err := os.WriteFile(filepath.Join(s.root, latestFileName), []byte(report.RunID+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write latest pointer: %w", err)
	}

	slog.Debug("Saved report", "run", report.RunID, "path", dir)

	return dir, nil
}

func writeOutput(path string, output io.WriterTo) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output log: %w", err)
	}

	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if _, err := output.WriteTo(file); err != nil {
		return fmt.Errorf("write output log: %w", err)
	}

	return nil
}

// LoadReport implements ReportStore.
func (s *FileReportStore) LoadReport(runID string) (m.Report, error) {
	runID, err := s.resolve(runID)
	if err != nil {
		return m.Report{}, err
	}

	data, err := os.ReadFile(filepath.Join(s.root, runID, reportFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return m.Report{}, fmt.Errorf("%w: %s", ErrReportNotFound, runID)
	}

	if err != nil {
		return m.Report{}, fmt.Errorf("read report: %w", err)
	}

	var record reportRecord
	if err := yaml.Unmarshal(data, &record); err != nil {
		return m.Report{}, fmt.Errorf("decode report %s: %w", runID, err)
	}

	return record.toReport()
}

// OutputPath implements ReportStore.
func (s *FileReportStore) OutputPath(runID string) (string, error) {
	runID, err := s.resolve(runID)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.root, runID, outputFileName)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: no output for %s", ErrReportNotFound, runID)
	}

	return path, nil
}

// ListReports implements ReportStore.
func (s *FileReportStore) ListReports() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	var ids []string

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		if _, err := os.Stat(filepath.Join(s.root, entry.Name(), reportFileName)); err == nil {
			ids = append(ids, entry.Name())
		}
	}

	// v7 IDs sort by creation time.
	sort.Strings(ids)

	return ids, nil
}

func (s *FileReportStore) resolve(runID string) (string, error) {
	if runID != "" && runID != LatestRun {
		return runID, nil
	}

	data, err := os.ReadFile(filepath.Join(s.root, latestFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: no runs saved in %s", ErrReportNotFound, s.root)
	}

	if err != nil {
		return "", fmt.Errorf("read latest pointer: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

type reportRecord struct {
	RunID     string        `yaml:"run_id"`
	Name      string        `yaml:"name"`
	StartedAt time.Time     `yaml:"started_at"`
	Duration  string        `yaml:"duration"`
	Error     string        `yaml:"error,omitempty"`
	Result    *resultRecord `yaml:"result,omitempty"`
}

type resultRecord struct {
	Name        string          `yaml:"name"`
	FullName    string          `yaml:"full_name"`
	Suite       bool            `yaml:"suite,omitempty"`
	Executed    bool            `yaml:"executed"`
	State       string          `yaml:"state"`
	Message     string          `yaml:"message,omitempty"`
	StackTrace  string          `yaml:"stack_trace,omitempty"`
	Time        float64         `yaml:"time"`
	AssertCount int             `yaml:"asserts,omitempty"`
	Results     []*resultRecord `yaml:"results,omitempty"`
}

func toReportRecord(report m.Report) reportRecord {
	return reportRecord{
		RunID:     report.RunID,
		Name:      report.Name,
		StartedAt: report.StartedAt.UTC(),
		Duration:  report.Duration.String(),
		Error:     report.Error,
		Result:    toResultRecord(report.Result),
	}
}

func toResultRecord(result m.Result) *resultRecord {
	if result == nil {
		return nil
	}

	info := result.Info()
	record := &resultRecord{
		Name:       info.Name,
		FullName:   info.FullName,
		Suite:      result.IsSuite(),
		Executed:   info.Executed,
		State:      info.State.String(),
		Message:    info.Message,
		StackTrace: info.StackTrace,
		Time:       info.Time,
	}

	switch r := result.(type) {
	case *m.CaseResult:
		record.AssertCount = r.AssertCount
	case *m.SuiteResult:
		for _, child := range r.Results {
			record.Results = append(record.Results, toResultRecord(child))
		}
	}

	return record
}

func (r reportRecord) toReport() (m.Report, error) {
	report := m.Report{
		RunID:     r.RunID,
		Name:      r.Name,
		StartedAt: r.StartedAt,
		Error:     r.Error,
	}

	if r.Duration != "" {
		d, err := time.ParseDuration(r.Duration)
		if err != nil {
			return m.Report{}, fmt.Errorf("report %s: duration: %w", r.RunID, err)
		}

		report.Duration = d
	}

	if r.Result != nil {
		result, err := r.Result.toResult()
		if err != nil {
			return m.Report{}, fmt.Errorf("report %s: %w", r.RunID, err)
		}

		report.Result = result
	}

	return report, nil
}

func (r *resultRecord) toResult() (m.Result, error) {
	state, err := m.ParseResultState(r.State)
	if err != nil {
		return nil, err
	}

	info := m.ResultInfo{
		Name:       r.Name,
		FullName:   r.FullName,
		Executed:   r.Executed,
		State:      state,
		Message:    r.Message,
		StackTrace: r.StackTrace,
		Time:       r.Time,
	}

	if !r.Suite {
		return &m.CaseResult{ResultInfo: info, AssertCount: r.AssertCount}, nil
	}

	suite := &m.SuiteResult{ResultInfo: info}

	for _, child := range r.Results {
		result, err := child.toResult()
		if err != nil {
			return nil, err
		}

		suite.AddResult(result)
	}

	return suite, nil
}
