// Package mocks provides testify mocks of the adapter interfaces.
package mocks

import (
	"io"

	"github.com/stretchr/testify/mock"

	"trellis.dev/pkg/trellis/internal/adapter"
	m "trellis.dev/pkg/trellis/internal/model"
)

// MockReportStore is a mock of adapter.ReportStore.
type MockReportStore struct {
	mock.Mock
}

var _ adapter.ReportStore = (*MockReportStore)(nil)

// SaveReport provides a mock function.
func (_m *MockReportStore) SaveReport(report m.Report, output io.WriterTo) (string, error) {
	ret := _m.Called(report, output)
	return ret.String(0), ret.Error(1)
}

// LoadReport provides a mock function.
func (_m *MockReportStore) LoadReport(runID string) (m.Report, error) {
	ret := _m.Called(runID)

	report, _ := ret.Get(0).(m.Report)

	return report, ret.Error(1)
}

// OutputPath provides a mock function.
func (_m *MockReportStore) OutputPath(runID string) (string, error) {
	ret := _m.Called(runID)
	return ret.String(0), ret.Error(1)
}

// ListReports provides a mock function.
func (_m *MockReportStore) ListReports() ([]string, error) {
	ret := _m.Called()

	ids, _ := ret.Get(0).([]string)

	return ids, ret.Error(1)
}
