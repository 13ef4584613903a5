// Package mocks provides testify mocks of the controller interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"trellis.dev/pkg/trellis/internal/controller"
	m "trellis.dev/pkg/trellis/internal/model"
)

// MockUI is a mock of controller.UI. Listener events are not expectations:
// they are recorded in Events.
type MockUI struct {
	mock.Mock

	Events m.RecordingListener
}

var _ controller.UI = (*MockUI)(nil)

// Start provides a mock function.
func (_m *MockUI) Start(ctx context.Context, options ...controller.StartOption) error {
	ret := _m.Called(ctx, options)
	return ret.Error(0)
}

// Close provides a mock function.
func (_m *MockUI) Close(ctx context.Context) {
	_m.Called(ctx)
}

// Wait provides a mock function.
func (_m *MockUI) Wait(ctx context.Context) {
	_m.Called(ctx)
}

// DisplayTests provides a mock function.
func (_m *MockUI) DisplayTests(ctx context.Context, tree m.Test, filter m.Filter) error {
	ret := _m.Called(ctx, tree, filter)
	return ret.Error(0)
}

// DisplaySummary provides a mock function.
func (_m *MockUI) DisplaySummary(ctx context.Context, report m.Report, summary m.Summary) error {
	ret := _m.Called(ctx, report, summary)
	return ret.Error(0)
}

// DisplayComparison provides a mock function.
func (_m *MockUI) DisplayComparison(ctx context.Context, diff string) error {
	ret := _m.Called(ctx, diff)
	return ret.Error(0)
}

// DisplayLoadError provides a mock function.
func (_m *MockUI) DisplayLoadError(ctx context.Context, err error) {
	_m.Called(ctx, err)
}

func (_m *MockUI) RunStarted(name string, testCount int) {
	_m.Events.Listener().RunStarted(name, testCount)
}

func (_m *MockUI) RunFinished(result m.Result, err error) {
	_m.Events.Listener().RunFinished(result, err)
}

func (_m *MockUI) SuiteStarted(info m.TestInfo) {
	_m.Events.Listener().SuiteStarted(info)
}

func (_m *MockUI) SuiteFinished(result *m.SuiteResult) {
	_m.Events.Listener().SuiteFinished(result)
}

func (_m *MockUI) TestStarted(info m.TestInfo) {
	_m.Events.Listener().TestStarted(info)
}

func (_m *MockUI) TestFinished(result *m.CaseResult) {
	_m.Events.Listener().TestFinished(result)
}

func (_m *MockUI) TestOutput(output m.TestOutput) {
	_m.Events.Listener().TestOutput(output)
}

func (_m *MockUI) UnhandledException(err error) {
	_m.Events.Listener().UnhandledException(err)
}
