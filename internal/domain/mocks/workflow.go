// Package mocks provides testify mocks of the domain interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"trellis.dev/pkg/trellis/internal/domain"
	m "trellis.dev/pkg/trellis/internal/model"
)

// MockWorkflow is a mock of domain.Workflow.
type MockWorkflow struct {
	mock.Mock
}

var _ domain.Workflow = (*MockWorkflow)(nil)

// NewMockWorkflow creates a MockWorkflow whose expectations are asserted when t ends.
func NewMockWorkflow(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockWorkflow {
	mockWorkflow := &MockWorkflow{}
	mockWorkflow.Test(t)

	t.Cleanup(func() { mockWorkflow.AssertExpectations(t) })

	return mockWorkflow
}

// Run provides a mock function.
func (_m *MockWorkflow) Run(ctx context.Context, args domain.RunArgs) (m.Summary, error) {
	ret := _m.Called(ctx, args)

	summary, _ := ret.Get(0).(m.Summary)

	return summary, ret.Error(1)
}

// List provides a mock function.
func (_m *MockWorkflow) List(ctx context.Context, args domain.ListArgs) error {
	ret := _m.Called(ctx, args)
	return ret.Error(0)
}

// View provides a mock function.
func (_m *MockWorkflow) View(ctx context.Context, args domain.ViewArgs) error {
	ret := _m.Called(ctx, args)
	return ret.Error(0)
}

// Merge provides a mock function.
func (_m *MockWorkflow) Merge(ctx context.Context, args domain.MergeArgs) (m.Summary, error) {
	ret := _m.Called(ctx, args)

	summary, _ := ret.Get(0).(m.Summary)

	return summary, ret.Error(1)
}
