// Package mocks provides testify doubles for the domain interfaces.
package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"lunacov.dev/pkg/lunacov/internal/domain"
)

// MockWorkflow is a testify mock of domain.Workflow.
type MockWorkflow struct {
	mock.Mock
}

// NewMockWorkflow creates a MockWorkflow wired to the test's lifecycle.
func NewMockWorkflow(t *testing.T) *MockWorkflow {
	w := &MockWorkflow{}
	w.Mock.Test(t)
	t.Cleanup(func() { w.AssertExpectations(t) })

	return w
}

func (w *MockWorkflow) Run(ctx context.Context, args domain.RunArgs) error {
	return w.Called(ctx, args).Error(0)
}

func (w *MockWorkflow) Report(ctx context.Context, args domain.ReportArgs) error {
	return w.Called(ctx, args).Error(0)
}

func (w *MockWorkflow) Merge(ctx context.Context, args domain.MergeArgs) error {
	return w.Called(ctx, args).Error(0)
}

func (w *MockWorkflow) List(ctx context.Context, args domain.ListArgs) error {
	return w.Called(ctx, args).Error(0)
}

func (w *MockWorkflow) View(ctx context.Context, args domain.ViewArgs) error {
	return w.Called(ctx, args).Error(0)
}
