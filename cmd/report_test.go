package cmd

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lunacov.dev/pkg/lunacov/internal/domain"
	domainmocks "lunacov.dev/pkg/lunacov/internal/domain/mocks"
	m "lunacov.dev/pkg/lunacov/internal/model"
)

func TestReportCmd_RendersFromDefaultDir(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)

	mockWorkflow.On("Report", mock.Anything, mock.MatchedBy(func(args domain.ReportArgs) bool {
		return args.Reports == m.Path(".lunacov-reports") && args.JSONPath == m.Path("")
	})).Return(nil)

	err := execute(t, mockWorkflow, "report")
	require.NoError(t, err)
}

func TestReportCmd_JSONExport(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)

	mockWorkflow.On("Report", mock.Anything, mock.MatchedBy(func(args domain.ReportArgs) bool {
		return args.JSONPath == m.Path("coverage-export.json")
	})).Return(nil)

	err := execute(t, mockWorkflow, "report", "--json", "coverage-export.json")
	require.NoError(t, err)
}

func TestReportCmd_RejectsPositionalArgs(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)

	err := execute(t, mockWorkflow, "report", "extra")
	require.Error(t, err)
}
