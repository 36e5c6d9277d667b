package domain

import (
	"testing"

	"github.com/stretchr/testify/require"

	m "lunacov.dev/pkg/lunacov/internal/model"
)

func TestBuildReportData_Summary(t *testing.T) {
	covered := workerRecord([]uint64{1, 1, 0, 0}, []bool{true, true, false, false})
	covered.Functions[0].Executed = true
	covered.Blocks[0].Executed = true
	covered.Recompute()

	untouched := workerRecord([]uint64{0, 0}, []bool{false, false})
	untouched.Path = "untouched.lua"

	data := BuildReportData([]m.FileCoverageRecord{covered, untouched}, m.DefaultOverallWeights())

	require.Equal(t, m.ReportSchemaVersion, data.SchemaVersion)
	require.Len(t, data.Files, 2)
	require.Contains(t, data.Files, m.Path("script.lua"))
	require.Contains(t, data.Files, m.Path("untouched.lua"))

	summary := data.Summary
	require.Equal(t, 2, summary.TotalFiles)
	require.Equal(t, 1, summary.CoveredFiles)
	require.Equal(t, 6, summary.TotalLines)
	require.Equal(t, 2, summary.CoveredLines)
	require.Equal(t, 2, summary.ExecutedLines)
	require.Equal(t, 2, summary.TotalFunctions)
	require.Equal(t, 1, summary.CoveredFunctions)
	require.Equal(t, 2, summary.TotalBlocks)
	require.Equal(t, 1, summary.CoveredBlocks)

	require.InDelta(t, 100.0/3, summary.LinePercent, 0.001)
	require.InDelta(t, 50.0, summary.FunctionPercent, 0.001)
	require.InDelta(t, 50.0, summary.BlockPercent, 0.001)
	require.InDelta(t, (100.0/3+50.0)/2, summary.OverallPercent, 0.001)
}

func TestBuildReportData_EmptyInputYieldsZeroesNotNaN(t *testing.T) {
	data := BuildReportData(nil, m.DefaultOverallWeights())

	require.Zero(t, data.Summary.TotalFiles)
	require.Zero(t, data.Summary.LinePercent)
	require.Zero(t, data.Summary.OverallPercent)
	require.NotNil(t, data.Files)
}

func TestBuildReportData_DegradedFilesKeepFlags(t *testing.T) {
	degraded := workerRecord([]uint64{0}, []bool{false})
	degraded.ParseError = "syntax error"
	degraded.ClassificationIncomplete = true

	data := BuildReportData([]m.FileCoverageRecord{degraded}, m.DefaultOverallWeights())

	file := data.Files["script.lua"]
	require.Equal(t, "syntax error", file.ParseError)
	require.True(t, file.ClassificationIncomplete)
}

func TestPercent_ZeroTotal(t *testing.T) {
	require.Zero(t, m.Percent(0, 0))
	require.InDelta(t, 50.0, m.Percent(1, 2), 0.001)
}

func TestOverallWeights_Mean(t *testing.T) {
	require.InDelta(t, 75.0, m.DefaultOverallWeights().Mean(50, 100, 0), 0.001)
	require.Zero(t, m.OverallWeights{}.Mean(50, 100, 10))

	blocksOnly := m.OverallWeights{Block: 1}
	require.InDelta(t, 10.0, blocksOnly.Mean(50, 100, 10), 0.001)
}
