package domain

import (
	m "lunacov.dev/pkg/lunacov/internal/model"
)

// BuildReportData projects aggregated records into the versioned schema
// consumed read-only by external formatters. It is a pure projection:
// session state is never touched, every requested file appears (degraded
// ones carry their status flags), and the overall percentage is recomputed
// from raw counts with the weights carried in the records.
func BuildReportData(records []m.FileCoverageRecord, weights m.OverallWeights) m.ReportData {
	data := m.ReportData{
		SchemaVersion: m.ReportSchemaVersion,
		Files:         make(map[m.Path]m.FileCoverageRecord, len(records)),
	}

	summary := &data.Summary

	for _, record := range records {
		data.Files[record.Path] = record

		summary.TotalFiles++

		if record.Totals.CoveredLines > 0 {
			summary.CoveredFiles++
		}

		summary.TotalLines += record.Totals.ExecutableLines
		summary.CoveredLines += record.Totals.CoveredLines
		summary.ExecutedLines += record.Totals.ExecutedLines

		summary.TotalFunctions += record.Totals.TotalFunctions
		summary.CoveredFunctions += record.Totals.ExecutedFunctions

		summary.TotalBlocks += record.Totals.TotalBlocks
		summary.CoveredBlocks += record.Totals.ExecutedBlocks
	}

	summary.LinePercent = m.Percent(summary.CoveredLines, summary.TotalLines)
	summary.ExecutionPercent = m.Percent(summary.ExecutedLines, summary.TotalLines)
	summary.FunctionPercent = m.Percent(summary.CoveredFunctions, summary.TotalFunctions)
	summary.BlockPercent = m.Percent(summary.CoveredBlocks, summary.TotalBlocks)
	summary.OverallPercent = weights.Mean(summary.LinePercent, summary.FunctionPercent, summary.BlockPercent)

	return data
}
