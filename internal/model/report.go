package model

// ReportSchemaVersion identifies the ReportData layout. Fields are only ever
// added within a major version, never renamed or removed.
const ReportSchemaVersion = 1

// ReportSummary holds session-wide counts and percentages.
type ReportSummary struct {
	TotalFiles   int `json:"total_files"`
	CoveredFiles int `json:"covered_files"`

	TotalLines    int `json:"total_lines"`
	CoveredLines  int `json:"covered_lines"`
	ExecutedLines int `json:"executed_lines"`

	TotalFunctions   int `json:"total_functions"`
	CoveredFunctions int `json:"covered_functions"`

	TotalBlocks   int `json:"total_blocks"`
	CoveredBlocks int `json:"covered_blocks"`

	LinePercent      float64 `json:"line_coverage_percent"`
	FunctionPercent  float64 `json:"function_coverage_percent"`
	BlockPercent     float64 `json:"block_coverage_percent"`
	ExecutionPercent float64 `json:"execution_coverage_percent"`
	OverallPercent   float64 `json:"overall_percent"`
}

// ReportData is the stable projection consumed read-only by external report
// formatters (HTML, JSON, LCOV, ...).
type ReportData struct {
	SchemaVersion int                         `json:"schema_version"`
	Summary       ReportSummary               `json:"summary"`
	Files         map[Path]FileCoverageRecord `json:"files"`
}
