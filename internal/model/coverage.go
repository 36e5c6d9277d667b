package model

import (
	"errors"
	"fmt"
)

// ErrStructuralMismatch is returned when two coverage records for the same
// file disagree on fingerprint or static structure and therefore cannot be
// merged. Divergent records are never merged silently.
var ErrStructuralMismatch = errors.New("structural mismatch between coverage records")

// ErrLineHookUnsupported is returned by script engines that cannot deliver
// per-line trace events.
var ErrLineHookUnsupported = errors.New("script engine does not support line hooks")

// TrackerBackend selects how execution events are produced.
type TrackerBackend string

const (
	// BackendTraceHook observes execution passively through a runtime
	// line hook.
	BackendTraceHook TrackerBackend = "tracehook"

	// BackendInstrument rewrites loaded source to call a counter before
	// every executable line.
	BackendInstrument TrackerBackend = "instrument"
)

// ParseBackend converts a user-facing backend name to a TrackerBackend.
func ParseBackend(name string) (TrackerBackend, error) {
	switch TrackerBackend(name) {
	case BackendTraceHook, BackendInstrument:
		return TrackerBackend(name), nil
	}

	return "", fmt.Errorf("unknown tracker backend %q", name)
}

// OverallWeights defines the weighted mean used for the overall percentage.
// Weights are normalized over their sum; zero-weight components are ignored.
// The formula travels with every record so downstream formatters can
// reproduce the number from raw counts alone.
type OverallWeights struct {
	Line     float64 `json:"line"`
	Function float64 `json:"function"`
	Block    float64 `json:"block"`
}

// DefaultOverallWeights is the arithmetic mean of line and function coverage.
func DefaultOverallWeights() OverallWeights {
	return OverallWeights{Line: 0.5, Function: 0.5, Block: 0}
}

// Mean applies the weights to the given component percentages.
func (w OverallWeights) Mean(line, function, block float64) float64 {
	total := w.Line + w.Function + w.Block
	if total == 0 {
		return 0
	}

	return (line*w.Line + function*w.Function + block*w.Block) / total
}

// CoverageTotals holds the derived counters of one file record.
type CoverageTotals struct {
	TotalLines      int `json:"total_lines"`
	ExecutableLines int `json:"executable_lines"`
	ExecutedLines   int `json:"executed_lines"`
	CoveredLines    int `json:"covered_lines"`

	TotalBlocks    int `json:"total_blocks"`
	ExecutedBlocks int `json:"executed_blocks"`

	TotalFunctions    int `json:"total_functions"`
	ExecutedFunctions int `json:"executed_functions"`
}

// FileCoverageRecord aggregates the line, block and function coverage of one
// file together with derived totals and percentages.
type FileCoverageRecord struct {
	Path        Path   `json:"path"`
	Fingerprint string `json:"fingerprint"`

	Lines     []LineRecord     `json:"lines"`
	Blocks    []Block          `json:"blocks"`
	Functions []FunctionRecord `json:"functions"`

	Totals CoverageTotals `json:"totals"`

	LinePercent      float64 `json:"line_coverage_percent"`
	ExecutionPercent float64 `json:"execution_coverage_percent"`
	BlockPercent     float64 `json:"block_coverage_percent"`
	FunctionPercent  float64 `json:"function_coverage_percent"`
	OverallPercent   float64 `json:"overall_percent"`
	OverallWeights   OverallWeights `json:"overall_weights"`

	ClassificationIncomplete bool   `json:"classification_incomplete,omitempty"`
	ParseError               string `json:"parse_error,omitempty"`

	// Unreadable flags files that were requested but could not be read.
	// They stay in the report instead of being dropped.
	Unreadable bool `json:"unreadable,omitempty"`
}

// Percent returns covered/total*100, and 0 (not NaN) for an empty total.
func Percent(covered, total int) float64 {
	if total == 0 {
		return 0
	}

	return float64(covered) / float64(total) * 100
}

// Recompute refreshes totals and percentages from the raw line, block and
// function data.
func (r *FileCoverageRecord) Recompute() {
	totals := CoverageTotals{
		TotalLines:     len(r.Lines),
		TotalBlocks:    len(r.Blocks),
		TotalFunctions: len(r.Functions),
	}

	for _, line := range r.Lines {
		if line.Classification != Executable {
			continue
		}

		totals.ExecutableLines++

		if line.ExecutionCount > 0 {
			totals.ExecutedLines++
		}

		if line.Covered {
			totals.CoveredLines++
		}
	}

	for _, block := range r.Blocks {
		if block.Executed {
			totals.ExecutedBlocks++
		}
	}

	for _, function := range r.Functions {
		if function.Executed {
			totals.ExecutedFunctions++
		}
	}

	r.Totals = totals
	r.LinePercent = Percent(totals.CoveredLines, totals.ExecutableLines)
	r.ExecutionPercent = Percent(totals.ExecutedLines, totals.ExecutableLines)
	r.BlockPercent = Percent(totals.ExecutedBlocks, totals.TotalBlocks)
	r.FunctionPercent = Percent(totals.ExecutedFunctions, totals.TotalFunctions)
	r.OverallPercent = r.OverallWeights.Mean(r.LinePercent, r.FunctionPercent, r.BlockPercent)
}

// SessionConfig configures a coverage session at start time.
type SessionConfig struct {
	IncludePatterns []string
	ExcludePatterns []string
	TrackBlocks     bool
	Backend         TrackerBackend
	Policy          ClassifierPolicy
	Weights         OverallWeights
}
