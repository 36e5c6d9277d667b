// Package controller provides output adapters for displaying coverage
// results.
package controller

import (
	"context"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	m "lunacov.dev/pkg/lunacov/internal/model"
)

// FileView pairs a coverage record with its source text for rendering.
type FileView struct {
	Record m.FileCoverageRecord
	Source []string
}

// UI defines how coverage results reach the user. Implementations can use
// plain text tables or an interactive TUI.
type UI interface {
	// DisplaySummary renders the per-file coverage table after a run.
	DisplaySummary(ctx context.Context, records []m.FileCoverageRecord) error

	// DisplayReport renders the session-wide report summary.
	DisplayReport(ctx context.Context, data m.ReportData) error

	// DisplayAnalysis renders static analysis counts for the list command.
	DisplayAnalysis(ctx context.Context, analyses []m.FileAnalysis) error

	// DisplayMergeInfo reports how many shards and files were merged.
	DisplayMergeInfo(ctx context.Context, shards, files int)

	// View shows per-line coverage of the given files.
	View(ctx context.Context, files []FileView) error
}

// IsTTY reports whether the writer is an interactive terminal.
func IsTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NewUI selects the TUI when the output is interactive, otherwise the plain
// table UI.
func NewUI(cmd *cobra.Command, tty bool) UI {
	if tty {
		return NewTUI(cmd)
	}

	return NewSimpleUI(cmd)
}
