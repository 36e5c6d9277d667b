package controller

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "lunacov.dev/pkg/lunacov/internal/model"
)

// SimpleUI implements UI using cobra Command's Println and plain tables.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// DisplaySummary prints a per-file coverage table.
func (s *SimpleUI) DisplaySummary(ctx context.Context, records []m.FileCoverageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.cmd.Print(renderSummaryTable(records))

	return nil
}

// DisplayReport prints the session-wide summary block.
func (s *SimpleUI) DisplayReport(ctx context.Context, data m.ReportData) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	summary := data.Summary

	s.cmd.Printf("files:     %d (%d with covered lines)\n", summary.TotalFiles, summary.CoveredFiles)
	s.cmd.Printf("lines:     %d executable, %d executed, %d covered\n",
		summary.TotalLines, summary.ExecutedLines, summary.CoveredLines)
	s.cmd.Printf("functions: %d/%d  blocks: %d/%d\n",
		summary.CoveredFunctions, summary.TotalFunctions,
		summary.CoveredBlocks, summary.TotalBlocks)
	s.cmd.Printf("line %.1f%%  execution %.1f%%  function %.1f%%  block %.1f%%  overall %.1f%%\n",
		summary.LinePercent, summary.ExecutionPercent,
		summary.FunctionPercent, summary.BlockPercent, summary.OverallPercent)

	return nil
}

// DisplayAnalysis prints static analysis counts per file.
func (s *SimpleUI) DisplayAnalysis(ctx context.Context, analyses []m.FileAnalysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buffer bytes.Buffer

	table := tablewriter.NewWriter(&buffer)
	table.SetHeader([]string{"File", "Lines", "Executable", "Blocks", "Functions", "Status"})
	table.SetBorder(false)

	totalExecutable := 0

	for _, analysis := range analyses {
		status := "ok"
		if analysis.ParseError != "" {
			status = "parse error"
		} else if analysis.ClassificationIncomplete {
			status = "incomplete"
		}

		executable := analysis.ExecutableLines()
		totalExecutable += executable

		table.Append([]string{
			string(analysis.Path),
			strconv.Itoa(len(analysis.Lines)),
			strconv.Itoa(executable),
			strconv.Itoa(len(analysis.Blocks)),
			strconv.Itoa(len(analysis.Functions)),
			status,
		})
	}

	table.Render()

	s.cmd.Print(buffer.String())
	s.cmd.Printf("\n%d file(s), %d executable line(s)\n", len(analyses), totalExecutable)

	return nil
}

// DisplayMergeInfo reports the merge result counts.
func (s *SimpleUI) DisplayMergeInfo(ctx context.Context, shards, files int) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.cmd.Printf("merged %d shard(s) into %d file record(s)\n", shards, files)
}

// View prints an annotated per-line listing for each file.
func (s *SimpleUI) View(ctx context.Context, files []FileView) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, file := range files {
		s.cmd.Printf("\n%s (%.1f%% lines, %.1f%% functions)\n",
			file.Record.Path, file.Record.LinePercent, file.Record.FunctionPercent)

		for i, text := range file.Source {
			if i >= len(file.Record.Lines) {
				break
			}

			s.cmd.Printf("%5d %s %s\n", i+1, lineMarker(file.Record.Lines[i]), text)
		}
	}

	return nil
}

// lineMarker encodes the four-state model: space for non-executable, "!" for
// executable-but-not-run, "~" for executed-unvalidated, "*" for covered.
func lineMarker(line m.LineRecord) string {
	switch {
	case line.Classification != m.Executable:
		return " "
	case line.ExecutionCount == 0:
		return "!"
	case !line.Covered:
		return "~"
	default:
		return "*"
	}
}

func renderSummaryTable(records []m.FileCoverageRecord) string {
	var buffer bytes.Buffer

	table := tablewriter.NewWriter(&buffer)
	table.SetHeader([]string{"File", "Exec/Total", "Line %", "Exec %", "Block %", "Func %", "Overall"})
	table.SetBorder(false)

	for _, record := range records {
		if record.Unreadable {
			table.Append([]string{string(record.Path), "-", "-", "-", "-", "-", "unreadable"})
			continue
		}

		table.Append([]string{
			string(record.Path),
			fmt.Sprintf("%d/%d", record.Totals.ExecutedLines, record.Totals.ExecutableLines),
			fmt.Sprintf("%.1f", record.LinePercent),
			fmt.Sprintf("%.1f", record.ExecutionPercent),
			fmt.Sprintf("%.1f", record.BlockPercent),
			fmt.Sprintf("%.1f", record.FunctionPercent),
			fmt.Sprintf("%.1f", record.OverallPercent),
		})
	}

	table.Render()

	return buffer.String()
}
