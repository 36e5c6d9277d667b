package controller

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	m "lunacov.dev/pkg/lunacov/internal/model"
)

// Styles for the four-state coverage model.
var (
	styleNonExec  = lipgloss.NewStyle().Faint(true)
	styleNotRun   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleExecuted = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleCovered  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleHeader   = lipgloss.NewStyle().Bold(true)
	styleSelected = lipgloss.NewStyle().Reverse(true)
)

// TUI implements UI with an interactive Bubble Tea viewer for per-line
// coverage. Table-style output is delegated to the plain UI.
type TUI struct {
	*SimpleUI
}

// NewTUI creates a new TUI.
func NewTUI(cmd *cobra.Command) *TUI {
	return &TUI{SimpleUI: NewSimpleUI(cmd)}
}

// View runs the interactive coverage browser.
func (t *TUI) View(ctx context.Context, files []FileView) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(files) == 0 {
		t.cmd.Println("no coverage records to view")
		return nil
	}

	program := tea.NewProgram(newViewModel(files), tea.WithAltScreen())

	_, err := program.Run()

	return err
}

type viewMode int

const (
	modePicker viewMode = iota
	modeSource
)

type viewModel struct {
	files    []FileView
	mode     viewMode
	selected int
	offset   int
	width    int
	height   int
}

func newViewModel(files []FileView) viewModel {
	return viewModel{files: files, width: 80, height: 24}
}

func (v viewModel) Init() tea.Cmd {
	return nil
}

func (v viewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height

	case tea.KeyMsg:
		return v.handleKey(msg)
	}

	return v, nil
}

func (v viewModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return v, tea.Quit

	case "up", "k":
		v.scroll(-1)

	case "down", "j":
		v.scroll(1)

	case "pgup":
		v.scroll(-v.pageSize())

	case "pgdown", " ":
		v.scroll(v.pageSize())

	case "enter":
		if v.mode == modePicker {
			v.mode = modeSource
			v.offset = 0
		}

	case "esc", "left":
		if v.mode == modeSource {
			v.mode = modePicker
			v.offset = 0
		} else {
			return v, tea.Quit
		}
	}

	return v, nil
}

func (v *viewModel) scroll(delta int) {
	if v.mode == modePicker {
		v.selected = clamp(v.selected+delta, 0, len(v.files)-1)
		return
	}

	maxOffset := len(v.files[v.selected].Source) - v.pageSize()
	if maxOffset < 0 {
		maxOffset = 0
	}

	v.offset = clamp(v.offset+delta, 0, maxOffset)
}

func (v viewModel) pageSize() int {
	// Header and footer each take a line.
	size := v.height - 2
	if size < 1 {
		size = 1
	}

	return size
}

func (v viewModel) View() string {
	if v.mode == modePicker {
		return v.pickerView()
	}

	return v.sourceView()
}

func (v viewModel) pickerView() string {
	var b strings.Builder

	b.WriteString(styleHeader.Render("lunacov: select a file (enter to open, q to quit)"))
	b.WriteString("\n")

	start := 0
	if v.selected >= v.pageSize() {
		start = v.selected - v.pageSize() + 1
	}

	for i := start; i < len(v.files) && i-start < v.pageSize(); i++ {
		record := v.files[i].Record

		line := fmt.Sprintf("%6.1f%%  %s", record.OverallPercent, record.Path)
		if record.Unreadable {
			line = fmt.Sprintf("   -     %s (unreadable)", record.Path)
		}

		if i == v.selected {
			line = styleSelected.Render(line)
		}

		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}

func (v viewModel) sourceView() string {
	file := v.files[v.selected]

	var b strings.Builder

	header := fmt.Sprintf("%s: line %.1f%%, exec %.1f%%, block %.1f%%, func %.1f%%",
		file.Record.Path, file.Record.LinePercent, file.Record.ExecutionPercent,
		file.Record.BlockPercent, file.Record.FunctionPercent)
	b.WriteString(styleHeader.Render(header))
	b.WriteString("\n")

	for i := v.offset; i < len(file.Source) && i-v.offset < v.pageSize(); i++ {
		b.WriteString(renderSourceLine(i+1, file.Source[i], file.Record.Lines, v.width))
		b.WriteString("\n")
	}

	b.WriteString(styleNonExec.Render("esc back · q quit"))

	return b.String()
}

func renderSourceLine(lineNo int, text string, lines []m.LineRecord, width int) string {
	var record m.LineRecord
	if lineNo-1 < len(lines) {
		record = lines[lineNo-1]
	}

	count := ""
	style := styleNonExec

	switch {
	case record.Classification != m.Executable:
		// Gray: comments, blanks, multi-line construct interiors.
	case record.ExecutionCount == 0:
		style = styleNotRun
	case !record.Covered:
		style = styleExecuted
		count = fmt.Sprintf("%d", record.ExecutionCount)
	default:
		style = styleCovered
		count = fmt.Sprintf("%d", record.ExecutionCount)
	}

	rendered := fmt.Sprintf("%5d %6s  %s", lineNo, count, text)
	if width > 0 && len(rendered) > width {
		rendered = rendered[:width]
	}

	return style.Render(rendered)
}

func clamp(value, low, high int) int {
	if high < low {
		return low
	}

	if value < low {
		return low
	}

	if value > high {
		return high
	}

	return value
}
