package controller

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	m "lunacov.dev/pkg/lunacov/internal/model"
)

func pickerModel() viewModel {
	return newViewModel([]FileView{
		{Record: m.FileCoverageRecord{Path: "a.lua"}, Source: []string{"print(1)"}},
		{Record: m.FileCoverageRecord{Path: "b.lua"}, Source: []string{"print(2)"}},
	})
}

func keyMsg(key string) tea.KeyMsg {
	if key == "enter" {
		return tea.KeyMsg{Type: tea.KeyEnter}
	}

	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

func TestViewModel_PickerNavigation(t *testing.T) {
	model := pickerModel()

	next, _ := model.Update(keyMsg("j"))
	updated := next.(viewModel)
	require.Equal(t, 1, updated.selected)

	next, _ = updated.Update(keyMsg("j"))
	updated = next.(viewModel)
	require.Equal(t, 1, updated.selected, "selection clamps at the last file")

	next, _ = updated.Update(keyMsg("k"))
	updated = next.(viewModel)
	require.Equal(t, 0, updated.selected)
}

func TestViewModel_EnterOpensSource(t *testing.T) {
	model := pickerModel()

	next, _ := model.Update(keyMsg("enter"))
	updated := next.(viewModel)
	require.Equal(t, modeSource, updated.mode)

	next, _ = updated.Update(tea.KeyMsg{Type: tea.KeyEsc})
	updated = next.(viewModel)
	require.Equal(t, modePicker, updated.mode)
}

func TestViewModel_QuitKeys(t *testing.T) {
	model := pickerModel()

	_, cmd := model.Update(keyMsg("q"))
	require.NotNil(t, cmd)

	_, cmd = model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
}

func TestViewModel_WindowResize(t *testing.T) {
	model := pickerModel()

	next, _ := model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	updated := next.(viewModel)
	require.Equal(t, 120, updated.width)
	require.Equal(t, 40, updated.height)
}

func TestViewModel_ViewsRender(t *testing.T) {
	model := pickerModel()
	require.Contains(t, model.View(), "a.lua")
	require.Contains(t, model.View(), "lunacov: select a file")

	next, _ := model.Update(keyMsg("enter"))
	require.Contains(t, next.(viewModel).View(), "print(1)")
	require.Contains(t, next.(viewModel).View(), "a.lua: line")
}

func TestClamp(t *testing.T) {
	require.Equal(t, 0, clamp(-1, 0, 5))
	require.Equal(t, 5, clamp(9, 0, 5))
	require.Equal(t, 3, clamp(3, 0, 5))
	require.Equal(t, 0, clamp(2, 0, -1), "inverted bounds collapse to low")
}
