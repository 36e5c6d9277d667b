package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	m "lunacov.dev/pkg/lunacov/internal/model"
)

func TestParsePaths(t *testing.T) {
	require.Equal(t, []m.Path{"."}, parsePaths(nil))
	require.Equal(t, []m.Path{"a.lua", "b.lua"}, parsePaths([]string{"a.lua", "b.lua"}))
}

func TestRootCmd_ShowsHelpWithoutSubcommand(t *testing.T) {
	out := &bytes.Buffer{}

	cmd := baseRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "lunacov")
}
