package domain

import (
	"testing"

	"github.com/stretchr/testify/require"

	m "lunacov.dev/pkg/lunacov/internal/model"
)

func classify(t *testing.T, src string) ([]m.LineClassification, bool) {
	t.Helper()

	classifier := NewClassifier(m.ClassifierPolicy{})

	return classifier.Classify(SplitLines([]byte(src)))
}

func TestClassify_CommentThenCode(t *testing.T) {
	classes, incomplete := classify(t, "-- comment\nprint(1)\n")

	require.False(t, incomplete)
	require.Equal(t, []m.LineClassification{m.NonExecutable, m.Executable}, classes)
}

func TestClassify_InlineBlockComment(t *testing.T) {
	classes, incomplete := classify(t, "local x = 1 --[[ c ]] local y = 2\n")

	require.False(t, incomplete)
	require.Equal(t, []m.LineClassification{m.Executable}, classes)
}

func TestClassify_BlockCommentSpanningLines(t *testing.T) {
	src := "--[[\nnot code\n]]\nlocal x = 1\n"

	classes, incomplete := classify(t, src)

	require.False(t, incomplete)
	require.Equal(t, []m.LineClassification{
		m.InMultilineConstruct,
		m.InMultilineConstruct,
		m.InMultilineConstruct,
		m.Executable,
	}, classes)
}

func TestClassify_LeveledBracketsDoNotNest(t *testing.T) {
	// ]] inside a level-1 comment does not close it; the first ]=] does.
	src := "--[=[\n]] still inside\n]=]\nprint(1)\n"

	classes, incomplete := classify(t, src)

	require.False(t, incomplete)
	require.Equal(t, m.InMultilineConstruct, classes[0])
	require.Equal(t, m.InMultilineConstruct, classes[1])
	require.Equal(t, m.InMultilineConstruct, classes[2])
	require.Equal(t, m.Executable, classes[3])
}

func TestClassify_IdenticalMarkersNeverNest(t *testing.T) {
	// The inner --[[ is plain comment text; the first ]] closes the
	// construct, so line 4 is back to real code.
	src := "--[[\n--[[\n]]\nprint(1)\n"

	classes, incomplete := classify(t, src)

	require.False(t, incomplete)
	require.Equal(t, m.Executable, classes[3])
}

func TestClassify_LongStringAssignment(t *testing.T) {
	src := "local s = [[\nstring body\n]]\nprint(s)\n"

	classes, incomplete := classify(t, src)

	require.False(t, incomplete)
	require.Equal(t, []m.LineClassification{
		m.Executable,           // local s = [[ has code before the opener
		m.InMultilineConstruct, // pure string interior
		m.InMultilineConstruct, // close marker only
		m.Executable,
	}, classes)
}

func TestClassify_MarkersInsideShortStringsAreText(t *testing.T) {
	src := "local s = \"--[[ not a comment\"\nlocal t = '\\'--'\nprint(s, t)\n"

	classes, incomplete := classify(t, src)

	require.False(t, incomplete)
	require.Equal(t, []m.LineClassification{m.Executable, m.Executable, m.Executable}, classes)
}

func TestClassify_LineCommentSwallowsRest(t *testing.T) {
	classes, _ := classify(t, "-- local x = 1\n   \n\nprint(1) -- trailing\n")

	require.Equal(t, []m.LineClassification{
		m.NonExecutable,
		m.NonExecutable,
		m.NonExecutable,
		m.Executable,
	}, classes)
}

func TestClassify_UnterminatedConstructFlagsIncomplete(t *testing.T) {
	src := "print(1)\n--[[\nnever closed\n"

	classes, incomplete := classify(t, src)

	require.True(t, incomplete)
	require.Equal(t, m.Executable, classes[0])
	require.Equal(t, m.InMultilineConstruct, classes[1])
	require.Equal(t, m.InMultilineConstruct, classes[2])
}

func TestClassify_KeywordOnlyLinesFollowPolicy(t *testing.T) {
	src := "if x then\nprint(1)\nelse\nprint(2)\nend\n"

	lines := SplitLines([]byte(src))

	classes, _ := NewClassifier(m.ClassifierPolicy{}).Classify(lines)
	require.Equal(t, m.NonExecutable, classes[2], "bare else is non-executable by default")
	require.Equal(t, m.NonExecutable, classes[4], "bare end is non-executable by default")

	classes, _ = NewClassifier(m.ClassifierPolicy{KeywordLinesExecutable: true}).Classify(lines)
	require.Equal(t, m.Executable, classes[2])
	require.Equal(t, m.Executable, classes[4])
}

func TestClassify_ShebangIsNonExecutable(t *testing.T) {
	classes, _ := classify(t, "#!/usr/bin/env lua\nprint(1)\n")

	require.Equal(t, []m.LineClassification{m.NonExecutable, m.Executable}, classes)
}

func TestClassify_IsPure(t *testing.T) {
	lines := SplitLines([]byte("--[[\nbody\n]]\nlocal x = 1 --[[ c ]] local y = 2\nprint(x)\n"))

	classifier := NewClassifier(m.ClassifierPolicy{})

	first, firstIncomplete := classifier.Classify(lines)
	second, secondIncomplete := classifier.Classify(lines)

	require.Equal(t, first, second)
	require.Equal(t, firstIncomplete, secondIncomplete)
}
