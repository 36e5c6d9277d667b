package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"lunacov.dev/pkg/lunacov/internal/adapter"
	m "lunacov.dev/pkg/lunacov/internal/model"
)

// branchySource has an if branch on line 3 and an else branch on line 5.
const branchySource = `local flag = true
if flag then
  print("yes")
else
  print("no")
end
`

// branchyAnalysis hands the session a fixed block structure for
// branchySource, bypassing the parser.
func branchyAnalysis(src []byte) m.FileAnalysis {
	lines := SplitLines(src)
	classes, _ := NewClassifier(m.ClassifierPolicy{}).Classify(lines)

	return m.FileAnalysis{
		Fingerprint: adapter.FingerprintBytes(src),
		Lines:       classes,
		Blocks: []m.Block{
			{ID: 0, Kind: m.BlockTopLevel, StartLine: 1, EndLine: 6, ParentID: m.NoParent},
			{ID: 1, Kind: m.BlockConditional, StartLine: 3, EndLine: 3, ParentID: 0},
			{ID: 2, Kind: m.BlockConditional, StartLine: 5, EndLine: 5, ParentID: 0},
		},
		StmtStarts: map[int]int{1: 0, 2: 18, 3: 33, 5: 53},
	}
}

func newBranchySession(t *testing.T, config m.SessionConfig) (*CoverageSession, m.Path) {
	t.Helper()

	src := []byte(branchySource)
	path := m.Path("script.lua")

	fs := newFakeFS(map[m.Path][]byte{path: src})

	cache := newStubCache()
	cache.seed(branchyAnalysis(src))

	analyzer := NewAnalyzer(fs, cache, m.ClassifierPolicy{})

	session := NewCoverageSession(analyzer)
	require.NoError(t, session.Start(config))
	require.NoError(t, session.Track(context.Background(), path))

	return session, path
}

func TestSession_StartRejectsDoubleStart(t *testing.T) {
	session := NewCoverageSession(nil)

	require.NoError(t, session.Start(m.SessionConfig{}))
	require.Error(t, session.Start(m.SessionConfig{}))
}

func TestSession_StartRejectsBadPatterns(t *testing.T) {
	session := NewCoverageSession(nil)

	err := session.Start(m.SessionConfig{IncludePatterns: []string{"("}})
	require.Error(t, err)
}

func TestSession_TrackedFileAppearsUnexecuted(t *testing.T) {
	session, _ := newBranchySession(t, m.SessionConfig{TrackBlocks: true})

	records := session.Stop()
	require.Len(t, records, 1)

	record := records[0]
	require.Equal(t, 4, record.Totals.ExecutableLines)
	require.Zero(t, record.Totals.ExecutedLines)
	require.Zero(t, record.LinePercent)
	require.Zero(t, record.OverallPercent)
}

func TestSession_RecordExecutionCountsAndPropagates(t *testing.T) {
	session, path := newBranchySession(t, m.SessionConfig{TrackBlocks: true})

	session.RecordExecution(path, 1)
	session.RecordExecution(path, 2)
	session.RecordExecution(path, 3)

	records := session.Stop()
	record := records[0]

	require.Equal(t, uint64(1), record.Lines[2].ExecutionCount)
	require.False(t, record.Lines[2].Covered, "execution alone never covers")

	require.True(t, record.Blocks[0].Executed, "top-level block reached")
	require.True(t, record.Blocks[1].Executed, "if branch reached")
	require.False(t, record.Blocks[2].Executed, "else branch not reached")

	require.Equal(t, 2, record.Totals.ExecutedBlocks)
	require.Equal(t, 3, record.Totals.TotalBlocks)
}

func TestSession_BranchCoverageHalfExecuted(t *testing.T) {
	src := []byte(branchySource)
	path := m.Path("script.lua")

	analysis := branchyAnalysis(src)
	analysis.Blocks = []m.Block{
		{ID: 0, Kind: m.BlockConditional, StartLine: 3, EndLine: 3, ParentID: m.NoParent},
		{ID: 1, Kind: m.BlockConditional, StartLine: 5, EndLine: 5, ParentID: m.NoParent},
	}

	fs := newFakeFS(map[m.Path][]byte{path: src})

	cache := newStubCache()
	cache.seed(analysis)

	session := NewCoverageSession(NewAnalyzer(fs, cache, m.ClassifierPolicy{}))
	require.NoError(t, session.Start(m.SessionConfig{TrackBlocks: true}))

	session.RecordExecution(path, 3)

	record := session.Stop()[0]

	require.True(t, record.Blocks[0].Executed)
	require.False(t, record.Blocks[1].Executed)
	require.InDelta(t, 50.0, record.BlockPercent, 0.001)
}

func TestSession_BlockCountsStayOnOwnLines(t *testing.T) {
	session, path := newBranchySession(t, m.SessionConfig{TrackBlocks: true})

	session.RecordExecution(path, 3)
	session.RecordExecution(path, 3)
	session.RecordExecution(path, 1)

	records := session.Stop()
	record := records[0]

	require.Equal(t, uint64(2), record.Blocks[1].ExecutionCount, "branch counts its own lines only")
	require.Equal(t, uint64(1), record.Blocks[0].ExecutionCount, "parent does not absorb nested events")
}

func TestSession_EventsOnNonExecutableLinesDropped(t *testing.T) {
	session, path := newBranchySession(t, m.SessionConfig{TrackBlocks: true})

	session.RecordExecution(path, 4) // bare else
	session.RecordExecution(path, 0)
	session.RecordExecution(path, 99)

	records := session.Stop()
	record := records[0]

	require.Zero(t, record.Totals.ExecutedLines)

	for _, block := range record.Blocks {
		require.False(t, block.Executed)
	}
}

func TestSession_MarkCoveredRequiresExecution(t *testing.T) {
	session, path := newBranchySession(t, m.SessionConfig{})

	session.MarkCovered(path, 3)

	session.RecordExecution(path, 3)
	session.MarkCovered(path, 3)
	session.MarkCovered(path, 3) // idempotent
	session.MarkCovered(path, 4) // non-executable, ignored

	records := session.Stop()
	record := records[0]

	require.True(t, record.Lines[2].Covered)
	require.False(t, record.Lines[3].Covered)
	require.Equal(t, 1, record.Totals.CoveredLines)
	require.Equal(t, 1, record.Totals.ExecutedLines)
}

func TestSession_IncludeExcludeFilters(t *testing.T) {
	src := []byte(branchySource)

	fs := newFakeFS(map[m.Path][]byte{
		"src/a.lua":    src,
		"vendor/b.lua": src,
	})

	cache := newStubCache()
	cache.seed(branchyAnalysis(src))

	analyzer := NewAnalyzer(fs, cache, m.ClassifierPolicy{})

	session := NewCoverageSession(analyzer)
	require.NoError(t, session.Start(m.SessionConfig{
		IncludePatterns: []string{`^src/`},
		ExcludePatterns: []string{`vendor/`},
	}))

	require.NoError(t, session.Track(context.Background(), "src/a.lua"))
	require.NoError(t, session.Track(context.Background(), "vendor/b.lua"))

	session.RecordExecution("vendor/b.lua", 1)

	records := session.Stop()
	require.Len(t, records, 1)
	require.Equal(t, m.Path("src/a.lua"), records[0].Path)
}

func TestSession_UnreadableFileKeptWithFlag(t *testing.T) {
	fs := newFakeFS(nil)
	analyzer := NewAnalyzer(fs, newStubCache(), m.ClassifierPolicy{})

	session := NewCoverageSession(analyzer)
	require.NoError(t, session.Start(m.SessionConfig{}))

	err := session.Track(context.Background(), "missing.lua")
	require.Error(t, err)

	records := session.Stop()
	require.Len(t, records, 1)
	require.True(t, records[0].Unreadable)
}

func TestSession_InactiveSessionIgnoresEvents(t *testing.T) {
	session, path := newBranchySession(t, m.SessionConfig{})

	records := session.Stop()
	require.Len(t, records, 1)

	session.RecordExecution(path, 3)
	session.MarkCovered(path, 3)

	records = session.Stop()
	require.Zero(t, records[0].Totals.ExecutedLines)
}

func TestSession_ResetClearsState(t *testing.T) {
	session, path := newBranchySession(t, m.SessionConfig{})

	session.RecordExecution(path, 1)
	session.Reset()

	require.False(t, session.Active())
	require.Empty(t, session.Stop())
}

func TestSession_DefaultWeightsApplied(t *testing.T) {
	session, _ := newBranchySession(t, m.SessionConfig{})

	require.Equal(t, m.DefaultOverallWeights(), session.Config().Weights)
}
