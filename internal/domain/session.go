package domain

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	m "lunacov.dev/pkg/lunacov/internal/model"
)

// CoverageSession owns the mutable coverage state of one test run. It is an
// explicit value, not an ambient singleton: independent sessions (one per
// worker process) may coexist.
//
// Counters are single-writer: trackers record synchronously on the execution
// goroutine, so no internal locking is needed. Stopping a session mid-run is
// safe; partially recorded data stays valid and aggregatable.
type CoverageSession struct {
	analyzer *Analyzer
	config   m.SessionConfig
	active   bool
	files    map[m.Path]*sessionFile
	skipped  map[m.Path]bool

	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// sessionFile is the per-file mutable runtime state.
type sessionFile struct {
	analysis  m.FileAnalysis
	lines     []m.LineRecord
	blocks    []m.Block
	functions []m.FunctionRecord

	// lineBlock holds the innermost block ID per 1-based line, -1 when a
	// line belongs to no block (degraded files).
	lineBlock []int

	// entryFunc maps a function entry line to its index in functions.
	entryFunc map[int]int

	unreadable bool
}

// NewCoverageSession creates an inactive session backed by the analyzer.
func NewCoverageSession(analyzer *Analyzer) *CoverageSession {
	return &CoverageSession{
		analyzer: analyzer,
		files:    map[m.Path]*sessionFile{},
		skipped:  map[m.Path]bool{},
	}
}

// Start activates the session with the given configuration.
func (s *CoverageSession) Start(config m.SessionConfig) error {
	if s.active {
		return fmt.Errorf("session already active")
	}

	if config.Weights == (m.OverallWeights{}) {
		config.Weights = m.DefaultOverallWeights()
	}

	include, err := compileAll(config.IncludePatterns)
	if err != nil {
		return fmt.Errorf("include patterns: %w", err)
	}

	exclude, err := compileAll(config.ExcludePatterns)
	if err != nil {
		return fmt.Errorf("exclude patterns: %w", err)
	}

	s.include = include
	s.exclude = exclude
	s.config = config
	s.active = true

	slog.Debug("coverage session started", "backend", config.Backend, "track_blocks", config.TrackBlocks)

	return nil
}

// Active reports whether the session is accepting execution events.
func (s *CoverageSession) Active() bool {
	return s.active
}

// Config returns the configuration the session was started with.
func (s *CoverageSession) Config() m.SessionConfig {
	return s.config
}

// Track registers a file for coverage before any of it executes, so files
// that never run still appear in the report. Unreadable files are kept with
// an explicit flag rather than dropped.
func (s *CoverageSession) Track(ctx context.Context, path m.Path) error {
	if !s.active {
		return fmt.Errorf("session not active")
	}

	_, err := s.ensure(ctx, path)

	return err
}

func (s *CoverageSession) ensure(ctx context.Context, path m.Path) (*sessionFile, error) {
	if file, ok := s.files[path]; ok {
		return file, nil
	}

	if s.skipped[path] {
		return nil, nil
	}

	if !s.pathTracked(path) {
		s.skipped[path] = true
		return nil, nil
	}

	analysis, err := s.analyzer.Analyze(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		slog.Warn("file unreadable, kept in report with flag", "path", path, "error", err)

		file := &sessionFile{unreadable: true}
		s.files[path] = file

		return file, err
	}

	file := newSessionFile(analysis, s.config.TrackBlocks)
	s.files[path] = file

	return file, nil
}

func newSessionFile(analysis m.FileAnalysis, trackBlocks bool) *sessionFile {
	file := &sessionFile{
		analysis:  analysis,
		lines:     make([]m.LineRecord, len(analysis.Lines)),
		entryFunc: map[int]int{},
		lineBlock: make([]int, len(analysis.Lines)+1),
	}

	for i, class := range analysis.Lines {
		file.lines[i].Classification = class
	}

	for i := range file.lineBlock {
		file.lineBlock[i] = -1
	}

	if trackBlocks {
		file.blocks = append([]m.Block(nil), analysis.Blocks...)

		// Blocks are stored in pre-order, parents before children, so
		// the last writer per line is the innermost block.
		for _, block := range file.blocks {
			for line := block.StartLine; line <= block.EndLine && line < len(file.lineBlock); line++ {
				file.lineBlock[line] = block.ID
			}
		}
	}

	file.functions = append([]m.FunctionRecord(nil), analysis.Functions...)
	for i, function := range file.functions {
		if function.EntryLine > 0 {
			file.entryFunc[function.EntryLine] = i
		}
	}

	return file
}

// RecordExecution increments the execution count of (path, line). Files not
// seen before are analyzed and tracked on the fly; events for lines the
// classifier deems non-executable are dropped, keeping static and dynamic
// views consistent.
func (s *CoverageSession) RecordExecution(path m.Path, line int) {
	if !s.active {
		return
	}

	file, _ := s.ensure(context.Background(), path)
	if file == nil || file.unreadable {
		return
	}

	if line < 1 || line > len(file.lines) {
		slog.Debug("execution event out of range", "path", path, "line", line)
		return
	}

	record := &file.lines[line-1]
	if record.Classification != m.Executable {
		slog.Debug("execution event on non-executable line", "path", path, "line", line)
		return
	}

	record.ExecutionCount++

	if record.ExecutionCount == 1 {
		file.propagateExecuted(line)
	}

	file.countBlockEvent(line)

	if idx, ok := file.entryFunc[line]; ok {
		file.functions[idx].Executed = true
		file.functions[idx].CallCount++
	}
}

// propagateExecuted marks the innermost block containing line and all its
// ancestors as executed, stopping at the first already-marked ancestor.
func (f *sessionFile) propagateExecuted(line int) {
	id := f.lineBlock[line]

	for id != -1 {
		block := &f.blocks[id]
		if block.Executed {
			return
		}

		block.Executed = true

		if block.ParentID == m.NoParent {
			return
		}

		id = block.ParentID
	}
}

// countBlockEvent attributes the event to the innermost block owning the
// line. Nested blocks do not bubble their counts up; a block's count is the
// number of events on its own lines.
func (f *sessionFile) countBlockEvent(line int) {
	if id := f.lineBlock[line]; id != -1 {
		f.blocks[id].ExecutionCount++
	}
}

// MarkCovered flags a line as validated by a passing assertion. It is
// idempotent and a no-op unless the line is executable and has already
// executed, preserving covered ⇒ executed.
func (s *CoverageSession) MarkCovered(path m.Path, line int) {
	if !s.active {
		return
	}

	file, ok := s.files[path]
	if !ok || file.unreadable {
		return
	}

	if line < 1 || line > len(file.lines) {
		return
	}

	record := &file.lines[line-1]
	if record.Classification != m.Executable || record.ExecutionCount == 0 {
		slog.Debug("mark-covered ignored", "path", path, "line", line)
		return
	}

	record.Covered = true
}

// Stop freezes the session and returns its coverage records, sorted by path.
func (s *CoverageSession) Stop() []m.FileCoverageRecord {
	s.active = false

	records := make([]m.FileCoverageRecord, 0, len(s.files))

	for path, file := range s.files {
		records = append(records, s.buildRecord(path, file))
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })

	slog.Debug("coverage session stopped", "files", len(records))

	return records
}

// Reset clears all state so the session value can back an independent run.
func (s *CoverageSession) Reset() {
	s.active = false
	s.files = map[m.Path]*sessionFile{}
	s.skipped = map[m.Path]bool{}
}

func (s *CoverageSession) buildRecord(path m.Path, file *sessionFile) m.FileCoverageRecord {
	record := m.FileCoverageRecord{
		Path:           path,
		OverallWeights: s.config.Weights,
	}

	if file.unreadable {
		record.Unreadable = true
		record.Recompute()

		return record
	}

	record.Fingerprint = file.analysis.Fingerprint
	record.Lines = append([]m.LineRecord(nil), file.lines...)
	record.Blocks = append([]m.Block(nil), file.blocks...)
	record.Functions = append([]m.FunctionRecord(nil), file.functions...)
	record.ClassificationIncomplete = file.analysis.ClassificationIncomplete
	record.ParseError = file.analysis.ParseError
	record.Recompute()

	return record
}

// pathTracked applies the session's include then exclude patterns.
func (s *CoverageSession) pathTracked(path m.Path) bool {
	if len(s.include) > 0 {
		matched := false

		for _, re := range s.include {
			if re.MatchString(string(path)) {
				matched = true
				break
			}
		}

		if !matched {
			return false
		}
	}

	for _, re := range s.exclude {
		if re.MatchString(string(path)) {
			return false
		}
	}

	return true
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))

	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}

		res = append(res, re)
	}

	return res, nil
}

// Analysis returns the static analysis for a tracked file.
func (s *CoverageSession) Analysis(path m.Path) (m.FileAnalysis, bool) {
	file, ok := s.files[path]
	if !ok || file.unreadable {
		return m.FileAnalysis{}, false
	}

	return file.analysis, true
}
