package domain

import (
	"fmt"

	"lunacov.dev/pkg/lunacov/internal/adapter"
	m "lunacov.dev/pkg/lunacov/internal/model"
)

// HookGranularity selects which runtime events the trace-hook backend
// records.
type HookGranularity int

const (
	// PerLine records every line event. Every firing is counted, so
	// counts stay exact even under heavy recursion and loops.
	PerLine HookGranularity = iota

	// PerCall records only function entry lines, trading per-line counts
	// for lower hook overhead.
	PerCall
)

// TraceHookTracker observes execution passively through a line hook the
// runtime invokes synchronously on the execution goroutine. No source is
// modified. The hook closure is registered once and invoked many times; it
// never suspends.
type TraceHookTracker struct {
	session     *CoverageSession
	granularity HookGranularity
}

// NewTraceHookTracker creates the trace-hook backend.
func NewTraceHookTracker(session *CoverageSession, granularity HookGranularity) *TraceHookTracker {
	return &TraceHookTracker{session: session, granularity: granularity}
}

// Attach registers the line hook with the engine.
func (t *TraceHookTracker) Attach(engine adapter.ScriptEngine) error {
	if err := engine.AttachLineHook(t.RecordExecution); err != nil {
		return fmt.Errorf("attach line hook: %w", err)
	}

	return nil
}

// RecordExecution applies one event directly to the session.
func (t *TraceHookTracker) RecordExecution(path m.Path, line int) {
	if t.granularity == PerCall && !t.isFunctionEntry(path, line) {
		return
	}

	t.session.RecordExecution(path, line)
}

func (t *TraceHookTracker) isFunctionEntry(path m.Path, line int) bool {
	analysis, ok := t.session.Analysis(path)
	if !ok {
		return false
	}

	for _, function := range analysis.Functions {
		if function.EntryLine == line {
			return true
		}
	}

	return false
}

// Flush is a no-op: events are applied as they arrive.
func (t *TraceHookTracker) Flush() error {
	return nil
}
