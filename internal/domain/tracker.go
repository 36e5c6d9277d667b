package domain

import (
	"fmt"

	"lunacov.dev/pkg/lunacov/internal/adapter"
	m "lunacov.dev/pkg/lunacov/internal/model"
)

// Tracker is the contract shared by the two runtime tracking backends. A
// backend is selected at session start and never mixed mid-session.
type Tracker interface {
	// Attach wires the tracker to the script engine that will run the
	// code under test.
	Attach(engine adapter.ScriptEngine) error

	// RecordExecution feeds one execution event into the session.
	RecordExecution(path m.Path, line int)

	// Flush applies any buffered deltas to the session. Safe to call at
	// any point; stopping mid-run never loses already-flushed data.
	Flush() error
}

// NewTracker builds the backend selected in the session config.
func NewTracker(session *CoverageSession, analyzer *Analyzer) (Tracker, error) {
	switch session.Config().Backend {
	case m.BackendTraceHook:
		return NewTraceHookTracker(session, PerLine), nil
	case m.BackendInstrument:
		return NewInstrumentTracker(session, analyzer), nil
	}

	return nil, fmt.Errorf("unknown tracker backend %q", session.Config().Backend)
}
