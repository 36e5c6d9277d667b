package domain

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"

	"lunacov.dev/pkg/lunacov/internal/adapter"
	m "lunacov.dev/pkg/lunacov/internal/model"
)

// HitFuncName is the global the instrumented chunks call per executable line.
const HitFuncName = "__lunacov_hit"

// flushThreshold bounds the pending delta buffer.
const flushThreshold = 4096

// hitEvent is one buffered execution delta.
type hitEvent struct {
	path m.Path
	line int
}

// rewriteKey identifies one instrumented rendition of a file. The path is
// part of the key because identical content under two paths gets two
// distinct file IDs spliced in.
type rewriteKey struct {
	path        m.Path
	fingerprint string
}

// InstrumentTracker rewrites loaded source, inserting a counter call before
// the first statement of every executable line. Calls are inserted on the
// same physical line, so original line numbers survive instrumentation and
// the only mapping needed is from the chunk's file ID back to its path.
// Rewritten text is cached per path and fingerprint; the injected calls
// carry the file ID, so two identical files still report separately.
type InstrumentTracker struct {
	session  *CoverageSession
	analyzer *Analyzer
	engine   adapter.ScriptEngine

	paths   []m.Path       // file ID -> path
	ids     map[m.Path]int // path -> file ID
	rewrite map[rewriteKey][]byte

	pending []hitEvent

	// hookFallback is set once the engine accepted a line hook after an
	// instrumentation failure, so broken files keep trace-hook coverage.
	hookFallback bool
}

// NewInstrumentTracker creates the instrumentation backend.
func NewInstrumentTracker(session *CoverageSession, analyzer *Analyzer) *InstrumentTracker {
	return &InstrumentTracker{
		session:  session,
		analyzer: analyzer,
		ids:      map[m.Path]int{},
		rewrite:  map[rewriteKey][]byte{},
	}
}

// Attach registers the hit counter and the source transform with the engine.
func (t *InstrumentTracker) Attach(engine adapter.ScriptEngine) error {
	t.engine = engine

	engine.RegisterHitFunc(HitFuncName, t.onHit)
	engine.SetSourceTransform(t.Instrument)

	return nil
}

func (t *InstrumentTracker) onHit(fileID, line int) {
	if fileID < 0 || fileID >= len(t.paths) {
		slog.Debug("hit for unknown file id", "file_id", fileID, "line", line)
		return
	}

	t.pending = append(t.pending, hitEvent{path: t.paths[fileID], line: line})

	if len(t.pending) >= flushThreshold {
		_ = t.Flush()
	}
}

// RecordExecution buffers one event; Flush applies it to the session.
func (t *InstrumentTracker) RecordExecution(path m.Path, line int) {
	t.pending = append(t.pending, hitEvent{path: path, line: line})

	if len(t.pending) >= flushThreshold {
		_ = t.Flush()
	}
}

// Flush drains the pending delta buffer into the session.
func (t *InstrumentTracker) Flush() error {
	for _, event := range t.pending {
		t.session.RecordExecution(event.path, event.line)
	}

	t.pending = t.pending[:0]

	return nil
}

// Instrument rewrites src so that every executable line reports itself
// before running. Files that cannot be instrumented (parse failure) fall
// back to the trace-hook backend when the engine supports it; otherwise the
// original source runs untracked rather than failing the session.
func (t *InstrumentTracker) Instrument(path m.Path, src []byte) ([]byte, error) {
	if err := t.session.Track(context.Background(), path); err != nil {
		return nil, err
	}

	analysis, ok := t.session.Analysis(path)
	if !ok {
		// Excluded from tracking, run unmodified.
		return src, nil
	}

	key := rewriteKey{path: path, fingerprint: analysis.Fingerprint}

	if cached, hit := t.rewrite[key]; hit {
		return cached, nil
	}

	if analysis.ParseError != "" {
		t.fallbackToHook(path, analysis.ParseError)
		return src, nil
	}

	rewritten := injectHits(src, analysis, t.fileID(path))

	t.rewrite[key] = rewritten

	slog.Debug("instrumented source", "path", path, "bytes", len(rewritten))

	return rewritten, nil
}

func (t *InstrumentTracker) fileID(path m.Path) int {
	if id, ok := t.ids[path]; ok {
		return id
	}

	id := len(t.paths)
	t.paths = append(t.paths, path)
	t.ids[path] = id

	return id
}

func (t *InstrumentTracker) fallbackToHook(path m.Path, reason string) {
	if t.hookFallback {
		return
	}

	if t.engine == nil {
		return
	}

	err := t.engine.AttachLineHook(t.session.RecordExecution)
	if err != nil {
		slog.Warn("instrumentation failed and engine has no line hook, file runs untracked",
			"path", path, "reason", reason, "error", err)
		return
	}

	t.hookFallback = true

	slog.Warn("instrumentation failed, falling back to trace hook", "path", path, "reason", reason)
}

// injectHits splices "__lunacov_hit(id,line); " in front of the first
// statement of every executable line, back to front so recorded byte
// offsets stay valid during the splice.
func injectHits(src []byte, analysis m.FileAnalysis, fileID int) []byte {
	type insertion struct {
		offset int
		line   int
	}

	insertions := make([]insertion, 0, len(analysis.StmtStarts))

	for line, offset := range analysis.StmtStarts {
		if line < 1 || line > len(analysis.Lines) {
			continue
		}

		if analysis.Lines[line-1] != m.Executable {
			continue
		}

		insertions = append(insertions, insertion{offset: offset, line: line})
	}

	sort.Slice(insertions, func(i, j int) bool { return insertions[i].offset > insertions[j].offset })

	out := src

	for _, ins := range insertions {
		if ins.offset > len(out) {
			continue
		}

		call := fmt.Sprintf("%s(%d,%d); ", HitFuncName, fileID, ins.line)

		var buf bytes.Buffer
		buf.Grow(len(out) + len(call))
		buf.Write(out[:ins.offset])
		buf.WriteString(call)
		buf.Write(out[ins.offset:])

		out = buf.Bytes()
	}

	return out
}
