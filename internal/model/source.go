// Package model defines the data structures for coverage analysis.
package model

// Path represents a file system path.
type Path string

// LineClassification describes what a physical source line can contribute
// to coverage.
type LineClassification int

const (
	// NonExecutable marks blank lines, comment-only lines and other lines
	// that can never run code.
	NonExecutable LineClassification = iota

	// Executable marks lines capable of running code.
	Executable

	// InMultilineConstruct marks lines that are entirely inside a block
	// comment or a long string opened on an earlier line. They count as
	// non-executable for coverage purposes.
	InMultilineConstruct
)

// String returns a short human-readable name for the classification.
func (c LineClassification) String() string {
	switch c {
	case Executable:
		return "executable"
	case InMultilineConstruct:
		return "multiline"
	case NonExecutable:
		return "non-executable"
	}

	return "unknown"
}

// LineRecord holds the coverage state of one physical line.
//
// Invariant: Covered implies ExecutionCount > 0 implies
// Classification == Executable.
type LineRecord struct {
	Classification LineClassification `json:"classification"`
	ExecutionCount uint64             `json:"execution_count"`
	Covered        bool               `json:"covered"`
}

// SourceFile is an immutable snapshot of a file's text plus a content
// fingerprint used to detect staleness of cached analysis results.
type SourceFile struct {
	Path        Path
	Fingerprint string
	Lines       []string
}

// ClassifierPolicy controls the explicit edge-case choices of the source
// classifier.
type ClassifierPolicy struct {
	// KeywordLinesExecutable decides whether lines containing only
	// control-flow keywords ("end", "else", "do", "then") count as
	// executable. Most Lua runtimes never report line events for them,
	// so the default is false.
	KeywordLinesExecutable bool
}

// FileAnalysis bundles the static analysis results for one source file:
// per-line classification plus the block forest and function list.
// It is cached by (path, fingerprint) and shared read-only.
type FileAnalysis struct {
	Path        Path                 `json:"path"`
	Fingerprint string               `json:"fingerprint"`
	Lines       []LineClassification `json:"lines"`
	Blocks      []Block              `json:"blocks"`
	Functions   []FunctionRecord     `json:"functions"`

	// StmtStarts maps 1-based executable lines to the byte offset of their
	// first statement, for the instrumentation backend.
	StmtStarts map[int]int `json:"stmt_starts,omitempty"`

	// ClassificationIncomplete is set when an unterminated multi-line
	// construct forced best-effort classification of the file tail.
	ClassificationIncomplete bool `json:"classification_incomplete,omitempty"`

	// ParseError holds the extractor failure message when the file is in
	// line-classification-only degraded mode.
	ParseError string `json:"parse_error,omitempty"`
}

// ExecutableLines returns the number of lines classified Executable.
func (a *FileAnalysis) ExecutableLines() int {
	count := 0

	for _, c := range a.Lines {
		if c == Executable {
			count++
		}
	}

	return count
}
