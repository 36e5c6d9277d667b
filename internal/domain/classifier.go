// Package domain implements the coverage engine: source classification,
// block extraction, runtime tracking and aggregation.
package domain

import (
	"strings"

	m "lunacov.dev/pkg/lunacov/internal/model"
)

// scanMode is the state carried across lines by the classifier.
type scanMode int

const (
	scanNormal scanMode = iota
	scanBlockComment
	scanLongString
)

// Classifier determines a per-line classification for Lua source text.
// Classification is a pure function of the text: the same input always
// yields the same result, independent of runtime behavior.
type Classifier struct {
	policy m.ClassifierPolicy
}

// NewClassifier creates a Classifier with the given policy.
func NewClassifier(policy m.ClassifierPolicy) *Classifier {
	return &Classifier{policy: policy}
}

// keywordOnly lists control-flow keywords that form lines with no statement
// body. Whether such lines count as executable is a policy decision.
var keywordOnly = map[string]bool{
	"end":  true,
	"else": true,
	"do":   true,
	"then": true,
}

// Classify scans the source lines once, front to back, and returns one
// classification per line plus an incomplete flag that is set when a
// multi-line construct was never terminated. In that case the remainder of
// the file is classified as non-executable instead of failing.
func (c *Classifier) Classify(lines []string) ([]m.LineClassification, bool) {
	result := make([]m.LineClassification, len(lines))

	state := lineScanner{}

	for i, line := range lines {
		if i == 0 && strings.HasPrefix(line, "#") {
			// Shebang line, permitted by Lua loaders.
			result[i] = m.NonExecutable
			continue
		}

		openAtStart := state.mode != scanNormal

		code := state.scanLine(line)

		openAtEnd := state.mode != scanNormal

		result[i] = c.classifyLine(code, openAtStart || openAtEnd)
	}

	return result, state.mode != scanNormal
}

func (c *Classifier) classifyLine(code string, multiline bool) m.LineClassification {
	trimmed := strings.TrimSpace(code)

	if trimmed != "" {
		if c.isKeywordOnly(trimmed) && !c.policy.KeywordLinesExecutable {
			return m.NonExecutable
		}

		return m.Executable
	}

	if multiline {
		return m.InMultilineConstruct
	}

	return m.NonExecutable
}

func (c *Classifier) isKeywordOnly(trimmed string) bool {
	for _, field := range strings.Fields(trimmed) {
		if !keywordOnly[field] {
			return false
		}
	}

	return true
}

// lineScanner carries the multi-line construct state between lines.
type lineScanner struct {
	mode scanMode

	// level is the long-bracket level of the currently open construct,
	// e.g. 0 for [[ and 1 for [=[. Identical markers never nest: the
	// first end marker of the same level always closes.
	level int
}

// scanLine consumes one physical line and returns the code text seen outside
// comments and long-string interiors. Short string contents are kept so that
// comment-marker-like sequences inside quoted strings are never misread as
// construct openers.
func (s *lineScanner) scanLine(line string) string {
	var code strings.Builder

	i := 0

	for i < len(line) {
		switch s.mode {
		case scanBlockComment, scanLongString:
			end := findLongBracketClose(line[i:], s.level)
			if end < 0 {
				// Construct continues on the next line.
				return code.String()
			}

			// Trailing text after the close marker reverts to
			// normal scanning on this same line.
			i += end
			s.mode = scanNormal

		case scanNormal:
			i = s.scanNormalChunk(line, i, &code)
		}
	}

	return code.String()
}

// scanNormalChunk scans from offset i until the line ends or a multi-line
// construct opens, appending executable text to code. It returns the next
// offset to continue from.
func (s *lineScanner) scanNormalChunk(line string, i int, code *strings.Builder) int {
	for i < len(line) {
		ch := line[i]

		switch {
		case ch == '\'' || ch == '"':
			end := scanShortString(line, i)
			code.WriteString(line[i:end])
			i = end

		case ch == '-' && i+1 < len(line) && line[i+1] == '-':
			if level, ok := longBracketOpen(line[i+2:]); ok {
				s.mode = scanBlockComment
				s.level = level

				return i + 2 + bracketLen(level)
			}

			// Line comment swallows the rest of the line.
			return len(line)

		case ch == '[':
			if level, ok := longBracketOpen(line[i:]); ok {
				s.mode = scanLongString
				s.level = level

				return i + bracketLen(level)
			}

			code.WriteByte(ch)
			i++

		default:
			code.WriteByte(ch)
			i++
		}
	}

	return i
}

// scanShortString consumes a quoted string starting at i and returns the
// offset just past its closing quote. Backslash escapes are honored. An
// unterminated string simply ends with the line; Lua short strings do not
// span physical lines.
func scanShortString(line string, i int) int {
	quote := line[i]
	i++

	for i < len(line) {
		switch line[i] {
		case '\\':
			i += 2
		case quote:
			return i + 1
		default:
			i++
		}
	}

	return len(line)
}

// longBracketOpen reports whether s starts with a long-bracket opener
// ("[", zero or more "=", "[") and returns its level.
func longBracketOpen(s string) (int, bool) {
	if len(s) == 0 || s[0] != '[' {
		return 0, false
	}

	level := 0
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '=':
			level++
		case '[':
			return level, true
		default:
			return 0, false
		}
	}

	return 0, false
}

// findLongBracketClose returns the offset just past the first closing long
// bracket of the given level in s, or -1 when the construct stays open.
func findLongBracketClose(s string, level int) int {
	marker := "]" + strings.Repeat("=", level) + "]"

	idx := strings.Index(s, marker)
	if idx < 0 {
		return -1
	}

	return idx + len(marker)
}

// bracketLen is the textual length of a long bracket of the given level.
func bracketLen(level int) int {
	return level + 2
}
