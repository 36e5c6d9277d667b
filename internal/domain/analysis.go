package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lunacov.dev/pkg/lunacov/internal/adapter"
	m "lunacov.dev/pkg/lunacov/internal/model"
)

// Analyzer runs the static half of the engine: classification plus block and
// function extraction, cached by content fingerprint.
type Analyzer struct {
	fs         adapter.SourceFSAdapter
	cache      adapter.AnalysisCache
	classifier *Classifier
	extractor  *Extractor
}

// NewAnalyzer creates an Analyzer using the given filesystem and cache.
func NewAnalyzer(fs adapter.SourceFSAdapter, cache adapter.AnalysisCache, policy m.ClassifierPolicy) *Analyzer {
	return &Analyzer{
		fs:         fs,
		cache:      cache,
		classifier: NewClassifier(policy),
		extractor:  NewExtractor(),
	}
}

// Analyze reads and analyzes the file at path.
func (a *Analyzer) Analyze(ctx context.Context, path m.Path) (m.FileAnalysis, error) {
	src, err := a.fs.ReadFile(path)
	if err != nil {
		return m.FileAnalysis{}, fmt.Errorf("read %s: %w", path, err)
	}

	return a.AnalyzeSource(ctx, path, src)
}

// AnalyzeSource analyzes in-memory content, consulting the fingerprint cache
// first. Extraction failure is recovered locally: the file keeps its line
// classification and records the parse error (degraded mode).
func (a *Analyzer) AnalyzeSource(ctx context.Context, path m.Path, src []byte) (m.FileAnalysis, error) {
	fingerprint := adapter.FingerprintBytes(src)

	if cached, ok := a.cache.Load(path, fingerprint); ok {
		cached.Path = path
		return cached, nil
	}

	lines := SplitLines(src)

	classes, incomplete := a.classifier.Classify(lines)

	analysis := m.FileAnalysis{
		Path:                     path,
		Fingerprint:              fingerprint,
		Lines:                    classes,
		ClassificationIncomplete: incomplete,
	}

	extracted, err := a.extractor.Extract(ctx, path, src, classes)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return m.FileAnalysis{}, ctxErr
		}

		slog.Warn("extraction failed, line coverage only", "path", path, "error", err)
		analysis.ParseError = err.Error()
	} else {
		analysis.Blocks = extracted.Blocks
		analysis.Functions = extracted.Functions
		analysis.StmtStarts = extracted.StmtStarts
	}

	if err := a.cache.Store(analysis); err != nil {
		slog.Warn("analysis cache store failed", "path", path, "error", err)
	}

	return analysis, nil
}

// SplitLines splits source bytes into physical lines, tolerating CRLF
// endings. A trailing newline does not produce a phantom last line.
func SplitLines(src []byte) []string {
	text := strings.TrimSuffix(string(src), "\n")
	if text == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	return lines
}
