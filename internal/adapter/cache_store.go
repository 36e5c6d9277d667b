package adapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	m "lunacov.dev/pkg/lunacov/internal/model"
)

// AnalysisCache persists static analysis results keyed by content
// fingerprint, so classifier and extractor run once per file revision.
type AnalysisCache interface {
	// Load returns the cached analysis for the fingerprint, or ok=false
	// on a miss. A stale entry (different fingerprint) is a miss.
	Load(path m.Path, fingerprint string) (m.FileAnalysis, bool)

	// Store saves an analysis result under its fingerprint.
	Store(analysis m.FileAnalysis) error
}

// fileAnalysisCache keeps one JSON document per fingerprint under a cache
// directory, with an in-memory layer in front of it. Tracking analyzes files
// from parallel workers, so the memory layer is guarded by a lock.
type fileAnalysisCache struct {
	dir string

	mu     sync.RWMutex
	memory map[string]m.FileAnalysis
}

// NewAnalysisCache creates a cache rooted at dir. An empty dir disables the
// disk layer and caches in memory only.
func NewAnalysisCache(dir string) AnalysisCache {
	return &fileAnalysisCache{
		dir:    dir,
		memory: map[string]m.FileAnalysis{},
	}
}

func (c *fileAnalysisCache) Load(path m.Path, fingerprint string) (m.FileAnalysis, bool) {
	c.mu.RLock()
	cached, ok := c.memory[fingerprint]
	c.mu.RUnlock()

	if ok {
		return cached, true
	}

	if c.dir == "" {
		return m.FileAnalysis{}, false
	}

	data, err := os.ReadFile(c.entryPath(fingerprint))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("analysis cache read failed", "path", path, "error", err)
		}

		return m.FileAnalysis{}, false
	}

	var analysis m.FileAnalysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		slog.Warn("analysis cache entry corrupt", "path", path, "error", err)
		return m.FileAnalysis{}, false
	}

	if analysis.Fingerprint != fingerprint {
		return m.FileAnalysis{}, false
	}

	c.mu.Lock()
	c.memory[fingerprint] = analysis
	c.mu.Unlock()

	return analysis, true
}

func (c *fileAnalysisCache) Store(analysis m.FileAnalysis) error {
	c.mu.Lock()
	c.memory[analysis.Fingerprint] = analysis
	c.mu.Unlock()

	if c.dir == "" {
		return nil
	}

	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}

	if err := os.WriteFile(c.entryPath(analysis.Fingerprint), data, 0o600); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}

	return nil
}

func (c *fileAnalysisCache) entryPath(fingerprint string) string {
	return filepath.Join(c.dir, fingerprint+".json")
}
