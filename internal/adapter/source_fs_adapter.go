// Package adapter contains infrastructure adapters for the lunacov CLI.
package adapter

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	m "lunacov.dev/pkg/lunacov/internal/model"
)

// SourceFSAdapter abstracts filesystem operations the domain layer relies on
// when scanning projects, so workflow logic can be tested without touching
// the disk.
type SourceFSAdapter interface {
	// Discover walks the provided roots and returns the Lua files that
	// match the include patterns and none of the exclude patterns, in
	// deterministic path order.
	Discover(ctx context.Context, roots []m.Path, include, exclude []string) ([]m.Path, error)

	// ReadFile loads a file from disk and returns its contents.
	ReadFile(path m.Path) ([]byte, error)

	// HashFile returns a stable fingerprint (SHA-256) for the file at path.
	HashFile(path m.Path) (string, error)

	// WriteFile writes content to a file with the given permissions.
	WriteFile(path m.Path, content []byte, perm os.FileMode) error

	// MkdirAll creates a directory and parents.
	MkdirAll(path m.Path, perm os.FileMode) error

	// Glob returns paths matching a shell pattern.
	Glob(pattern string) ([]m.Path, error)
}

// LocalSourceFSAdapter is the disk-backed SourceFSAdapter implementation.
type LocalSourceFSAdapter struct{}

// NewLocalSourceFSAdapter constructs a LocalSourceFSAdapter.
func NewLocalSourceFSAdapter() *LocalSourceFSAdapter {
	return &LocalSourceFSAdapter{}
}

// Discover walks roots collecting .lua files filtered by the patterns.
func (a *LocalSourceFSAdapter) Discover(ctx context.Context, roots []m.Path, include, exclude []string) ([]m.Path, error) {
	includeRes, err := compilePatterns(include)
	if err != nil {
		return nil, fmt.Errorf("include patterns: %w", err)
	}

	excludeRes, err := compilePatterns(exclude)
	if err != nil {
		return nil, fmt.Errorf("exclude patterns: %w", err)
	}

	var paths []m.Path

	for _, root := range roots {
		info, err := os.Stat(string(root))
		if err != nil {
			return nil, fmt.Errorf("root path error: %w", err)
		}

		if !info.IsDir() {
			if matchesFilters(string(root), includeRes, excludeRes) {
				paths = append(paths, root)
			}

			continue
		}

		err = filepath.Walk(string(root), func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			if info.IsDir() || !strings.HasSuffix(path, ".lua") {
				return nil
			}

			if matchesFilters(path, includeRes, excludeRes) {
				paths = append(paths, m.Path(path))
			}

			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return paths, nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
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

func matchesFilters(path string, include, exclude []*regexp.Regexp) bool {
	if len(include) > 0 {
		matched := false

		for _, re := range include {
			if re.MatchString(path) {
				matched = true
				break
			}
		}

		if !matched {
			return false
		}
	}

	for _, re := range exclude {
		if re.MatchString(path) {
			return false
		}
	}

	return true
}

// ReadFile loads file contents from disk.
func (a *LocalSourceFSAdapter) ReadFile(path m.Path) ([]byte, error) {
	return os.ReadFile(string(path))
}

// HashFile returns the SHA-256 hash of the file at the provided path.
func (a *LocalSourceFSAdapter) HashFile(path m.Path) (string, error) {
	f, err := os.Open(string(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// WriteFile writes content to a file with the given permissions.
func (a *LocalSourceFSAdapter) WriteFile(path m.Path, content []byte, perm os.FileMode) error {
	return os.WriteFile(string(path), content, perm)
}

// MkdirAll creates a directory and any missing parents.
func (a *LocalSourceFSAdapter) MkdirAll(path m.Path, perm os.FileMode) error {
	return os.MkdirAll(string(path), perm)
}

// Glob returns paths matching a shell pattern.
func (a *LocalSourceFSAdapter) Glob(pattern string) ([]m.Path, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	paths := make([]m.Path, 0, len(matches))
	for _, match := range matches {
		paths = append(paths, m.Path(match))
	}

	return paths, nil
}

// FingerprintBytes hashes in-memory content the same way HashFile hashes
// files, so snapshots and disk files compare equal.
func FingerprintBytes(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}
