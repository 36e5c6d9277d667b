package domain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lunacov.dev/pkg/lunacov/internal/adapter"
	m "lunacov.dev/pkg/lunacov/internal/model"
)

// fakeFS is an in-memory SourceFSAdapter for domain tests.
type fakeFS struct {
	files   map[m.Path][]byte
	written map[m.Path][]byte
}

func newFakeFS(files map[m.Path][]byte) *fakeFS {
	if files == nil {
		files = map[m.Path][]byte{}
	}

	return &fakeFS{files: files, written: map[m.Path][]byte{}}
}

func (f *fakeFS) Discover(_ context.Context, roots []m.Path, _, _ []string) ([]m.Path, error) {
	var paths []m.Path

	for path := range f.files {
		for _, root := range roots {
			if root == "." || strings.HasPrefix(string(path), string(root)) {
				paths = append(paths, path)
				break
			}
		}
	}

	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })

	return paths, nil
}

func (f *fakeFS) ReadFile(path m.Path) ([]byte, error) {
	content, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}

	return content, nil
}

func (f *fakeFS) HashFile(path m.Path) (string, error) {
	content, err := f.ReadFile(path)
	if err != nil {
		return "", err
	}

	return adapter.FingerprintBytes(content), nil
}

func (f *fakeFS) WriteFile(path m.Path, content []byte, _ os.FileMode) error {
	f.written[path] = content
	return nil
}

func (f *fakeFS) MkdirAll(_ m.Path, _ os.FileMode) error {
	return nil
}

func (f *fakeFS) Glob(pattern string) ([]m.Path, error) {
	var paths []m.Path

	for path := range f.files {
		ok, err := filepath.Match(pattern, string(path))
		if err != nil {
			return nil, err
		}

		if ok {
			paths = append(paths, path)
		}
	}

	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })

	return paths, nil
}

// stubCache is an AnalysisCache seeded with prepared analyses, letting tests
// hand the analyzer block and function structure without a real parse.
type stubCache struct {
	entries map[string]m.FileAnalysis
	stored  []m.FileAnalysis
}

func newStubCache() *stubCache {
	return &stubCache{entries: map[string]m.FileAnalysis{}}
}

func (c *stubCache) seed(analysis m.FileAnalysis) {
	c.entries[analysis.Fingerprint] = analysis
}

func (c *stubCache) Load(_ m.Path, fingerprint string) (m.FileAnalysis, bool) {
	analysis, ok := c.entries[fingerprint]
	return analysis, ok
}

func (c *stubCache) Store(analysis m.FileAnalysis) error {
	c.stored = append(c.stored, analysis)
	c.entries[analysis.Fingerprint] = analysis

	return nil
}

// fakeEngine is a scriptable ScriptEngine double. Run invokes the installed
// transform and then replays the configured line events through whatever the
// tracker registered.
type fakeEngine struct {
	fs *fakeFS

	supportsHooks bool
	hook          adapter.LineHook
	transform     adapter.SourceTransform

	hitFuncName string
	hit         func(fileID, line int)

	// events to replay per Run, as (path, line) pairs.
	events []lineEvent

	// hits to replay per Run through the registered hit func.
	hits [][2]int

	loaded map[m.Path][]byte
	closed bool
}

type lineEvent struct {
	path m.Path
	line int
}

func newFakeEngine(fs *fakeFS, supportsHooks bool) *fakeEngine {
	return &fakeEngine{fs: fs, supportsHooks: supportsHooks, loaded: map[m.Path][]byte{}}
}

func (e *fakeEngine) RegisterHitFunc(name string, fn func(fileID, line int)) {
	e.hitFuncName = name
	e.hit = fn
}

func (e *fakeEngine) AttachLineHook(hook adapter.LineHook) error {
	if !e.supportsHooks {
		return m.ErrLineHookUnsupported
	}

	e.hook = hook

	return nil
}

func (e *fakeEngine) SetSourceTransform(transform adapter.SourceTransform) {
	e.transform = transform
}

func (e *fakeEngine) Run(_ context.Context, path m.Path) error {
	src, err := e.fs.ReadFile(path)
	if err != nil {
		return err
	}

	if e.transform != nil {
		src, err = e.transform(path, src)
		if err != nil {
			return err
		}
	}

	e.loaded[path] = src

	if e.hook != nil {
		for _, event := range e.events {
			e.hook(event.path, event.line)
		}
	}

	if e.hit != nil {
		for _, hit := range e.hits {
			e.hit(hit[0], hit[1])
		}
	}

	return nil
}

func (e *fakeEngine) Close() error {
	e.closed = true
	return nil
}
