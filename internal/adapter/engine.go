package adapter

import (
	"context"

	m "lunacov.dev/pkg/lunacov/internal/model"
)

// LineHook is the callback a script engine invokes on line events. It is
// registered once and invoked many times, synchronously on the execution
// goroutine; it must never block.
type LineHook func(path m.Path, line int)

// SourceTransform rewrites source text before the engine compiles it. The
// instrumentation tracker uses it to inject counter calls.
type SourceTransform func(path m.Path, src []byte) ([]byte, error)

// ScriptEngine is the boundary to the Lua runtime executing the code under
// test. Trackers talk to it; nothing else in the engine is coverage-aware.
type ScriptEngine interface {
	// RegisterHitFunc exposes a native counter function to scripts under
	// the given global name. Instrumented chunks call it per line.
	RegisterHitFunc(name string, fn func(fileID, line int))

	// AttachLineHook registers a passive per-line callback. Engines
	// without line-event support return ErrLineHookUnsupported.
	AttachLineHook(hook LineHook) error

	// SetSourceTransform installs a rewrite applied to every chunk
	// loaded through Run.
	SetSourceTransform(transform SourceTransform)

	// Run loads and executes the script at path.
	Run(ctx context.Context, path m.Path) error

	// Close releases the runtime.
	Close() error
}
