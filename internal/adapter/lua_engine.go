package adapter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	lua "github.com/yuin/gopher-lua"

	m "lunacov.dev/pkg/lunacov/internal/model"
)

// LuaEngine runs scripts on a gopher-lua state. gopher-lua implements no
// per-line debug hook, so the engine rejects AttachLineHook and coverage
// runs use the instrumentation tracker instead.
type LuaEngine struct {
	state     *lua.LState
	transform SourceTransform
}

// NewLuaEngine creates a fresh Lua state with the standard libraries open.
func NewLuaEngine() *LuaEngine {
	return &LuaEngine{state: lua.NewState()}
}

// RegisterHitFunc exposes fn as a global two-argument Lua function.
func (e *LuaEngine) RegisterHitFunc(name string, fn func(fileID, line int)) {
	e.state.SetGlobal(name, e.state.NewFunction(func(L *lua.LState) int {
		fn(L.CheckInt(1), L.CheckInt(2))
		return 0
	}))
}

// AttachLineHook always fails: the runtime has no line-event facility.
func (e *LuaEngine) AttachLineHook(_ LineHook) error {
	return m.ErrLineHookUnsupported
}

// SetSourceTransform installs the rewrite applied to every loaded chunk.
func (e *LuaEngine) SetSourceTransform(transform SourceTransform) {
	e.transform = transform
}

// Run loads, optionally rewrites, and executes the script at path. The chunk
// keeps the original path as its name so runtime errors point at the real
// file.
func (e *LuaEngine) Run(ctx context.Context, path m.Path) error {
	src, err := os.ReadFile(string(path))
	if err != nil {
		return fmt.Errorf("read script %s: %w", path, err)
	}

	if e.transform != nil {
		src, err = e.transform(path, src)
		if err != nil {
			return fmt.Errorf("transform script %s: %w", path, err)
		}
	}

	fn, err := e.state.Load(bytes.NewReader(src), "@"+string(path))
	if err != nil {
		return fmt.Errorf("load script %s: %w", path, err)
	}

	e.state.SetContext(ctx)

	e.state.Push(fn)

	if err := e.state.PCall(0, lua.MultRet, nil); err != nil {
		return fmt.Errorf("run script %s: %w", path, err)
	}

	slog.Debug("script finished", "path", path)

	return nil
}

// Close releases the Lua state.
func (e *LuaEngine) Close() error {
	e.state.Close()
	return nil
}
