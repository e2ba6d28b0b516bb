package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for world logic hooks.
// Single-goroutine access only (game loop). Hot-reload planned via atomic swap.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	// Load core scripts first, then map scripts
	corePath := filepath.Join(scriptsDir, "core")
	if err := e.loadDir(corePath); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load core scripts: %w", err)
	}

	for _, sub := range []string{"world", "maps"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// OnMapEnter calls Lua on_map_enter(map_id). Fired when the player's
// current map changes, whether by seam crossing or by warp.
func (e *Engine) OnMapEnter(mapID string) {
	fn := e.vm.GetGlobal("on_map_enter")
	if fn == lua.LNil {
		return
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LString(mapID)); err != nil {
		e.log.Error("lua on_map_enter error", zap.Error(err), zap.String("map", mapID))
	}
}

// OnWarp calls Lua on_warp(map_id, x, y) after a warp completes.
func (e *Engine) OnWarp(mapID string, x, y int32) {
	fn := e.vm.GetGlobal("on_warp")
	if fn == lua.LNil {
		return
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LString(mapID), lua.LNumber(x), lua.LNumber(y)); err != nil {
		e.log.Error("lua on_warp error", zap.Error(err), zap.String("map", mapID))
	}
}

// CallMapHook invokes a named per-map hook (the map list's on_enter entry).
// Missing hooks are silently skipped so data can name hooks before scripts
// ship them.
func (e *Engine) CallMapHook(name, mapID string) {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		return
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LString(mapID)); err != nil {
		e.log.Error("lua map hook error", zap.Error(err),
			zap.String("hook", name), zap.String("map", mapID))
	}
}

// SpawnPoint holds a spawn coordinate returned by Lua.
type SpawnPoint struct {
	X, Y int32
}

// GetSpawnPoint calls Lua get_spawn_point(map_id).
// Returns nil if no override exists (use the map's default).
func (e *Engine) GetSpawnPoint(mapID string) *SpawnPoint {
	fn := e.vm.GetGlobal("get_spawn_point")
	if fn == lua.LNil {
		return nil
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LString(mapID)); err != nil {
		e.log.Error("lua get_spawn_point error", zap.Error(err), zap.String("map", mapID))
		return nil
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	if result == lua.LNil {
		return nil
	}

	rt, ok := result.(*lua.LTable)
	if !ok {
		return nil
	}

	return &SpawnPoint{
		X: int32(lua.LVAsNumber(rt.RawGetString("x"))),
		Y: int32(lua.LVAsNumber(rt.RawGetString("y"))),
	}
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
