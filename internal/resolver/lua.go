package resolver

import (
	"context"
	"fmt"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
)

// LuaResolver runs a Lua script as a capability provider. The script must
// define a global function resolve(action, vars) and return a string,
// number, boolean or table for a handled action, or nil to decline it.
// A fresh interpreter state is created per call so scripts cannot leak
// state between dispatches.
type LuaResolver struct {
	name   string
	script string
}

func NewLuaResolver(name, scriptPath string) *LuaResolver {
	return &LuaResolver{name: name, script: scriptPath}
}

func (l *LuaResolver) Name() string { return l.name }

func (l *LuaResolver) Resolve(ctx context.Context, action string, vars map[string]any) (any, error) {
	ls := lua.NewState()
	defer ls.Close()
	ls.SetContext(ctx)

	absPath, err := filepath.Abs(l.script)
	if err != nil {
		return nil, fmt.Errorf("script path: %w", err)
	}
	if err := ls.DoFile(absPath); err != nil {
		return nil, fmt.Errorf("load script: %w", err)
	}

	fn := ls.GetGlobal("resolve")
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("script must define global function resolve(action, vars), got %s", fn.Type().String())
	}

	ls.Push(fn)
	ls.Push(lua.LString(action))
	ls.Push(varsToTable(ls, vars))
	if err := ls.PCall(2, 1, nil); err != nil {
		return nil, fmt.Errorf("resolve(): %w", err)
	}

	ret := ls.Get(-1)
	ls.Pop(1)
	if ret.Type() == lua.LTNil {
		return nil, ErrUnresolved
	}
	return fromLua(ret), nil
}

func varsToTable(ls *lua.LState, vars map[string]any) *lua.LTable {
	tbl := ls.NewTable()
	for k, v := range vars {
		ls.SetField(tbl, k, toLua(ls, v))
	}
	return tbl
}

func toLua(ls *lua.LState, v any) lua.LValue {
	switch t := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(t)
	case bool:
		return lua.LBool(t)
	case float64:
		return lua.LNumber(t)
	case int:
		return lua.LNumber(t)
	case map[string]any:
		return varsToTable(ls, t)
	case []any:
		tbl := ls.NewTable()
		for _, item := range t {
			tbl.Append(toLua(ls, item))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprintf("%v", t))
	}
}

func fromLua(v lua.LValue) any {
	switch t := v.(type) {
	case lua.LString:
		return string(t)
	case lua.LNumber:
		return float64(t)
	case lua.LBool:
		return t == lua.LTrue
	case *lua.LTable:
		out := make(map[string]any)
		t.ForEach(func(k, val lua.LValue) {
			out[k.String()] = fromLua(val)
		})
		return out
	default:
		return v.String()
	}
}
