// Package script wires EVAL/EVALSHA/SCRIPT into gopher-lua, exposing a
// redis.call/redis.pcall surface that round-trips through the same
// typed command dispatch every client command goes through.
package script

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// Executor runs one command by name and returns its result as plain Go
// values (string/int64/bool/nil/[]interface{}), the same shape the Lua
// conversion helpers below expect. The session/dispatch layer supplies
// this so script stays ignorant of the RESP encoding.
type Executor interface {
	ExecuteCommand(name string, args ...interface{}) (interface{}, error)
}

// Engine caches loaded scripts by SHA1 and evaluates them against an
// Executor, matching EVAL/EVALSHA/SCRIPT semantics.
type Engine struct {
	mu       sync.Mutex
	cache    map[string]string // sha1 -> source
	executor Executor
}

func NewEngine(executor Executor) *Engine {
	return &Engine{cache: make(map[string]string), executor: executor}
}

// Eval runs script with the given KEYS/ARGV bound.
func (e *Engine) Eval(source string, keys, args []string) (interface{}, error) {
	L := lua.NewState()
	defer L.Close()

	e.registerRedisAPI(L)
	setArrayGlobal(L, "KEYS", keys)
	setArrayGlobal(L, "ARGV", args)

	if err := L.DoString(source); err != nil {
		return nil, fmt.Errorf("ERR Error running script: %v", err)
	}
	return convertLuaToGo(L.Get(-1)), nil
}

// EvalSHA runs a previously loaded script by its hash.
func (e *Engine) EvalSHA(sha string, keys, args []string) (interface{}, error) {
	e.mu.Lock()
	source, ok := e.cache[sha]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("NOSCRIPT No matching script. Please use EVAL")
	}
	return e.Eval(source, keys, args)
}

// Load caches source under its SHA1 hash and returns the hash.
func (e *Engine) Load(source string) string {
	sum := sha1.Sum([]byte(source))
	hash := hex.EncodeToString(sum[:])
	e.mu.Lock()
	e.cache[hash] = source
	e.mu.Unlock()
	return hash
}

// Exists reports, per hash, whether it is currently cached.
func (e *Engine) Exists(hashes []string) []bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]bool, len(hashes))
	for i, h := range hashes {
		_, out[i] = e.cache[h]
	}
	return out
}

// Flush clears the script cache.
func (e *Engine) Flush() {
	e.mu.Lock()
	e.cache = make(map[string]string)
	e.mu.Unlock()
}

func setArrayGlobal(L *lua.LState, name string, vals []string) {
	t := L.NewTable()
	for i, v := range vals {
		t.RawSetInt(i+1, lua.LString(v))
	}
	L.SetGlobal(name, t)
}

func (e *Engine) registerRedisAPI(L *lua.LState) {
	redisTable := L.NewTable()

	redisTable.RawSetString("call", L.NewFunction(func(L *lua.LState) int {
		result, err := e.invoke(L)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(convertGoToLua(L, result))
		return 1
	}))

	redisTable.RawSetString("pcall", L.NewFunction(func(L *lua.LState) int {
		result, err := e.invoke(L)
		if err != nil {
			errTable := L.NewTable()
			errTable.RawSetString("err", lua.LString(err.Error()))
			L.Push(errTable)
			return 1
		}
		L.Push(convertGoToLua(L, result))
		return 1
	}))

	redisTable.RawSetString("log", L.NewFunction(func(L *lua.LState) int { return 0 }))

	redisTable.RawSetString("status_reply", L.NewFunction(func(L *lua.LState) int {
		t := L.NewTable()
		t.RawSetString("ok", lua.LString(L.CheckString(1)))
		L.Push(t)
		return 1
	}))

	redisTable.RawSetString("error_reply", L.NewFunction(func(L *lua.LState) int {
		t := L.NewTable()
		t.RawSetString("err", lua.LString(L.CheckString(1)))
		L.Push(t)
		return 1
	}))

	L.SetGlobal("redis", redisTable)
}

func (e *Engine) invoke(L *lua.LState) (interface{}, error) {
	n := L.GetTop()
	if n < 1 {
		return nil, fmt.Errorf("ERR redis.call requires at least one argument")
	}
	name := L.CheckString(1)
	args := make([]interface{}, n-1)
	for i := 2; i <= n; i++ {
		args[i-2] = convertLuaToGo(L.Get(i))
	}
	return e.executor.ExecuteCommand(name, args...)
}

func convertLuaToGo(lv lua.LValue) interface{} {
	switch v := lv.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return int64(v)
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if ok := v.RawGetString("ok"); ok != lua.LNil {
			return map[string]interface{}{"ok": convertLuaToGo(ok)}
		}
		if errv := v.RawGetString("err"); errv != lua.LNil {
			return map[string]interface{}{"err": convertLuaToGo(errv)}
		}
		isArray, maxN := true, 0
		v.ForEach(func(k, _ lua.LValue) {
			if num, ok := k.(lua.LNumber); ok {
				if int(num) > maxN {
					maxN = int(num)
				}
			} else {
				isArray = false
			}
		})
		if isArray && maxN > 0 {
			arr := make([]interface{}, maxN)
			for i := 1; i <= maxN; i++ {
				arr[i-1] = convertLuaToGo(v.RawGetInt(i))
			}
			return arr
		}
		m := make(map[string]interface{})
		v.ForEach(func(k, val lua.LValue) {
			if s, ok := k.(lua.LString); ok {
				m[string(s)] = convertLuaToGo(val)
			}
		})
		return m
	default:
		return nil
	}
}

func convertGoToLua(L *lua.LState, v interface{}) lua.LValue {
	if v == nil {
		return lua.LFalse
	}
	switch val := v.(type) {
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []interface{}:
		t := L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, convertGoToLua(L, item))
		}
		return t
	default:
		return lua.LNil
	}
}
