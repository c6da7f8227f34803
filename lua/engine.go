package lua

import (
	"crypto/sha1"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/emberdb/ember/storage"
)

// Engine provides Redis-compatible Lua script execution
type Engine struct {
	engine  storage.Engine
	scripts *sync.Map // map[string]string - SHA1 -> script content
}

// NewEngine creates a new Lua execution engine bound to a data engine
func NewEngine(engine storage.Engine) *Engine {
	return &Engine{
		engine:  engine,
		scripts: &sync.Map{},
	}
}

// ForStorage returns an engine bound to st that shares this engine's
// script cache. Scripts loaded through either handle are visible to
// both.
func (e *Engine) ForStorage(st storage.Engine) *Engine {
	return &Engine{
		engine:  st,
		scripts: e.scripts,
	}
}

// Eval executes a Lua script with the given keys and arguments
func (e *Engine) Eval(script string, keys []string, args []string) (interface{}, error) {
	L := lua.NewState()
	defer L.Close()

	if err := e.setupRedisAPI(L, keys, args); err != nil {
		return nil, err
	}

	if err := L.DoString(script); err != nil {
		return nil, fmt.Errorf("script execution error: %w", err)
	}

	return e.convertLuaValue(L.Get(-1)), nil
}

// EvalSHA executes a previously loaded script by its SHA1 hash
func (e *Engine) EvalSHA(sha1 string, keys []string, args []string) (interface{}, error) {
	script, exists := e.scripts.Load(sha1)
	if !exists {
		return nil, fmt.Errorf("NOSCRIPT No matching script. Please use EVAL")
	}

	return e.Eval(script.(string), keys, args)
}

// LoadScript loads a script and returns its SHA1 hash
func (e *Engine) LoadScript(script string) string {
	hash := fmt.Sprintf("%x", sha1.Sum([]byte(script)))
	e.scripts.Store(hash, script)
	return hash
}

// ScriptExists checks if scripts with given SHA1 hashes exist
func (e *Engine) ScriptExists(hashes []string) []bool {
	results := make([]bool, len(hashes))
	for i, hash := range hashes {
		_, exists := e.scripts.Load(hash)
		results[i] = exists
	}
	return results
}

// ScriptFlush removes all cached scripts
func (e *Engine) ScriptFlush() {
	e.scripts.Range(func(key, value interface{}) bool {
		e.scripts.Delete(key)
		return true
	})
}

// setupRedisAPI configures the Lua state with Redis-compatible functions
func (e *Engine) setupRedisAPI(L *lua.LState, keys []string, args []string) error {
	// Lua arrays are 1-indexed
	keysTable := L.NewTable()
	for i, key := range keys {
		keysTable.RawSetInt(i+1, lua.LString(key))
	}
	L.SetGlobal("KEYS", keysTable)

	argvTable := L.NewTable()
	for i, arg := range args {
		argvTable.RawSetInt(i+1, lua.LString(arg))
	}
	L.SetGlobal("ARGV", argvTable)

	redisTable := L.NewTable()
	L.SetFuncs(redisTable, map[string]lua.LGFunction{
		"call":  e.redisCall,
		"pcall": e.redisPCall,
	})
	L.SetGlobal("redis", redisTable)

	return nil
}

// redisCall implements redis.call()
func (e *Engine) redisCall(L *lua.LState) int {
	result, err := e.executeRedisCommand(L)
	if err != nil {
		L.Error(lua.LString(err.Error()), 1)
		return 0
	}
	L.Push(e.convertToLuaValue(L, result))
	return 1
}

// redisPCall implements redis.pcall(); errors come back as {err=...} tables
func (e *Engine) redisPCall(L *lua.LState) int {
	result, err := e.executeRedisCommand(L)
	if err != nil {
		errTable := L.NewTable()
		errTable.RawSetString("err", lua.LString(err.Error()))
		L.Push(errTable)
		return 1
	}
	L.Push(e.convertToLuaValue(L, result))
	return 1
}

func (e *Engine) executeRedisCommand(L *lua.LState) (interface{}, error) {
	argc := L.GetTop()
	if argc == 0 {
		return nil, fmt.Errorf("wrong number of arguments for redis command")
	}

	cmdName := L.ToString(1)
	if cmdName == "" {
		return nil, fmt.Errorf("command name must be a string")
	}

	args := make([]string, argc-1)
	for i := 2; i <= argc; i++ {
		args[i-2] = L.ToString(i)
	}

	return e.executeCommand(cmdName, args)
}

// executeCommand runs the subset of commands scripts may call
func (e *Engine) executeCommand(cmd string, args []string) (interface{}, error) {
	switch cmd {
	case "GET", "get":
		if len(args) != 1 {
			return nil, fmt.Errorf("wrong number of arguments for 'get' command")
		}
		value, exists, err := e.engine.Get(args[0])
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, nil
		}
		return string(value), nil

	case "SET", "set":
		if len(args) < 2 {
			return nil, fmt.Errorf("wrong number of arguments for 'set' command")
		}
		if err := e.engine.Set(args[0], []byte(args[1]), nil); err != nil {
			return nil, err
		}
		return "OK", nil

	case "INCR", "incr":
		if len(args) != 1 {
			return nil, fmt.Errorf("wrong number of arguments for 'incr' command")
		}
		return e.engine.Incr(args[0])

	case "DEL", "del":
		if len(args) == 0 {
			return nil, fmt.Errorf("wrong number of arguments for 'del' command")
		}
		return e.engine.Del(args...), nil

	case "EXISTS", "exists":
		if len(args) == 0 {
			return nil, fmt.Errorf("wrong number of arguments for 'exists' command")
		}
		return e.engine.Exists(args...), nil

	case "TYPE", "type":
		if len(args) != 1 {
			return nil, fmt.Errorf("wrong number of arguments for 'type' command")
		}
		valueType, exists := e.engine.Type(args[0])
		if !exists {
			return "none", nil
		}
		return valueType.String(), nil

	case "LPUSH", "lpush":
		if len(args) < 2 {
			return nil, fmt.Errorf("wrong number of arguments for 'lpush' command")
		}
		return e.engine.LPush(args[0], stringsToBytes(args[1:])...)

	case "RPUSH", "rpush":
		if len(args) < 2 {
			return nil, fmt.Errorf("wrong number of arguments for 'rpush' command")
		}
		return e.engine.RPush(args[0], stringsToBytes(args[1:])...)

	case "LLEN", "llen":
		if len(args) != 1 {
			return nil, fmt.Errorf("wrong number of arguments for 'llen' command")
		}
		return e.engine.LLen(args[0])

	case "SADD", "sadd":
		if len(args) < 2 {
			return nil, fmt.Errorf("wrong number of arguments for 'sadd' command")
		}
		return e.engine.SAdd(args[0], stringsToBytes(args[1:])...)

	case "SCARD", "scard":
		if len(args) != 1 {
			return nil, fmt.Errorf("wrong number of arguments for 'scard' command")
		}
		return e.engine.SCard(args[0])

	default:
		return nil, fmt.Errorf("unknown or unsupported command: %s", cmd)
	}
}

func stringsToBytes(args []string) [][]byte {
	out := make([][]byte, len(args))
	for i, arg := range args {
		out[i] = []byte(arg)
	}
	return out
}

// convertToLuaValue converts a Go value to a Lua value
func (e *Engine) convertToLuaValue(L *lua.LState, value interface{}) lua.LValue {
	if value == nil {
		return lua.LFalse // Redis nil becomes false in Lua
	}

	switch v := value.(type) {
	case string:
		return lua.LString(v)
	case int64:
		return lua.LNumber(float64(v))
	case int:
		return lua.LNumber(float64(v))
	case float64:
		return lua.LNumber(v)
	case bool:
		return lua.LBool(v)
	case []interface{}:
		table := L.NewTable()
		for i, item := range v {
			table.RawSetInt(i+1, e.convertToLuaValue(L, item))
		}
		return table
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// convertLuaValue converts a Lua value to a Go value
func (e *Engine) convertLuaValue(lv lua.LValue) interface{} {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case *lua.LNilType:
		return nil
	case *lua.LTable:
		if e.isArrayLikeTable(v) {
			var result []interface{}
			v.ForEach(func(k, val lua.LValue) {
				result = append(result, e.convertLuaValue(val))
			})
			return result
		}
		result := make(map[string]interface{})
		v.ForEach(func(k, val lua.LValue) {
			result[k.String()] = e.convertLuaValue(val)
		})
		return result
	default:
		return lv.String()
	}
}

// isArrayLikeTable reports whether a table has consecutive integer keys from 1
func (e *Engine) isArrayLikeTable(table *lua.LTable) bool {
	length := table.Len()
	if length == 0 {
		return true
	}

	for i := 1; i <= length; i++ {
		if table.RawGetInt(i) == lua.LNil {
			return false
		}
	}

	hasNonIntKeys := false
	table.ForEach(func(k, v lua.LValue) {
		if num, ok := k.(lua.LNumber); ok {
			idx := int(num)
			if float64(idx) != float64(num) || idx < 1 || idx > length {
				hasNonIntKeys = true
			}
		} else {
			hasNonIntKeys = true
		}
	})

	return !hasNonIntKeys
}
