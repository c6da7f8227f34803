package lua

import (
	"strings"
	"testing"

	"github.com/emberdb/ember/storage"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	stor := storage.NewMemory()
	t.Cleanup(func() { _ = stor.Close() })
	return NewEngine(stor)
}

func TestLuaEngine_BasicExecution(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name     string
		script   string
		keys     []string
		args     []string
		expected interface{}
	}{
		{
			name:     "simple return",
			script:   "return 'hello'",
			expected: "hello",
		},
		{
			name:     "return number",
			script:   "return 42",
			expected: int64(42),
		},
		{
			name:     "return float",
			script:   "return 3.5",
			expected: 3.5,
		},
		{
			name:     "access KEYS",
			script:   "return KEYS[1]",
			keys:     []string{"mykey"},
			expected: "mykey",
		},
		{
			name:     "access ARGV",
			script:   "return ARGV[1]",
			args:     []string{"myarg"},
			expected: "myarg",
		},
		{
			name:     "concatenate KEYS and ARGV",
			script:   "return KEYS[1] .. ':' .. ARGV[1]",
			keys:     []string{"user"},
			args:     []string{"123"},
			expected: "user:123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Eval(tt.script, tt.keys, tt.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestLuaEngine_RedisCommands(t *testing.T) {
	engine := newTestEngine(t)

	result, err := engine.Eval("return redis.call('SET', KEYS[1], ARGV[1])", []string{"k"}, []string{"v"})
	if err != nil {
		t.Fatalf("SET via redis.call error = %v", err)
	}
	if result != "OK" {
		t.Errorf("SET = %v, want OK", result)
	}

	result, err = engine.Eval("return redis.call('GET', KEYS[1])", []string{"k"}, nil)
	if err != nil {
		t.Fatalf("GET via redis.call error = %v", err)
	}
	if result != "v" {
		t.Errorf("GET = %v, want v", result)
	}

	// Missing keys come back as false in Lua, nil to the caller
	result, err = engine.Eval("return redis.call('GET', 'missing')", nil, nil)
	if err != nil {
		t.Fatalf("GET missing error = %v", err)
	}
	if result != false {
		t.Errorf("GET missing = %v, want false", result)
	}

	result, err = engine.Eval("return redis.call('INCR', 'n') + redis.call('INCR', 'n')", nil, nil)
	if err != nil {
		t.Fatalf("INCR error = %v", err)
	}
	if result != int64(3) {
		t.Errorf("INCR sum = %v, want 3", result)
	}

	result, err = engine.Eval("redis.call('RPUSH', 'l', 'a', 'b'); return redis.call('LLEN', 'l')", nil, nil)
	if err != nil {
		t.Fatalf("RPUSH/LLEN error = %v", err)
	}
	if result != int64(2) {
		t.Errorf("LLEN = %v, want 2", result)
	}
}

func TestLuaEngine_PCallErrors(t *testing.T) {
	engine := newTestEngine(t)

	// pcall turns command errors into {err=...} tables
	result, err := engine.Eval("local r = redis.pcall('UNSUPPORTED'); return r.err", nil, nil)
	if err != nil {
		t.Fatalf("pcall error = %v", err)
	}
	msg, ok := result.(string)
	if !ok || !strings.Contains(msg, "unknown or unsupported command") {
		t.Errorf("pcall err = %v, want unsupported command message", result)
	}

	// call propagates the error to the caller
	if _, err := engine.Eval("return redis.call('UNSUPPORTED')", nil, nil); err == nil {
		t.Error("redis.call with unsupported command succeeded")
	}
}

func TestLuaEngine_ScriptCache(t *testing.T) {
	engine := newTestEngine(t)

	sha := engine.LoadScript("return 'cached'")
	if len(sha) != 40 {
		t.Errorf("LoadScript() sha length = %d, want 40", len(sha))
	}

	result, err := engine.EvalSHA(sha, nil, nil)
	if err != nil {
		t.Fatalf("EvalSHA() error = %v", err)
	}
	if result != "cached" {
		t.Errorf("EvalSHA() = %v, want cached", result)
	}

	if _, err := engine.EvalSHA("0000000000000000000000000000000000000000", nil, nil); err == nil {
		t.Error("EvalSHA() with unknown hash succeeded")
	}

	exists := engine.ScriptExists([]string{sha, "unknown"})
	if !exists[0] || exists[1] {
		t.Errorf("ScriptExists() = %v, want [true false]", exists)
	}

	engine.ScriptFlush()
	exists = engine.ScriptExists([]string{sha})
	if exists[0] {
		t.Error("script survived ScriptFlush()")
	}
}

func TestLuaEngine_TableResults(t *testing.T) {
	engine := newTestEngine(t)

	result, err := engine.Eval("return {1, 'two', 3}", nil, nil)
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}

	arr, ok := result.([]interface{})
	if !ok {
		t.Fatalf("result type = %T, want []interface{}", result)
	}
	if len(arr) != 3 || arr[0] != int64(1) || arr[1] != "two" || arr[2] != int64(3) {
		t.Errorf("result = %v, want [1 two 3]", arr)
	}
}

func TestLuaEngine_SyntaxError(t *testing.T) {
	engine := newTestEngine(t)

	if _, err := engine.Eval("this is not lua !!!", nil, nil); err == nil {
		t.Error("Eval() with invalid syntax succeeded")
	}
}
