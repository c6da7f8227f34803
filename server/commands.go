package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emberdb/ember/protocol"
)

// executeCommand validates and dispatches one decoded command.
// Validation happens before any mutation, so a failed command never
// leaves partial state behind.
func (c *Client) executeCommand(cmd *protocol.Command) {
	c.server.mu.Lock()
	c.server.commandCount++
	c.server.mu.Unlock()

	started := time.Now()
	defer func() {
		c.server.metrics.RecordCommand(cmd.Name, time.Since(started))
	}()

	// Check authentication first
	if !c.authenticated && cmd.Name != "AUTH" && cmd.Name != "QUIT" {
		c.writeError("NOAUTH Authentication required")
		return
	}

	// A subscribed connection only accepts the subscription commands
	if len(c.subscribed) > 0 {
		switch cmd.Name {
		case "SUBSCRIBE", "UNSUBSCRIBE", "PING", "QUIT":
		default:
			c.writeError(fmt.Sprintf("ERR Can't execute '%s': only (P|S)SUBSCRIBE / (P|S)UNSUBSCRIBE / PING / QUIT / RESET are allowed in this context", strings.ToLower(cmd.Name)))
			return
		}
	}

	// Between MULTI and EXEC everything else is queued
	if c.inMulti {
		switch cmd.Name {
		case "MULTI":
			c.writeError("ERR MULTI calls can not be nested")
		case "EXEC":
			c.handleExec(cmd)
		case "DISCARD":
			c.handleDiscard(cmd)
		default:
			c.queueCommand(cmd)
		}
		return
	}

	c.dispatchCommand(cmd)
}

// dispatchCommand routes one command to its handler
func (c *Client) dispatchCommand(cmd *protocol.Command) {
	switch cmd.Name {
	// Connection
	case "AUTH":
		c.handleAuth(cmd)
	case "PING":
		c.handlePing(cmd)
	case "ECHO":
		c.handleEcho(cmd)
	case "SELECT":
		c.handleSelect(cmd)
	case "QUIT":
		c.writeString("OK")
		c.Close()

	// Generic
	case "DEL":
		c.handleDel(cmd)
	case "EXISTS":
		c.handleExists(cmd)
	case "EXPIRE":
		c.handleExpire(cmd)
	case "TTL":
		c.handleTTL(cmd)
	case "PTTL":
		c.handlePTTL(cmd)
	case "TYPE":
		c.handleType(cmd)
	case "KEYS":
		c.handleKeys(cmd)
	case "SCAN":
		c.handleScan(cmd)
	case "DBSIZE":
		c.writeInteger(c.engine.KeyCount())
	case "FLUSHALL":
		c.engine.FlushAll()
		c.writeString("OK")

	// Strings
	case "GET":
		c.handleGet(cmd)
	case "SET":
		c.handleSet(cmd)
	case "INCR":
		c.handleIncr(cmd)

	// Lists
	case "LPUSH":
		c.handlePush(cmd, true)
	case "RPUSH":
		c.handlePush(cmd, false)
	case "LPOP":
		c.handlePop(cmd, true)
	case "RPOP":
		c.handlePop(cmd, false)
	case "LLEN":
		c.handleLLen(cmd)
	case "LRANGE":
		c.handleLRange(cmd)
	case "BLPOP":
		c.handleBlockingPop(cmd, true)
	case "BRPOP":
		c.handleBlockingPop(cmd, false)

	// Sets
	case "SADD":
		c.handleSAdd(cmd)
	case "SREM":
		c.handleSRem(cmd)
	case "SMEMBERS":
		c.handleSMembers(cmd)
	case "SISMEMBER":
		c.handleSIsMember(cmd)
	case "SCARD":
		c.handleSCard(cmd)

	// Sorted sets
	case "ZADD":
		c.handleZAdd(cmd)
	case "ZRANGE":
		c.handleZRange(cmd)
	case "ZSCORE":
		c.handleZScore(cmd)
	case "ZRANK":
		c.handleZRank(cmd)
	case "ZCARD":
		c.handleZCard(cmd)
	case "ZREM":
		c.handleZRem(cmd)

	// Geo
	case "GEOADD":
		c.handleGeoAdd(cmd)
	case "GEOPOS":
		c.handleGeoPos(cmd)
	case "GEODIST":
		c.handleGeoDist(cmd)
	case "GEOSEARCH":
		c.handleGeoSearch(cmd)

	// Streams
	case "XADD":
		c.handleXAdd(cmd)
	case "XLEN":
		c.handleXLen(cmd)
	case "XRANGE":
		c.handleXRange(cmd)
	case "XREAD":
		c.handleXRead(cmd)

	// Pub/sub
	case "SUBSCRIBE":
		c.handleSubscribe(cmd)
	case "UNSUBSCRIBE":
		c.handleUnsubscribe(cmd)
	case "PUBLISH":
		c.handlePublish(cmd)

	// Transactions
	case "MULTI":
		c.handleMulti(cmd)
	case "EXEC":
		c.writeError("ERR EXEC without MULTI")
	case "DISCARD":
		c.writeError("ERR DISCARD without MULTI")

	// Scripting
	case "EVAL":
		c.handleEval(cmd)
	case "EVALSHA":
		c.handleEvalSHA(cmd)
	case "SCRIPT":
		c.handleScript(cmd)

	default:
		c.writeError(fmt.Sprintf("ERR unknown command '%s'", cmd.Name))
	}
}

// wrongArity writes the standard arity error for name
func (c *Client) wrongArity(name string) {
	c.writeError(fmt.Sprintf("ERR wrong number of arguments for '%s' command", strings.ToLower(name)))
}

// Connection handlers

func (c *Client) handleAuth(cmd *protocol.Command) {
	if len(cmd.Args) != 1 {
		c.wrongArity("auth")
		return
	}

	if c.server.password == "" {
		c.writeError("ERR Client sent AUTH, but no password is set")
		return
	}

	if string(cmd.Args[0]) == c.server.password {
		c.authenticated = true
		c.writeString("OK")
	} else {
		c.writeError("ERR invalid password")
	}
}

func (c *Client) handlePing(cmd *protocol.Command) {
	if len(cmd.Args) == 0 {
		c.writeString("PONG")
	} else if len(cmd.Args) == 1 {
		c.writeBulkString(cmd.Args[0])
	} else {
		c.wrongArity("ping")
	}
}

func (c *Client) handleEcho(cmd *protocol.Command) {
	if len(cmd.Args) != 1 {
		c.wrongArity("echo")
		return
	}
	c.writeBulkString(cmd.Args[0])
}

func (c *Client) handleSelect(cmd *protocol.Command) {
	if len(cmd.Args) != 1 {
		c.wrongArity("select")
		return
	}

	db, err := strconv.Atoi(string(cmd.Args[0]))
	if err != nil {
		c.writeError("ERR invalid DB index")
		return
	}

	// Swap this connection's engine handle; other connections keep
	// whatever database they selected.
	view, err := c.engine.Database(db)
	if err != nil {
		c.writeError("ERR DB index is out of range")
		return
	}

	c.engine = view
	c.db = db
	c.writeString("OK")
}

// Generic handlers

func (c *Client) handleDel(cmd *protocol.Command) {
	if len(cmd.Args) == 0 {
		c.wrongArity("del")
		return
	}

	keys := make([]string, len(cmd.Args))
	for i, arg := range cmd.Args {
		keys[i] = string(arg)
	}

	deleted := c.engine.Del(keys...)
	c.writeInteger(deleted)
}

func (c *Client) handleExists(cmd *protocol.Command) {
	if len(cmd.Args) == 0 {
		c.wrongArity("exists")
		return
	}

	keys := make([]string, len(cmd.Args))
	for i, arg := range cmd.Args {
		keys[i] = string(arg)
	}

	count := c.engine.Exists(keys...)
	c.writeInteger(count)
}

func (c *Client) handleExpire(cmd *protocol.Command) {
	if len(cmd.Args) != 2 {
		c.wrongArity("expire")
		return
	}

	seconds, err := strconv.ParseInt(string(cmd.Args[1]), 10, 64)
	if err != nil {
		c.writeError("ERR value is not an integer or out of range")
		return
	}

	expiry := time.Now().Add(time.Duration(seconds) * time.Second)
	if c.engine.Expire(string(cmd.Args[0]), expiry) {
		c.writeInteger(1)
	} else {
		c.writeInteger(0)
	}
}

func (c *Client) handleTTL(cmd *protocol.Command) {
	if len(cmd.Args) != 1 {
		c.wrongArity("ttl")
		return
	}

	ttl := c.engine.TTL(string(cmd.Args[0]))
	c.writeInteger(int64(ttl.Round(time.Second) / time.Second))
}

func (c *Client) handlePTTL(cmd *protocol.Command) {
	if len(cmd.Args) != 1 {
		c.wrongArity("pttl")
		return
	}

	pttl := c.engine.PTTL(string(cmd.Args[0]))
	c.writeInteger(int64(pttl / time.Millisecond))
}

func (c *Client) handleType(cmd *protocol.Command) {
	if len(cmd.Args) != 1 {
		c.wrongArity("type")
		return
	}

	kind, exists := c.engine.Type(string(cmd.Args[0]))
	if !exists {
		c.writeString("none")
		return
	}
	c.writeString(kind.String())
}

func (c *Client) handleKeys(cmd *protocol.Command) {
	if len(cmd.Args) != 1 {
		c.wrongArity("keys")
		return
	}

	keys := c.engine.Keys(string(cmd.Args[0]))
	values := make([]protocol.Value, len(keys))
	for i, key := range keys {
		values[i] = protocol.BulkStringFromString(key)
	}
	c.writeValue(protocol.Array(values...))
}

func (c *Client) handleScan(cmd *protocol.Command) {
	if len(cmd.Args) < 1 {
		c.wrongArity("scan")
		return
	}

	cursor, err := strconv.ParseInt(string(cmd.Args[0]), 10, 64)
	if err != nil {
		c.writeError("ERR invalid cursor")
		return
	}

	match := ""
	count := int64(10)
	for i := 1; i < len(cmd.Args); i += 2 {
		if i+1 >= len(cmd.Args) {
			c.writeError("ERR syntax error")
			return
		}
		switch strings.ToUpper(string(cmd.Args[i])) {
		case "MATCH":
			match = string(cmd.Args[i+1])
		case "COUNT":
			count, err = strconv.ParseInt(string(cmd.Args[i+1]), 10, 64)
			if err != nil || count <= 0 {
				c.writeError("ERR value is not an integer or out of range")
				return
			}
		default:
			c.writeError("ERR syntax error")
			return
		}
	}

	nextCursor, keys := c.engine.Scan(cursor, match, count)
	keyValues := make([]protocol.Value, len(keys))
	for i, key := range keys {
		keyValues[i] = protocol.BulkStringFromString(key)
	}
	c.writeValue(protocol.Array(
		protocol.BulkStringFromString(strconv.FormatInt(nextCursor, 10)),
		protocol.Array(keyValues...),
	))
}

// Scripting handlers

func (c *Client) handleEval(cmd *protocol.Command) {
	if len(cmd.Args) < 2 {
		c.wrongArity("eval")
		return
	}

	script := string(cmd.Args[0])
	keys, args, ok := c.parseScriptArgs(cmd)
	if !ok {
		return
	}

	result, err := c.server.lua.ForStorage(c.engine).Eval(script, keys, args)
	if err != nil {
		c.writeError(fmt.Sprintf("ERR %v", err))
		return
	}

	c.writeValue(resultToValue(result))
}

func (c *Client) handleEvalSHA(cmd *protocol.Command) {
	if len(cmd.Args) < 2 {
		c.wrongArity("evalsha")
		return
	}

	sha := string(cmd.Args[0])
	keys, args, ok := c.parseScriptArgs(cmd)
	if !ok {
		return
	}

	result, err := c.server.lua.ForStorage(c.engine).EvalSHA(sha, keys, args)
	if err != nil {
		c.writeError(fmt.Sprintf("ERR %v", err))
		return
	}

	c.writeValue(resultToValue(result))
}

// parseScriptArgs splits EVAL/EVALSHA arguments into keys and args
func (c *Client) parseScriptArgs(cmd *protocol.Command) ([]string, []string, bool) {
	numKeys, err := strconv.Atoi(string(cmd.Args[1]))
	if err != nil {
		c.writeError("ERR value is not an integer or out of range")
		return nil, nil, false
	}

	if numKeys < 0 || len(cmd.Args) < 2+numKeys {
		c.writeError("ERR Number of keys can't be negative or greater than args")
		return nil, nil, false
	}

	keys := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		keys[i] = string(cmd.Args[2+i])
	}

	args := make([]string, len(cmd.Args)-2-numKeys)
	for i := 0; i < len(args); i++ {
		args[i] = string(cmd.Args[2+numKeys+i])
	}

	return keys, args, true
}

func (c *Client) handleScript(cmd *protocol.Command) {
	if len(cmd.Args) == 0 {
		c.wrongArity("script")
		return
	}

	subCmd := strings.ToUpper(string(cmd.Args[0]))

	switch subCmd {
	case "LOAD":
		if len(cmd.Args) != 2 {
			c.writeError("ERR wrong number of arguments for 'script load' command")
			return
		}
		sha := c.server.lua.LoadScript(string(cmd.Args[1]))
		c.writeBulkString([]byte(sha))

	case "EXISTS":
		if len(cmd.Args) < 2 {
			c.writeError("ERR wrong number of arguments for 'script exists' command")
			return
		}
		hashes := make([]string, len(cmd.Args)-1)
		for i := 1; i < len(cmd.Args); i++ {
			hashes[i-1] = string(cmd.Args[i])
		}
		results := c.server.lua.ScriptExists(hashes)

		values := make([]protocol.Value, len(results))
		for i, exists := range results {
			if exists {
				values[i] = protocol.Integer(1)
			} else {
				values[i] = protocol.Integer(0)
			}
		}
		c.writeValue(protocol.Array(values...))

	case "FLUSH":
		if len(cmd.Args) != 1 {
			c.writeError("ERR wrong number of arguments for 'script flush' command")
			return
		}
		c.server.lua.ScriptFlush()
		c.writeString("OK")

	default:
		c.writeError(fmt.Sprintf("ERR unknown SCRIPT subcommand '%s'", subCmd))
	}
}

// resultToValue converts a Lua engine result to a reply value
func resultToValue(result interface{}) protocol.Value {
	switch v := result.(type) {
	case nil:
		return protocol.NullBulkString()
	case bool:
		if v {
			return protocol.Integer(1)
		}
		return protocol.NullBulkString()
	case string:
		return protocol.BulkStringFromString(v)
	case int64:
		return protocol.Integer(v)
	case float64:
		return protocol.BulkStringFromString(fmt.Sprintf("%.17g", v))
	case []byte:
		return protocol.BulkString(v)
	case []interface{}:
		values := make([]protocol.Value, len(v))
		for i, item := range v {
			values[i] = resultToValue(item)
		}
		return protocol.Array(values...)
	default:
		return protocol.BulkStringFromString(fmt.Sprintf("%v", v))
	}
}
