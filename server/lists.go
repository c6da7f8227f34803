package server

import (
	"strconv"

	"github.com/emberdb/ember/protocol"
)

func (c *Client) handlePush(cmd *protocol.Command, left bool) {
	if len(cmd.Args) < 2 {
		if left {
			c.wrongArity("lpush")
		} else {
			c.wrongArity("rpush")
		}
		return
	}

	key := string(cmd.Args[0])
	elems := cmd.Args[1:]

	var length int64
	var err error
	if left {
		length, err = c.engine.LPush(key, elems...)
	} else {
		length, err = c.engine.RPush(key, elems...)
	}
	if err != nil {
		c.writeStorageError(err)
		return
	}

	// Wake one blocked pop waiting on this key
	c.server.waiters.notify(c.db, key)

	c.writeInteger(length)
}

func (c *Client) handlePop(cmd *protocol.Command, left bool) {
	name := "rpop"
	if left {
		name = "lpop"
	}

	if len(cmd.Args) < 1 || len(cmd.Args) > 2 {
		c.wrongArity(name)
		return
	}

	key := string(cmd.Args[0])
	count := 1
	withCount := false
	if len(cmd.Args) == 2 {
		n, err := strconv.Atoi(string(cmd.Args[1]))
		if err != nil || n < 0 {
			c.writeError("ERR value is out of range, must be positive")
			return
		}
		count = n
		withCount = true
	}

	var popped [][]byte
	var err error
	if left {
		popped, err = c.engine.LPop(key, count)
	} else {
		popped, err = c.engine.RPop(key, count)
	}
	if err != nil {
		c.writeStorageError(err)
		return
	}

	if popped == nil {
		if withCount {
			c.writeNullArray()
		} else {
			c.writeNull()
		}
		return
	}

	if !withCount {
		c.writeBulkString(popped[0])
		return
	}

	values := make([]protocol.Value, len(popped))
	for i, elem := range popped {
		values[i] = protocol.BulkString(elem)
	}
	c.writeValue(protocol.Array(values...))
}

func (c *Client) handleLLen(cmd *protocol.Command) {
	if len(cmd.Args) != 1 {
		c.wrongArity("llen")
		return
	}

	length, err := c.engine.LLen(string(cmd.Args[0]))
	if err != nil {
		c.writeStorageError(err)
		return
	}
	c.writeInteger(length)
}

func (c *Client) handleLRange(cmd *protocol.Command) {
	if len(cmd.Args) != 3 {
		c.wrongArity("lrange")
		return
	}

	start, err1 := strconv.ParseInt(string(cmd.Args[1]), 10, 64)
	stop, err2 := strconv.ParseInt(string(cmd.Args[2]), 10, 64)
	if err1 != nil || err2 != nil {
		c.writeError("ERR value is not an integer or out of range")
		return
	}

	elems, err := c.engine.LRange(string(cmd.Args[0]), start, stop)
	if err != nil {
		c.writeStorageError(err)
		return
	}

	values := make([]protocol.Value, len(elems))
	for i, elem := range elems {
		values[i] = protocol.BulkString(elem)
	}
	c.writeValue(protocol.Array(values...))
}
