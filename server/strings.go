package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/emberdb/ember/protocol"
)

func (c *Client) handleGet(cmd *protocol.Command) {
	if len(cmd.Args) != 1 {
		c.wrongArity("get")
		return
	}

	value, exists, err := c.engine.Get(string(cmd.Args[0]))
	if err != nil {
		c.writeStorageError(err)
		return
	}
	if !exists {
		c.writeNull()
	} else {
		c.writeBulkString(value)
	}
}

func (c *Client) handleSet(cmd *protocol.Command) {
	if len(cmd.Args) < 2 {
		c.wrongArity("set")
		return
	}

	key := string(cmd.Args[0])
	value := cmd.Args[1]

	var expiry *time.Time
	var nx, xx bool

	for i := 2; i < len(cmd.Args); i++ {
		switch strings.ToUpper(string(cmd.Args[i])) {
		case "EX", "PX":
			if i+1 >= len(cmd.Args) || expiry != nil {
				c.writeError("ERR syntax error")
				return
			}
			n, err := strconv.ParseInt(string(cmd.Args[i+1]), 10, 64)
			if err != nil || n <= 0 {
				c.writeError("ERR invalid expire time in 'set' command")
				return
			}
			unit := time.Second
			if strings.ToUpper(string(cmd.Args[i])) == "PX" {
				unit = time.Millisecond
			}
			t := time.Now().Add(time.Duration(n) * unit)
			expiry = &t
			i++
		case "NX":
			if xx {
				c.writeError("ERR syntax error")
				return
			}
			nx = true
		case "XX":
			if nx {
				c.writeError("ERR syntax error")
				return
			}
			xx = true
		default:
			c.writeError("ERR syntax error")
			return
		}
	}

	switch {
	case nx:
		if !c.engine.SetNX(key, value, expiry) {
			c.writeNull()
			return
		}
	case xx:
		if !c.engine.SetXX(key, value, expiry) {
			c.writeNull()
			return
		}
	default:
		if err := c.engine.Set(key, value, expiry); err != nil {
			c.writeStorageError(err)
			return
		}
	}

	c.writeString("OK")
}

func (c *Client) handleIncr(cmd *protocol.Command) {
	if len(cmd.Args) != 1 {
		c.wrongArity("incr")
		return
	}

	n, err := c.engine.Incr(string(cmd.Args[0]))
	if err != nil {
		c.writeStorageError(err)
		return
	}
	c.writeInteger(n)
}
