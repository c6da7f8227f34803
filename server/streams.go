package server

import (
	"strconv"
	"strings"

	"github.com/emberdb/ember/protocol"
	"github.com/emberdb/ember/storage"
)

func (c *Client) handleXAdd(cmd *protocol.Command) {
	if len(cmd.Args) < 4 || len(cmd.Args)%2 != 0 {
		c.wrongArity("xadd")
		return
	}

	key := string(cmd.Args[0])
	rawID := string(cmd.Args[1])

	fields := make([]storage.StreamField, 0, (len(cmd.Args)-2)/2)
	for i := 2; i < len(cmd.Args); i += 2 {
		fields = append(fields, storage.StreamField{
			Name:  cmd.Args[i],
			Value: cmd.Args[i+1],
		})
	}

	id, err := c.engine.XAdd(key, rawID, fields)
	if err != nil {
		c.writeStorageError(err)
		return
	}
	c.writeBulkString([]byte(id.String()))
}

func (c *Client) handleXLen(cmd *protocol.Command) {
	if len(cmd.Args) != 1 {
		c.wrongArity("xlen")
		return
	}

	length, err := c.engine.XLen(string(cmd.Args[0]))
	if err != nil {
		c.writeStorageError(err)
		return
	}
	c.writeInteger(length)
}

func (c *Client) handleXRange(cmd *protocol.Command) {
	if len(cmd.Args) != 3 {
		c.wrongArity("xrange")
		return
	}

	entries, err := c.engine.XRange(string(cmd.Args[0]), string(cmd.Args[1]), string(cmd.Args[2]))
	if err != nil {
		c.writeStorageError(err)
		return
	}
	c.writeValue(streamEntriesValue(entries))
}

func (c *Client) handleXRead(cmd *protocol.Command) {
	if len(cmd.Args) < 3 {
		c.wrongArity("xread")
		return
	}

	i := 0
	count := 0
	if strings.ToUpper(string(cmd.Args[i])) == "COUNT" {
		if i+1 >= len(cmd.Args) {
			c.writeError("ERR syntax error")
			return
		}
		n, err := strconv.Atoi(string(cmd.Args[i+1]))
		if err != nil {
			c.writeError("ERR value is not an integer or out of range")
			return
		}
		count = n
		i += 2
	}

	if i >= len(cmd.Args) || strings.ToUpper(string(cmd.Args[i])) != "STREAMS" {
		c.writeError("ERR syntax error")
		return
	}
	i++

	rest := cmd.Args[i:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		c.writeError("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified.")
		return
	}

	n := len(rest) / 2
	keys := make([]string, n)
	after := make([]storage.StreamID, n)
	for j := 0; j < n; j++ {
		keys[j] = string(rest[j])
		raw := string(rest[n+j])
		if raw == "$" {
			id, err := c.engine.XLastID(keys[j])
			if err != nil {
				c.writeStorageError(err)
				return
			}
			after[j] = id
			continue
		}
		id, err := storage.ParseReadID(raw)
		if err != nil {
			c.writeStorageError(err)
			return
		}
		after[j] = id
	}

	var results []protocol.Value
	for j := 0; j < n; j++ {
		entries, err := c.engine.XReadAfter(keys[j], after[j])
		if err != nil {
			c.writeStorageError(err)
			return
		}
		if len(entries) == 0 {
			continue
		}
		if count > 0 && len(entries) > count {
			entries = entries[:count]
		}
		results = append(results, protocol.Array(
			protocol.BulkStringFromString(keys[j]),
			streamEntriesValue(entries),
		))
	}

	if len(results) == 0 {
		c.writeNullArray()
		return
	}
	c.writeValue(protocol.Array(results...))
}

// streamEntriesValue renders entries as [[id, [field, value, ...]], ...]
func streamEntriesValue(entries []storage.StreamEntry) protocol.Value {
	values := make([]protocol.Value, len(entries))
	for i, entry := range entries {
		fields := make([]protocol.Value, 0, len(entry.Fields)*2)
		for _, f := range entry.Fields {
			fields = append(fields,
				protocol.BulkString(f.Name),
				protocol.BulkString(f.Value),
			)
		}
		values[i] = protocol.Array(
			protocol.BulkStringFromString(entry.ID.String()),
			protocol.Array(fields...),
		)
	}
	return protocol.Array(values...)
}
