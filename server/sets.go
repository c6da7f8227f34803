package server

import "github.com/emberdb/ember/protocol"

func (c *Client) handleSAdd(cmd *protocol.Command) {
	if len(cmd.Args) < 2 {
		c.wrongArity("sadd")
		return
	}

	added, err := c.engine.SAdd(string(cmd.Args[0]), cmd.Args[1:]...)
	if err != nil {
		c.writeStorageError(err)
		return
	}
	c.writeInteger(added)
}

func (c *Client) handleSRem(cmd *protocol.Command) {
	if len(cmd.Args) < 2 {
		c.wrongArity("srem")
		return
	}

	removed, err := c.engine.SRem(string(cmd.Args[0]), cmd.Args[1:]...)
	if err != nil {
		c.writeStorageError(err)
		return
	}
	c.writeInteger(removed)
}

func (c *Client) handleSMembers(cmd *protocol.Command) {
	if len(cmd.Args) != 1 {
		c.wrongArity("smembers")
		return
	}

	members, err := c.engine.SMembers(string(cmd.Args[0]))
	if err != nil {
		c.writeStorageError(err)
		return
	}

	values := make([]protocol.Value, len(members))
	for i, member := range members {
		values[i] = protocol.BulkString(member)
	}
	c.writeValue(protocol.Array(values...))
}

func (c *Client) handleSIsMember(cmd *protocol.Command) {
	if len(cmd.Args) != 2 {
		c.wrongArity("sismember")
		return
	}

	isMember, err := c.engine.SIsMember(string(cmd.Args[0]), cmd.Args[1])
	if err != nil {
		c.writeStorageError(err)
		return
	}

	if isMember {
		c.writeInteger(1)
	} else {
		c.writeInteger(0)
	}
}

func (c *Client) handleSCard(cmd *protocol.Command) {
	if len(cmd.Args) != 1 {
		c.wrongArity("scard")
		return
	}

	card, err := c.engine.SCard(string(cmd.Args[0]))
	if err != nil {
		c.writeStorageError(err)
		return
	}
	c.writeInteger(card)
}
