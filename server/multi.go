package server

import "github.com/emberdb/ember/protocol"

// handleMulti opens a transaction. Commands that follow are queued
// and run back to back on EXEC; no other connection's command is
// interleaved with the queue's replies.
func (c *Client) handleMulti(cmd *protocol.Command) {
	if len(cmd.Args) != 0 {
		c.wrongArity("multi")
		return
	}

	c.inMulti = true
	c.multiQueue = c.multiQueue[:0]
	c.writeString("OK")
}

// queueCommand appends one command to the open transaction
func (c *Client) queueCommand(cmd *protocol.Command) {
	c.multiQueue = append(c.multiQueue, cmd)
	c.writeString("QUEUED")
}

// handleExec runs the queued commands in order and replies with one
// array holding each command's reply
func (c *Client) handleExec(cmd *protocol.Command) {
	if len(cmd.Args) != 0 {
		c.wrongArity("exec")
		return
	}

	queue := c.multiQueue
	c.multiQueue = nil
	c.inMulti = false

	// Each queued command writes its own reply; the array header in
	// front turns those replies into the EXEC reply's elements.
	c.writeArrayHeader(len(queue))
	for _, queued := range queue {
		switch queued.Name {
		case "BLPOP", "BRPOP", "SUBSCRIBE", "UNSUBSCRIBE":
			c.writeError("ERR Unsupported operation in MULTI block")
		default:
			c.dispatchCommand(queued)
		}
	}
}

// handleDiscard drops the queued commands and leaves the transaction
func (c *Client) handleDiscard(cmd *protocol.Command) {
	if len(cmd.Args) != 0 {
		c.wrongArity("discard")
		return
	}

	c.multiQueue = nil
	c.inMulti = false
	c.writeString("OK")
}
