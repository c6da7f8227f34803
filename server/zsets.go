package server

import (
	"strconv"
	"strings"

	"github.com/emberdb/ember/protocol"
	"github.com/emberdb/ember/storage"
)

func (c *Client) handleZAdd(cmd *protocol.Command) {
	if len(cmd.Args) < 3 || len(cmd.Args)%2 == 0 {
		c.wrongArity("zadd")
		return
	}

	key := string(cmd.Args[0])
	members := make([]storage.ZSetMember, 0, (len(cmd.Args)-1)/2)
	for i := 1; i < len(cmd.Args); i += 2 {
		score, err := strconv.ParseFloat(string(cmd.Args[i]), 64)
		if err != nil {
			c.writeError("ERR value is not a valid float")
			return
		}
		members = append(members, storage.ZSetMember{
			Member: string(cmd.Args[i+1]),
			Score:  score,
		})
	}

	added, err := c.engine.ZAdd(key, members...)
	if err != nil {
		c.writeStorageError(err)
		return
	}
	c.writeInteger(added)
}

func (c *Client) handleZRange(cmd *protocol.Command) {
	if len(cmd.Args) < 3 || len(cmd.Args) > 4 {
		c.wrongArity("zrange")
		return
	}

	withScores := false
	if len(cmd.Args) == 4 {
		if !strings.EqualFold(string(cmd.Args[3]), "WITHSCORES") {
			c.writeError("ERR syntax error")
			return
		}
		withScores = true
	}

	start, err1 := strconv.ParseInt(string(cmd.Args[1]), 10, 64)
	stop, err2 := strconv.ParseInt(string(cmd.Args[2]), 10, 64)
	if err1 != nil || err2 != nil {
		c.writeError("ERR value is not an integer or out of range")
		return
	}

	members, err := c.engine.ZRange(string(cmd.Args[0]), start, stop)
	if err != nil {
		c.writeStorageError(err)
		return
	}

	var values []protocol.Value
	if withScores {
		values = make([]protocol.Value, 0, len(members)*2)
		for _, m := range members {
			values = append(values,
				protocol.BulkStringFromString(m.Member),
				protocol.BulkStringFromString(formatScore(m.Score)))
		}
	} else {
		values = make([]protocol.Value, len(members))
		for i, m := range members {
			values[i] = protocol.BulkStringFromString(m.Member)
		}
	}
	c.writeValue(protocol.Array(values...))
}

func (c *Client) handleZScore(cmd *protocol.Command) {
	if len(cmd.Args) != 2 {
		c.wrongArity("zscore")
		return
	}

	score, exists, err := c.engine.ZScore(string(cmd.Args[0]), string(cmd.Args[1]))
	if err != nil {
		c.writeStorageError(err)
		return
	}
	if !exists {
		c.writeNull()
		return
	}
	c.writeBulkString([]byte(formatScore(score)))
}

func (c *Client) handleZRank(cmd *protocol.Command) {
	if len(cmd.Args) != 2 {
		c.wrongArity("zrank")
		return
	}

	rank, exists, err := c.engine.ZRank(string(cmd.Args[0]), string(cmd.Args[1]))
	if err != nil {
		c.writeStorageError(err)
		return
	}
	if !exists {
		c.writeNull()
		return
	}
	c.writeInteger(rank)
}

func (c *Client) handleZCard(cmd *protocol.Command) {
	if len(cmd.Args) != 1 {
		c.wrongArity("zcard")
		return
	}

	card, err := c.engine.ZCard(string(cmd.Args[0]))
	if err != nil {
		c.writeStorageError(err)
		return
	}
	c.writeInteger(card)
}

func (c *Client) handleZRem(cmd *protocol.Command) {
	if len(cmd.Args) < 2 {
		c.wrongArity("zrem")
		return
	}

	members := make([]string, len(cmd.Args)-1)
	for i := 1; i < len(cmd.Args); i++ {
		members[i-1] = string(cmd.Args[i])
	}

	removed, err := c.engine.ZRem(string(cmd.Args[0]), members...)
	if err != nil {
		c.writeStorageError(err)
		return
	}
	c.writeInteger(removed)
}

// formatScore renders a score the way clients expect: integral scores
// without a decimal point
func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'g', -1, 64)
}
