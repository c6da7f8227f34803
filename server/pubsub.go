package server

import (
	"sync"

	"github.com/emberdb/ember/protocol"
)

// pubsub tracks which clients are subscribed to which channels.
// Channels are a plain namespace independent of the keyspace and of
// the selected database.
type pubsub struct {
	mu   sync.Mutex
	subs map[string]map[*Client]struct{}
}

func newPubSub() *pubsub {
	return &pubsub{
		subs: make(map[string]map[*Client]struct{}),
	}
}

// subscribe adds c to channel and returns c's resulting subscription count
func (p *pubsub) subscribe(c *Client, channel string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	clients, ok := p.subs[channel]
	if !ok {
		clients = make(map[*Client]struct{})
		p.subs[channel] = clients
	}
	clients[c] = struct{}{}
	c.subscribed[channel] = struct{}{}
	return len(c.subscribed)
}

// unsubscribe removes c from channel and returns c's remaining count
func (p *pubsub) unsubscribe(c *Client, channel string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if clients, ok := p.subs[channel]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(p.subs, channel)
		}
	}
	delete(c.subscribed, channel)
	return len(c.subscribed)
}

// dropClient removes a disconnecting client from every channel. The
// client's own subscription set is left alone; the connection is gone.
func (p *pubsub) dropClient(c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for channel, clients := range p.subs {
		delete(clients, c)
		if len(clients) == 0 {
			delete(p.subs, channel)
		}
	}
}

// publish sends a message to every client subscribed to channel and
// returns the number of receivers
func (p *pubsub) publish(channel string, payload []byte) int64 {
	p.mu.Lock()
	targets := make([]*Client, 0, len(p.subs[channel]))
	for c := range p.subs[channel] {
		targets = append(targets, c)
	}
	p.mu.Unlock()

	message := protocol.Array(
		protocol.BulkStringFromString("message"),
		protocol.BulkStringFromString(channel),
		protocol.BulkString(payload),
	)

	count := int64(0)
	for _, c := range targets {
		c.writeValue(message)
		count++
	}
	return count
}

// handleSubscribe subscribes the connection to one or more channels,
// replying once per channel. A subscribed connection switches into
// subscribe mode where only subscription commands are accepted.
func (c *Client) handleSubscribe(cmd *protocol.Command) {
	if len(cmd.Args) == 0 {
		c.wrongArity("subscribe")
		return
	}

	for _, arg := range cmd.Args {
		channel := string(arg)
		n := c.server.pubsub.subscribe(c, channel)
		c.writeValue(protocol.Array(
			protocol.BulkStringFromString("subscribe"),
			protocol.BulkStringFromString(channel),
			protocol.Integer(int64(n)),
		))
	}
}

// handleUnsubscribe drops the given channels, or every subscription
// when called without arguments
func (c *Client) handleUnsubscribe(cmd *protocol.Command) {
	channels := make([]string, 0, len(cmd.Args))
	for _, arg := range cmd.Args {
		channels = append(channels, string(arg))
	}
	if len(channels) == 0 {
		for channel := range c.subscribed {
			channels = append(channels, channel)
		}
	}

	if len(channels) == 0 {
		c.writeValue(protocol.Array(
			protocol.BulkStringFromString("unsubscribe"),
			protocol.NullBulkString(),
			protocol.Integer(0),
		))
		return
	}

	for _, channel := range channels {
		n := c.server.pubsub.unsubscribe(c, channel)
		c.writeValue(protocol.Array(
			protocol.BulkStringFromString("unsubscribe"),
			protocol.BulkStringFromString(channel),
			protocol.Integer(int64(n)),
		))
	}
}

// handlePublish delivers a message to current subscribers and replies
// with the receiver count
func (c *Client) handlePublish(cmd *protocol.Command) {
	if len(cmd.Args) != 2 {
		c.wrongArity("publish")
		return
	}

	count := c.server.pubsub.publish(string(cmd.Args[0]), cmd.Args[1])
	c.writeInteger(count)
}
