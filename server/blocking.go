package server

import (
	"strconv"
	"sync"
	"time"

	"github.com/emberdb/ember/protocol"
)

// waiterKey identifies a list within one logical database, so a push
// in one database never wakes a pop blocked in another
type waiterKey struct {
	db  int
	key string
}

// listWaiters tracks connections blocked in BLPOP/BRPOP. A waiter
// registers one channel under every key it watches; a push to any of
// those keys signals the channel and the waiter retries its pop.
type listWaiters struct {
	mu      sync.Mutex
	waiting map[waiterKey]map[chan struct{}]struct{}
}

func newListWaiters() *listWaiters {
	return &listWaiters{
		waiting: make(map[waiterKey]map[chan struct{}]struct{}),
	}
}

// register adds ch as a waiter on every key
func (w *listWaiters) register(db int, keys []string, ch chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, key := range keys {
		wk := waiterKey{db: db, key: key}
		chans, ok := w.waiting[wk]
		if !ok {
			chans = make(map[chan struct{}]struct{})
			w.waiting[wk] = chans
		}
		chans[ch] = struct{}{}
	}
}

// unregister removes ch from every key
func (w *listWaiters) unregister(db int, keys []string, ch chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, key := range keys {
		wk := waiterKey{db: db, key: key}
		chans, ok := w.waiting[wk]
		if !ok {
			continue
		}
		delete(chans, ch)
		if len(chans) == 0 {
			delete(w.waiting, wk)
		}
	}
}

// notify signals every waiter registered on key. Signaled waiters race
// for the pushed element; losers re-arm and keep waiting.
func (w *listWaiters) notify(db int, key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for ch := range w.waiting[waiterKey{db: db, key: key}] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// handleBlockingPop implements BLPOP/BRPOP: try each key in order and,
// when all are empty, register a waiter and block until a push to one
// of the keys or the timeout. A timeout of 0 blocks indefinitely.
// Expiry of the timeout replies with a null array.
func (c *Client) handleBlockingPop(cmd *protocol.Command, left bool) {
	name := "brpop"
	if left {
		name = "blpop"
	}

	if len(cmd.Args) < 2 {
		c.wrongArity(name)
		return
	}

	timeoutSecs, err := strconv.ParseFloat(string(cmd.Args[len(cmd.Args)-1]), 64)
	if err != nil || timeoutSecs < 0 {
		c.writeError("ERR timeout is not a float or out of range")
		return
	}

	keys := make([]string, len(cmd.Args)-1)
	for i := 0; i < len(keys); i++ {
		keys[i] = string(cmd.Args[i])
	}

	var deadline <-chan time.Time
	if timeoutSecs > 0 {
		timer := time.NewTimer(time.Duration(timeoutSecs * float64(time.Second)))
		defer timer.Stop()
		deadline = timer.C
	}

	ch := make(chan struct{}, 1)
	c.server.waiters.register(c.db, keys, ch)
	defer c.server.waiters.unregister(c.db, keys, ch)

	for {
		// Registration happens before the pop attempt, so a push
		// racing with an empty result still signals ch.
		for _, key := range keys {
			popped, err := c.tryPop(key, left)
			if err != nil {
				c.writeStorageError(err)
				return
			}
			if popped != nil {
				c.writeValue(protocol.Array(
					protocol.BulkStringFromString(key),
					protocol.BulkString(popped),
				))
				return
			}
		}

		select {
		case <-ch:
		case <-deadline:
			c.writeNullArray()
			return
		case <-c.ctx.Done():
			return
		}
	}
}

// tryPop pops a single element from one end of the list at key
func (c *Client) tryPop(key string, left bool) ([]byte, error) {
	var popped [][]byte
	var err error
	if left {
		popped, err = c.engine.LPop(key, 1)
	} else {
		popped, err = c.engine.RPop(key, 1)
	}
	if err != nil || popped == nil {
		return nil, err
	}
	return popped[0], nil
}
