package nexus

import (
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// outcome is the settled result of a pending request.
type outcome struct {
	result json.RawMessage
	err    error
}

// pendingRequest tracks one outstanding call on a streaming transport. The
// channel is buffered so settlement never blocks the settler.
type pendingRequest struct {
	id        string
	ch        chan outcome
	createdAt time.Time
}

// correlator assigns correlation ids and tracks outstanding calls. Removal
// and settlement are a single atomic step: take deletes the entry under the
// lock, so of a timeout and a late response exactly one wins and the other is
// a no-op.
type correlator struct {
	counter atomic.Uint64
	mu      sync.Mutex
	pending map[string]*pendingRequest
}

func newCorrelator() *correlator {
	return &correlator{pending: make(map[string]*pendingRequest)}
}

// nextID derives a fresh correlation id from the per-process counter.
func (c *correlator) nextID(serverID string) string {
	return serverID + "_" + strconv.FormatUint(c.counter.Add(1), 10)
}

// add registers a pending entry for id.
func (c *correlator) add(id string) *pendingRequest {
	pr := &pendingRequest{id: id, ch: make(chan outcome, 1), createdAt: time.Now()}
	c.mu.Lock()
	c.pending[id] = pr
	c.mu.Unlock()
	return pr
}

// take removes and returns the entry for id. Exactly one caller wins.
func (c *correlator) take(id string) (*pendingRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pr, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	return pr, ok
}

// settle takes the entry for id and delivers the outcome to its waiter.
// It reports false when the entry is already gone.
func (c *correlator) settle(id string, result json.RawMessage, err error) bool {
	pr, ok := c.take(id)
	if !ok {
		return false
	}
	pr.ch <- outcome{result: result, err: err}
	return true
}

// size reports the number of outstanding entries.
func (c *correlator) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
