// Package rpcclient implements the RPC client engine: a background
// receiver goroutine per connection, a request-id-keyed pending table with
// exactly-once completion, synchronous calls with timeout, fire-and-forget
// notify, and connection-loss fan-out.
package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"dipc/envelope"
	"dipc/frame"
	"dipc/rpcerr"
)

// state is the client's connection lifecycle, matching spec.md's
// {Idle, Running, Stopping, Stopped} state machine.
type state int32

const (
	stateIdle state = iota
	stateRunning
	stateStopping
	stateStopped
)

// pendingEntry is client-side bookkeeping for one in-flight request. done
// guards against completing it more than once; result is published on
// resultCh exactly once.
type pendingEntry struct {
	resultCh chan rpcerr.Result
	done     bool
}

// Client multiplexes many in-flight requests over one connection.
type Client struct {
	conn net.Conn
	log  *zap.Logger

	state    atomic.Int32
	nextID   atomic.Uint64
	sendMu   sync.Mutex
	recvDone chan struct{}
	decoder  frame.Decoder
	stopOnce sync.Once

	mu      sync.Mutex
	pending map[uint64]*pendingEntry
}

// New wraps conn in a Client. conn is owned by the Client for its lifetime:
// Stop is the unique closer.
func New(conn net.Conn, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		conn:    conn,
		log:     log,
		pending: make(map[uint64]*pendingEntry),
	}
	// nextID.Add(1) on the first Call must yield 1, so the counter starts
	// one below the first id actually handed out.
	c.nextID.Store(0)
	c.state.Store(int32(stateIdle))
	return c
}

// IsRunning reports whether the client's receiver goroutine is active.
func (c *Client) IsRunning() bool {
	return state(c.state.Load()) == stateRunning
}

// Start transitions Idle -> Running and launches the receiver goroutine.
// Calling Start again while already Running is a no-op success.
func (c *Client) Start() error {
	if c.conn == nil {
		return rpcerr.New(rpcerr.ConnectionLost, "invalid_socket")
	}
	if !c.state.CompareAndSwap(int32(stateIdle), int32(stateRunning)) {
		// Already running (or past running): idempotent no-op.
		return nil
	}
	c.recvDone = make(chan struct{})
	go c.recvLoop()
	return nil
}

// Stop transitions Running -> Stopping -> Stopped: it closes the
// connection, waits for the receiver goroutine to exit, and fails every
// still-pending entry with ConnectionLost. Calling Stop more than once is a
// no-op.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		wasRunning := c.state.CompareAndSwap(int32(stateRunning), int32(stateStopping))
		if !wasRunning {
			// Never started (Idle), or the receiver already exited after
			// losing the connection: close the connection, nothing to join.
			if c.conn != nil {
				c.conn.Close()
			}
			c.state.Store(int32(stateStopped))
			c.failAll(rpcerr.Err(rpcerr.ConnectionLost, "connection_lost"))
			return
		}

		if c.conn != nil {
			c.conn.Close()
		}
		if c.recvDone != nil {
			<-c.recvDone
		}

		c.failAll(rpcerr.Err(rpcerr.ConnectionLost, "connection_lost"))
		c.state.Store(int32(stateStopped))
	})
}

// Call sends a request and blocks until a response arrives, the timeout
// elapses, or the connection is lost. It always returns; it never hangs
// past timeout.
func (c *Client) Call(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	if !c.IsRunning() {
		return nil, rpcerr.New(rpcerr.ConnectionLost, "not_connected")
	}

	id := c.nextID.Add(1)
	entry := &pendingEntry{resultCh: make(chan rpcerr.Result, 1)}

	c.mu.Lock()
	c.pending[id] = entry
	c.mu.Unlock()

	body, err := envelope.NewRequestBody(method, params)
	if err != nil {
		c.complete(id, rpcerr.Err(rpcerr.InternalError, "encode_failed"))
		return nil, fmt.Errorf("encode request: %w", err)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		c.complete(id, rpcerr.Err(rpcerr.InternalError, "encode_failed"))
		return nil, fmt.Errorf("encode request: %w", err)
	}

	if !c.sendFrame(frame.NewHeader(frame.MsgRequest, id), payload) {
		completed, result := c.complete(id, rpcerr.Err(rpcerr.ConnectionLost, "send_failed"))
		if completed {
			return resultToReturn(result)
		}
		// The entry was already completed by a concurrent failAll/response
		// before this send-failure was observed; the slot already carries
		// that result.
		return resultToReturn(<-entry.resultCh)
	}

	if timeout <= 0 {
		timeout = time.Millisecond
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-entry.resultCh:
		return resultToReturn(result)
	case <-timer.C:
		completed, result := c.complete(id, rpcerr.Err(rpcerr.Timeout, "timeout"))
		if completed {
			return resultToReturn(result)
		}
		// A response or connection-loss completed the entry in the race
		// window between the timer firing and complete() acquiring the
		// lock; the slot already carries that result.
		return resultToReturn(<-entry.resultCh)
	}
}

func resultToReturn(r rpcerr.Result) (json.RawMessage, error) {
	if r.OK {
		return r.Data, nil
	}
	return nil, r.AsError()
}

// Notify sends a fire-and-forget Event frame with request_id=0. It never
// waits for a reply and reports only whether the send succeeded.
func (c *Client) Notify(method string, params any) bool {
	if !c.IsRunning() {
		return false
	}
	body, err := envelope.NewRequestBody(method, params)
	if err != nil {
		return false
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return false
	}
	return c.sendFrame(frame.NewHeader(frame.MsgEvent, 0), payload)
}

// sendFrame serializes and writes one frame under the send mutex, so
// concurrent callers never interleave bytes from different requests on the
// shared connection.
func (c *Client) sendFrame(h frame.Header, body []byte) bool {
	wire := frame.Encode(h, body)

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	_, err := c.conn.Write(wire)
	return err == nil
}

// recvLoop reads frames until the connection returns EOF/error, routing
// each Response frame to its pending entry. It owns the Decoder
// exclusively; no other goroutine touches it.
func (c *Client) recvLoop() {
	defer close(c.recvDone)

	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n <= 0 || err != nil {
			break
		}

		for _, f := range c.decoder.Feed(buf[:n]) {
			if f.Header.MsgType != frame.MsgResponse || f.Header.RequestID == 0 {
				continue
			}
			result := envelope.ParseResponseBody(f.Body)
			c.complete(f.Header.RequestID, result)
		}
	}

	c.log.Debug("receive loop exited; failing pending calls")
	c.failAll(rpcerr.Err(rpcerr.ConnectionLost, "connection_lost"))
	c.state.CompareAndSwap(int32(stateRunning), int32(stateStopping))
}

// complete performs the one-shot completion of a pending entry: under the
// lock, look it up, flip its done flag, and erase it from the table before
// releasing the lock; only then publish the result to its waiter. Returns
// whether this call was the one that completed the entry, and on success the
// result it published. When another path already completed the entry, it
// returns false and a zero Result; the winner's result is on the entry's
// channel.
func (c *Client) complete(requestID uint64, result rpcerr.Result) (bool, rpcerr.Result) {
	c.mu.Lock()
	entry, ok := c.pending[requestID]
	if !ok {
		c.mu.Unlock()
		return false, rpcerr.Result{}
	}
	if entry.done {
		c.mu.Unlock()
		return false, rpcerr.Result{}
	}
	entry.done = true
	delete(c.pending, requestID)
	c.mu.Unlock()

	entry.resultCh <- result
	return true, result
}

// failAll drains the pending table and completes every remaining entry
// with result, ignoring entries already completed by another path.
func (c *Client) failAll(result rpcerr.Result) {
	c.mu.Lock()
	drained := c.pending
	c.pending = make(map[uint64]*pendingEntry)
	c.mu.Unlock()

	for _, entry := range drained {
		if entry.done {
			continue
		}
		entry.done = true
		entry.resultCh <- result
	}
}
