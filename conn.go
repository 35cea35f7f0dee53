package roomclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/meshvoice/roomclient/protocol"
)

// wsWriteWait bounds how long one control-channel write may block.
const wsWriteWait = 1 * time.Second

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

// connectAttempt lets concurrent callers wait on one in-flight dial instead
// of racing their own.
type connectAttempt struct {
	done chan struct{}
	err  error
}

// Connect opens the control channel. It resolves exactly once per attempt:
// concurrent callers share the in-flight dial, and a call on an already
// connected client returns immediately.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	switch c.state {
	case stateConnected:
		c.mu.Unlock()
		return nil
	case stateConnecting:
		att := c.attempt
		c.mu.Unlock()
		select {
		case <-att.done:
			return att.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	att := &connectAttempt{done: make(chan struct{})}
	c.attempt = att
	c.state = stateConnecting
	c.mu.Unlock()

	conn, err := c.dial(ctx)

	c.mu.Lock()
	if err == nil && c.closed {
		err = ErrClosed
	}
	att.err = err
	c.attempt = nil
	if err != nil {
		c.state = stateDisconnected
		close(att.done)
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return err
	}
	c.conn = conn
	c.state = stateConnected
	stop := make(chan struct{})
	c.stopKeepalive = stop
	close(att.done)
	c.mu.Unlock()

	c.log.Infof("control channel open: %s", c.opts.Server)
	go c.readLoop(conn)
	go c.keepaliveLoop(stop)
	return nil
}

// dial retries the WebSocket dial on a constant interval, mirroring the
// original client's reconnecting socket (1s between attempts, bounded count).
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn
	op := func() error {
		ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.opts.Server, nil)
		if err != nil {
			return err
		}
		conn = ws
		return nil
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.opts.DialRetryInterval), c.opts.DialMaxRetries),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.opts.Server, err)
	}
	return conn, nil
}

// awaitConnected blocks until the channel is usable: connected already, the
// in-flight dial finishing, or a fresh Connect when fully disconnected.
// Callers of transact never check connection state themselves.
func (c *Client) awaitConnected(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		switch c.state {
		case stateConnected:
			c.mu.Unlock()
			return nil
		case stateConnecting:
			att := c.attempt
			c.mu.Unlock()
			timer := time.NewTimer(c.opts.TransactionTimeout)
			select {
			case <-att.done:
				timer.Stop()
				if att.err != nil {
					return att.err
				}
				// Re-check: the channel may already have dropped again.
			case <-timer.C:
				return ErrTransactionTimeout
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		default:
			c.mu.Unlock()
			return c.Connect(ctx)
		}
	}
}

// maybeReconnect starts a background reconnect if the channel is fully down.
// This is proactive recovery only; the transaction that noticed the outage is
// not retried.
func (c *Client) maybeReconnect() {
	c.mu.Lock()
	down := c.state == stateDisconnected && !c.closed
	c.mu.Unlock()
	if !down {
		return
	}
	go func() {
		if err := c.Connect(context.Background()); err != nil && !errors.Is(err, ErrClosed) {
			c.reportError(fmt.Errorf("reconnect: %w", err))
		}
	}()
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.handleClose(conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleMessage(data)
	}
}

// handleMessage parses one inbound message and routes it: replies to the
// transaction table, everything else to the event router. Malformed payloads
// are reported and dropped.
func (c *Client) handleMessage(data []byte) {
	env, err := protocol.Parse(data)
	if err != nil {
		c.reportError(fmt.Errorf("%w: %v", ErrMalformedMessage, err))
		return
	}
	if env.IsReply() {
		if !c.calls.dispatch(env) {
			c.log.Debugf("dropping reply for unknown transaction %s", env.Transaction)
		}
		return
	}
	c.enqueueEvent(env)
}

// enqueueEvent hands an unsolicited event to the dispatcher goroutine. The
// read loop must never run application callbacks itself: a callback that
// issues a request would then wait on a reply only the read loop can deliver.
func (c *Client) enqueueEvent(env *protocol.Envelope) {
	c.mu.Lock()
	c.events = append(c.events, env)
	c.mu.Unlock()
	select {
	case c.eventSignal <- struct{}{}:
	default:
	}
}

// eventLoop drains queued events in arrival order, one at a time. A slow
// callback delays later events, never replies. One loop runs for the client's
// whole lifetime so reconnects cannot interleave dispatch.
func (c *Client) eventLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.eventSignal:
			for {
				c.mu.Lock()
				if len(c.events) == 0 {
					c.mu.Unlock()
					break
				}
				env := c.events[0]
				c.events = c.events[1:]
				c.mu.Unlock()
				c.routeEvent(env)
			}
		}
	}
}

// handleClose runs the close path once per connection: mark disconnected,
// stop the keepalive, close the socket, then best-effort cleanup of every
// handle. Both the read loop and Close funnel through here; the generation
// check makes the second arrival a no-op.
func (c *Client) handleClose(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = stateDisconnected
	stop := c.stopKeepalive
	c.stopKeepalive = nil
	c.events = nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	_ = conn.Close()
	c.log.Info("control channel closed")
	c.cleanup(context.Background())
}

// keepaliveLoop sends the periodic no-op transaction that detects a silently
// broken channel. Failures go to the error sink; they never tear the channel
// down themselves.
func (c *Client) keepaliveLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(c.opts.KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := c.transact(context.Background(), protocol.TypeKeepalive, nil); err != nil {
				c.reportError(fmt.Errorf("keepalive: %w", err))
			}
		}
	}
}

// writeMessage serializes writes to the socket; gorilla allows only one
// concurrent writer.
func (c *Client) writeMessage(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
