package roomclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meshvoice/roomclient/protocol"
)

// transactionTable correlates outbound requests with asynchronous inbound
// replies. At most one pending entry exists per id, and exactly one of
// dispatch or remove wins for it: a reply arriving after the timeout already
// fired finds nothing and is dropped, so a caller can never resolve twice or
// resolve late.
type transactionTable struct {
	mu      sync.Mutex
	pending map[string]chan *protocol.Envelope
}

func newTransactionTable() *transactionTable {
	return &transactionTable{pending: make(map[string]chan *protocol.Envelope)}
}

func (t *transactionTable) register(id string) <-chan *protocol.Envelope {
	ch := make(chan *protocol.Envelope, 1)
	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()
	return ch
}

// remove drops a pending entry, reporting whether it was still pending.
func (t *transactionTable) remove(id string) bool {
	t.mu.Lock()
	_, ok := t.pending[id]
	delete(t.pending, id)
	t.mu.Unlock()
	return ok
}

// dispatch resolves the pending transaction matching the envelope, if any.
func (t *transactionTable) dispatch(env *protocol.Envelope) bool {
	t.mu.Lock()
	ch, ok := t.pending[env.Transaction]
	if ok {
		delete(t.pending, env.Transaction)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	ch <- env
	return true
}

// transact performs one correlated request/reply round trip: ensure the
// channel is ready (connecting or triggering initialization as needed), stamp
// a process-unique transaction id, transmit, then wait for the reply, the
// timeout, or ctx.
//
// An error-tagged reply fails the call with *GatewayError. On timeout the
// pending entry is removed and, if the channel is fully down, a reconnect is
// kicked off as a side effect; the caller still gets ErrTransactionTimeout.
func (c *Client) transact(ctx context.Context, typ string, load any) (*protocol.Envelope, error) {
	if err := c.awaitConnected(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", typ, err)
	}

	id := uuid.NewString()
	data, err := json.Marshal(protocol.Request{Type: typ, Load: load, Transaction: id})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", typ, err)
	}

	ch := c.calls.register(id)
	if err := c.writeMessage(data); err != nil {
		c.calls.remove(id)
		return nil, fmt.Errorf("%s: %w", typ, err)
	}

	timer := time.NewTimer(c.opts.TransactionTimeout)
	defer timer.Stop()

	select {
	case env := <-ch:
		if env.IsError() {
			return nil, &GatewayError{Request: typ, Load: env.Load}
		}
		return env, nil
	case <-timer.C:
		c.calls.remove(id)
		c.maybeReconnect()
		return nil, fmt.Errorf("%s: %w", typ, ErrTransactionTimeout)
	case <-ctx.Done():
		c.calls.remove(id)
		return nil, ctx.Err()
	}
}
