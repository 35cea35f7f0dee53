package roomclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meshvoice/roomclient/protocol"
)

// routeEvent dispatches one unsolicited gateway event to the session handle
// it addresses. Unrecognized kinds are ignored, not errors: newer gateways
// may emit more than this client understands.
func (c *Client) routeEvent(env *protocol.Envelope) {
	switch env.Type {
	case protocol.EventTrickle:
		c.onTrickle(env)
	case protocol.EventPublishers:
		var roster []protocol.Participant
		if err := json.Unmarshal(env.Data, &roster); err != nil {
			c.reportError(fmt.Errorf("%w: publishers event: %v", ErrMalformedMessage, err))
			return
		}
		c.addSubscribers(roster)
	case protocol.EventMedia:
		c.onMedia(env)
	case protocol.EventLeaving:
		c.onLeaving(env)
	case protocol.EventInternal:
		c.log.Debugf("internal event from %d: %s", env.Sender, string(env.Data))
	default:
		c.log.Debugf("ignoring event kind %q", env.Type)
	}
}

// handleBySender resolves the handle a gateway event addresses by matching
// the sender against the publisher's and every subscriber's handle id.
func (c *Client) handleBySender(sender protocol.HandleID) sessionHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publisher != nil && c.publisher.HandleID() == sender {
		return c.publisher
	}
	for _, sub := range c.subscribers {
		if sub.HandleID() == sender {
			return sub
		}
	}
	return nil
}

func (c *Client) onTrickle(env *protocol.Envelope) {
	var cand protocol.Candidate
	if err := json.Unmarshal(env.Data, &cand); err != nil {
		c.reportError(fmt.Errorf("%w: trickle event: %v", ErrMalformedMessage, err))
		return
	}
	h := c.handleBySender(env.Sender)
	if h == nil {
		c.reportError(fmt.Errorf("%w: trickle from %d", ErrUnknownSender, env.Sender))
		return
	}
	h.receiveCandidate(cand)
}

func (c *Client) onMedia(env *protocol.Envelope) {
	h := c.handleBySender(env.Sender)
	if h == nil {
		c.reportError(fmt.Errorf("%w: media from %d", ErrUnknownSender, env.Sender))
		return
	}
	h.emit(SessionEvent{Kind: EventMedia, Data: env.Data})
}

// onLeaving terminates and removes every subscriber mirroring the departed
// feed. A repeated leaving event finds no handle and is a no-op.
func (c *Client) onLeaving(env *protocol.Envelope) {
	var data protocol.LeavingData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Leaving == "" {
		c.reportError(fmt.Errorf("%w: leaving event: %s", ErrMalformedMessage, string(env.Data)))
		return
	}

	c.mu.Lock()
	sub := c.subscribers[data.Leaving]
	delete(c.subscribers, data.Leaving)
	c.mu.Unlock()
	if sub == nil {
		return
	}

	if err := sub.handleLeaving(context.Background()); err != nil {
		c.reportError(fmt.Errorf("terminate leaving subscriber %s: %w", data.Leaving, err))
	}
}

// addSubscribers builds one subscriber per announced publisher not already
// mirrored. The existence check and insert happen under one lock so no two
// subscribers can ever share a feed id. Duplicates are logged and skipped.
func (c *Client) addSubscribers(roster []protocol.Participant) {
	for _, p := range roster {
		if p.ID == "" {
			c.reportError(fmt.Errorf("%w: publisher roster entry without id", ErrMalformedMessage))
			continue
		}

		c.mu.Lock()
		if _, ok := c.subscribers[p.ID]; ok {
			c.mu.Unlock()
			c.log.Infof("subscriber for feed %s already attached, skipping", p.ID)
			continue
		}
		roomID := c.roomID
		c.mu.Unlock()

		mt, err := c.opts.NewTransport()
		if err != nil {
			c.reportError(fmt.Errorf("subscriber transport for feed %s: %w", p.ID, err))
			continue
		}

		c.mu.Lock()
		if _, ok := c.subscribers[p.ID]; ok {
			c.mu.Unlock()
			_ = mt.Close()
			c.log.Infof("subscriber for feed %s already attached, skipping", p.ID)
			continue
		}
		sub := newSubscriber(c, mt, roomID, p.ID, c.opts.LoggerFactory, c.reportError, c.removeSubscriber)
		c.subscribers[p.ID] = sub
		c.mu.Unlock()

		if c.opts.OnSubscriber != nil {
			c.opts.OnSubscriber(sub)
		}
	}
}
