package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Request types recognized by the gateway.
const (
	TypeAttach           = "attach"
	TypeJoin             = "join"
	TypeConfigure        = "configure"
	TypeJoinAndConfigure = "joinandconfigure"
	TypePublish          = "publish"
	TypeUnpublish        = "unpublish"
	TypeStart            = "start"
	TypeHangup           = "hangup"
	TypeDetach           = "detach"
	TypeLeave            = "leave"
	TypeCandidate        = "candidate"
	TypeKeepalive        = "keepalive"
	TypeRooms            = "rooms"
	TypeCreateRoom       = "create_room"
)

// TypeError marks a reply that reports a gateway-side failure; its load holds
// the error detail.
const TypeError = "error"

// Unsolicited event kinds. Unrecognized kinds are ignored by the router for
// forward compatibility.
const (
	EventTrickle    = "trickle"
	EventPublishers = "publishers"
	EventMedia      = "media"
	EventLeaving    = "leaving"
	EventInternal   = "internal"
)

var (
	errMissingType = errors.New("protocol: message has no type")
	errBadHandleID = errors.New("protocol: handle id is not an integer")
)

// HandleID is the gateway-assigned identifier of one attached media leg.
//
// Gateways have historically been loose about whether ids travel as JSON
// numbers or strings; both forms decode into the same integer so that sender
// matching can use plain ==.
type HandleID int64

func (h *HandleID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*h = 0
		return nil
	}
	raw := string(data)
	if raw[0] == '"' {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return fmt.Errorf("%w: %s", errBadHandleID, raw)
		}
		raw = unquoted
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s", errBadHandleID, raw)
	}
	*h = HandleID(n)
	return nil
}

// Request is an outbound control message. The transaction id is stamped by the
// transaction engine, never by the caller.
type Request struct {
	Type        string `json:"type"`
	Load        any    `json:"load,omitempty"`
	Transaction string `json:"transaction"`
}

// Envelope is the single inbound shape: a reply when Transaction is set, an
// unsolicited event otherwise.
type Envelope struct {
	Transaction string          `json:"transaction,omitempty"`
	Type        string          `json:"type"`
	Sender      HandleID        `json:"sender,omitempty"`
	Load        json.RawMessage `json:"load,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// IsReply reports whether the envelope correlates to a pending transaction.
func (e *Envelope) IsReply() bool { return e.Transaction != "" }

// IsError reports whether a reply envelope carries a gateway error.
func (e *Envelope) IsError() bool { return e.Type == TypeError }

// Parse decodes one inbound control-channel message.
//
// Unknown fields are deliberately tolerated: the gateway is free to grow its
// schema without breaking deployed clients.
func Parse(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Type == "" {
		return nil, errMissingType
	}
	return &env, nil
}

// ParseHandleID decodes an attach reply load, which carries the bare handle id.
func ParseHandleID(load json.RawMessage) (HandleID, error) {
	var h HandleID
	if err := json.Unmarshal(load, &h); err != nil {
		return 0, err
	}
	return h, nil
}
