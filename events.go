package roomclient

import "encoding/json"

// SessionEventKind enumerates the lifecycle notifications a session handle
// emits to its observers.
type SessionEventKind int

const (
	// EventTerminated fires once the handle has finished its teardown
	// sequence (best-effort; it fires even if individual steps failed).
	EventTerminated SessionEventKind = iota + 1
	// EventMedia carries a gateway media-state notification for the handle.
	EventMedia
	// EventLeaving precedes a subscriber's termination when its feed left the
	// room or the client is cleaning up.
	EventLeaving
)

func (k SessionEventKind) String() string {
	switch k {
	case EventTerminated:
		return "terminated"
	case EventMedia:
		return "media"
	case EventLeaving:
		return "leaving"
	default:
		return "unknown"
	}
}

// SessionEvent is one lifecycle notification. Data is only set for EventMedia
// and holds the gateway payload verbatim.
type SessionEvent struct {
	Kind SessionEventKind
	Data json.RawMessage
}
