package roomclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrTransactionTimeout is returned when no reply with the matching
	// transaction id arrives within the configured window.
	ErrTransactionTimeout = errors.New("roomclient: transaction timeout")
	// ErrMalformedMessage flags an inbound payload that cannot be decoded.
	ErrMalformedMessage = errors.New("roomclient: malformed gateway message")
	// ErrUnknownSender flags an event whose sender matches no attached handle.
	ErrUnknownSender = errors.New("roomclient: event sender matches no attached handle")
	// ErrNoPublisher is returned by mute/unmute/pause/resume when no publisher
	// is active.
	ErrNoPublisher = errors.New("roomclient: no active publisher")

	ErrClosed       = errors.New("roomclient: client closed")
	ErrNotConnected = errors.New("roomclient: control channel not connected")
)

// GatewayError is an explicit error reply from the gateway.
type GatewayError struct {
	Request string          // request type that failed
	Load    json.RawMessage // error detail exactly as the gateway sent it
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("roomclient: gateway error on %s: %s", e.Request, string(e.Load))
}

// runAll runs every step regardless of earlier failures and joins whatever
// failed. Teardown paths use it so that each handle gets its termination
// attempt even when a sibling step already failed.
func runAll(steps ...func() error) error {
	var errs []error
	for _, step := range steps {
		if err := step(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
