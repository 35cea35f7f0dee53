package roomclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"

	"github.com/meshvoice/roomclient/media"
	"github.com/meshvoice/roomclient/protocol"
)

// transactor is the slice of the connection manager the negotiators need: a
// correlated request/reply round trip. Tests substitute a fake.
type transactor interface {
	transact(ctx context.Context, typ string, load any) (*protocol.Envelope, error)
}

// sessionHandle is the capability set shared by both negotiator variants; the
// event router addresses handles through it.
type sessionHandle interface {
	HandleID() protocol.HandleID
	receiveCandidate(cand protocol.Candidate)
	emit(ev SessionEvent)
}

// handleCore carries the state common to the publisher and subscriber
// negotiators: the attached gateway handle, the media transport, the
// per-handle candidate buffer and the lifecycle observers.
type handleCore struct {
	tx     transactor
	log    logging.LeveledLogger
	media  media.Transport
	report func(error)

	roomID string

	mu        sync.Mutex
	handleID  protocol.HandleID
	attached  bool
	remoteSet bool
	handlers  []func(SessionEvent)

	buf candidateBuffer
}

// HandleID returns the gateway-assigned handle id, zero before attach.
func (h *handleCore) HandleID() protocol.HandleID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handleID
}

// RoomID returns the room this handle is scoped to.
func (h *handleCore) RoomID() string { return h.roomID }

// Attached reports whether the gateway leg is currently attached.
func (h *handleCore) Attached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attached
}

// OnEvent registers a lifecycle observer. Observers run synchronously on the
// goroutine emitting the event and must not block.
func (h *handleCore) OnEvent(fn func(SessionEvent)) {
	h.mu.Lock()
	h.handlers = append(h.handlers, fn)
	h.mu.Unlock()
}

func (h *handleCore) emit(ev SessionEvent) {
	h.mu.Lock()
	handlers := append([](func(SessionEvent))(nil), h.handlers...)
	h.mu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

// attach asks the gateway for a handle scoped to the room and records the
// returned handle id.
func (h *handleCore) attach(ctx context.Context) error {
	env, err := h.tx.transact(ctx, protocol.TypeAttach, protocol.AttachLoad{RoomID: h.roomID})
	if err != nil {
		return err
	}
	id, err := protocol.ParseHandleID(env.Load)
	if err != nil {
		return fmt.Errorf("%w: attach reply: %v", ErrMalformedMessage, err)
	}
	h.mu.Lock()
	h.handleID = id
	h.attached = true
	h.mu.Unlock()
	return nil
}

func (h *handleCore) hangup(ctx context.Context) error {
	_, err := h.tx.transact(ctx, protocol.TypeHangup, h.handleLoad())
	return err
}

// detach releases the gateway leg. The attached flag clears only after the
// gateway confirms.
func (h *handleCore) detach(ctx context.Context) error {
	_, err := h.tx.transact(ctx, protocol.TypeDetach, h.handleLoad())
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.attached = false
	h.mu.Unlock()
	return nil
}

func (h *handleCore) handleLoad() protocol.HandleLoad {
	h.mu.Lock()
	defer h.mu.Unlock()
	return protocol.HandleLoad{RoomID: h.roomID, HandleID: h.handleID}
}

// sendCandidate trickles one locally gathered candidate to the gateway; a nil
// init is the end-of-candidates sentinel. The send is fire-and-forget: a
// failure is reported, not returned, because the gathering callback has no
// caller to fail.
func (h *handleCore) sendCandidate(init *webrtc.ICECandidateInit) {
	cand := protocol.CompletedCandidate()
	if init != nil {
		cand = protocol.CandidateFromPion(*init)
	}
	h.mu.Lock()
	load := protocol.CandidateLoad{RoomID: h.roomID, HandleID: h.handleID, Candidate: cand}
	h.mu.Unlock()
	go func() {
		if _, err := h.tx.transact(context.Background(), protocol.TypeCandidate, load); err != nil {
			h.report(fmt.Errorf("send candidate: %w", err))
		}
	}()
}

// receiveCandidate applies a remote candidate, or buffers it if the remote
// description has not landed yet.
func (h *handleCore) receiveCandidate(cand protocol.Candidate) {
	h.mu.Lock()
	ready := h.remoteSet
	if !ready {
		h.buf.add(cand)
	}
	h.mu.Unlock()
	if !ready {
		return
	}
	if err := h.media.AddICECandidate(cand.ToPion()); err != nil {
		h.report(fmt.Errorf("add remote candidate: %w", err))
	}
}

// applyRemoteDescription sets the remote description and flushes buffered
// candidates in arrival order. The completed sentinel maps to a null
// candidate. A candidate the transport rejects is reported and skipped; it
// does not abort the flush.
func (h *handleCore) applyRemoteDescription(desc protocol.SDP) error {
	remote, err := desc.ToPion()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := h.media.SetRemoteDescription(remote); err != nil {
		return err
	}
	h.mu.Lock()
	h.remoteSet = true
	h.mu.Unlock()
	buffered := h.buf.drain()
	if len(buffered) > 0 {
		h.log.Debugf("flushing %d buffered candidates", len(buffered))
	}
	for _, cand := range buffered {
		if err := h.media.AddICECandidate(cand.ToPion()); err != nil {
			h.report(fmt.Errorf("apply buffered candidate: %w", err))
		}
	}
	return nil
}
