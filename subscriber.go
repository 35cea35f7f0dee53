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

// Subscriber negotiates one inbound media leg mirroring a remote publisher
// feed: attach, join, answer, start. One instance exists per feed; the Client
// guarantees no two subscribers share a feed id.
type Subscriber struct {
	handleCore

	feed    string
	started bool // guarded by handleCore.mu

	onTerminated func(feed string)
	closeOnce    sync.Once
}

func newSubscriber(tx transactor, mt media.Transport, roomID, feed string, lf logging.LoggerFactory, report func(error), onTerminated func(string)) *Subscriber {
	s := &Subscriber{
		handleCore: handleCore{
			tx:     tx,
			log:    lf.NewLogger("subscriber"),
			media:  mt,
			report: report,
			roomID: roomID,
		},
		feed:         feed,
		onTerminated: onTerminated,
	}
	mt.OnCandidate(s.sendCandidate)
	return s
}

// Feed returns the id of the remote publisher this subscriber mirrors.
func (s *Subscriber) Feed() string { return s.feed }

// Started reports whether the leg completed negotiation and can receive
// media.
func (s *Subscriber) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// OnTrack registers the remote-track callback on the underlying transport.
func (s *Subscriber) OnTrack(fn func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	s.media.OnTrack(fn)
}

// Initialize runs the full attach -> join -> answer -> start sequence. The
// subscriber is ready to receive media once it returns.
func (s *Subscriber) Initialize(ctx context.Context) error {
	if err := s.attach(ctx); err != nil {
		return err
	}
	offer, err := s.join(ctx)
	if err != nil {
		return err
	}
	answer, err := s.createAnswer(offer)
	if err != nil {
		return err
	}
	return s.start(ctx, answer)
}

// join identifies the target feed to the gateway; the reply carries the
// remote offer.
func (s *Subscriber) join(ctx context.Context) (protocol.SDP, error) {
	s.mu.Lock()
	load := protocol.JoinLoad{
		RoomID:   s.roomID,
		HandleID: s.handleID,
		PType:    "subscriber",
		Feed:     s.feed,
	}
	s.mu.Unlock()

	env, err := s.tx.transact(ctx, protocol.TypeJoin, load)
	if err != nil {
		return protocol.SDP{}, err
	}
	reply, err := protocol.ParseOfferReply(env.Load)
	if err != nil || reply.Jsep == nil {
		return protocol.SDP{}, fmt.Errorf("%w: join reply lacks an offer", ErrMalformedMessage)
	}
	return *reply.Jsep, nil
}

// createAnswer applies the remote offer, flushes buffered candidates, binds
// receive-only legs (reusing existing ones) and sets the local answer.
func (s *Subscriber) createAnswer(offer protocol.SDP) (webrtc.SessionDescription, error) {
	if err := s.applyRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := s.media.EnsureReceivers(); err != nil {
		return webrtc.SessionDescription{}, err
	}
	answer, err := s.media.CreateAnswer()
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := s.media.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

// start completes the leg at the gateway.
func (s *Subscriber) start(ctx context.Context, answer webrtc.SessionDescription) error {
	s.mu.Lock()
	load := protocol.StartLoad{
		RoomID:   s.roomID,
		HandleID: s.handleID,
		Answer:   protocol.SDPFromPion(answer),
	}
	s.mu.Unlock()

	if _, err := s.tx.transact(ctx, protocol.TypeStart, load); err != nil {
		return err
	}
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

// handleLeaving is invoked by the event router when this subscriber's feed
// leaves the room: the subscriber observes the event and terminates itself.
func (s *Subscriber) handleLeaving(ctx context.Context) error {
	s.emit(SessionEvent{Kind: EventLeaving})
	return s.Terminate(ctx)
}

// Terminate unwinds the leg: hangup and detach if attached, close the media
// transport, then notify observers and the owner so the handle leaves the
// room's subscriber set. Steps run best-effort.
func (s *Subscriber) Terminate(ctx context.Context) error {
	var steps []func() error
	if s.Attached() {
		steps = append(steps,
			func() error { return s.hangup(ctx) },
			func() error { return s.detach(ctx) },
		)
	}
	steps = append(steps, func() error {
		var err error
		s.closeOnce.Do(func() { err = s.media.Close() })
		return err
	})

	err := runAll(steps...)
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	s.emit(SessionEvent{Kind: EventTerminated})
	if s.onTerminated != nil {
		s.onTerminated(s.feed)
	}
	return err
}
