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

// Publisher negotiates the client's single outbound media leg: attach, offer,
// joinandconfigure, then reconfiguration and teardown. At most one Publisher
// is active per Client.
type Publisher struct {
	handleCore

	publishing bool // guarded by handleCore.mu
	tracks     []webrtc.TrackLocal

	closeOnce sync.Once
}

func newPublisher(tx transactor, mt media.Transport, roomID string, tracks []webrtc.TrackLocal, lf logging.LoggerFactory, report func(error)) *Publisher {
	p := &Publisher{
		handleCore: handleCore{
			tx:     tx,
			log:    lf.NewLogger("publisher"),
			media:  mt,
			report: report,
			roomID: roomID,
		},
		tracks: tracks,
	}
	mt.OnCandidate(p.sendCandidate)
	return p
}

// Publishing reports whether the leg is live at the gateway.
func (p *Publisher) Publishing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.publishing
}

// BindTracks replaces the local tracks offered on the next negotiation.
// Tracks of a kind that already has a send leg are swapped in place rather
// than duplicated.
func (p *Publisher) BindTracks(tracks ...webrtc.TrackLocal) {
	p.mu.Lock()
	p.tracks = tracks
	p.mu.Unlock()
}

// initialize runs the full attach -> offer -> joinandconfigure sequence and
// returns the room's current publisher roster.
func (p *Publisher) initialize(ctx context.Context) ([]protocol.Participant, error) {
	if err := p.attach(ctx); err != nil {
		return nil, err
	}
	offer, err := p.createOffer(true)
	if err != nil {
		return nil, err
	}
	return p.joinAndConfigure(ctx, offer)
}

// createOffer binds the local tracks to send-only legs (reusing existing
// legs), produces an offer and sets it as the local description.
func (p *Publisher) createOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	p.mu.Lock()
	tracks := append([]webrtc.TrackLocal(nil), p.tracks...)
	p.mu.Unlock()

	for _, track := range tracks {
		if err := p.media.BindSendTrack(track); err != nil {
			return webrtc.SessionDescription{}, fmt.Errorf("bind %s track: %w", track.Kind(), err)
		}
	}
	offer, err := p.media.CreateOffer(iceRestart)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := p.media.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return offer, nil
}

// joinAndConfigure sends the combined join+configure request, applies the
// returned answer, flushes buffered candidates and marks the leg publishing.
func (p *Publisher) joinAndConfigure(ctx context.Context, offer webrtc.SessionDescription) ([]protocol.Participant, error) {
	p.mu.Lock()
	load := protocol.JoinAndConfigureLoad{
		RoomID:   p.roomID,
		HandleID: p.handleID,
		PType:    "publisher",
		Jsep:     protocol.SDPFromPion(offer),
	}
	p.mu.Unlock()

	env, err := p.tx.transact(ctx, protocol.TypeJoinAndConfigure, load)
	if err != nil {
		return nil, err
	}
	reply, err := protocol.ParseConfigureReply(env.Load)
	if err != nil || reply.Jsep == nil {
		return nil, fmt.Errorf("%w: joinandconfigure reply lacks an answer", ErrMalformedMessage)
	}
	if err := p.applyRemoteDescription(*reply.Jsep); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.publishing = true
	p.mu.Unlock()
	return reply.Data.Publishers, nil
}

// Renegotiate produces a fresh offer with ICE-restart semantics and
// reconfigures the leg with the requested audio/video enablement.
func (p *Publisher) Renegotiate(ctx context.Context, audio, video bool) error {
	offer, err := p.createOffer(true)
	if err != nil {
		return err
	}
	jsep := protocol.SDPFromPion(offer)
	return p.configure(ctx, protocol.ConfigureLoad{
		RoomID: p.roomID,
		Jsep:   &jsep,
		Audio:  &audio,
		Video:  &video,
	})
}

// ConfigureRequest carries optional reconfiguration fields; nil fields are
// omitted from the request.
type ConfigureRequest struct {
	Audio *bool
	Video *bool
}

// Configure sends a generic reconfiguration (mute/unmute audio, pause/resume
// video). If the reply carries a remote description it is applied and the
// candidate buffer flushed.
func (p *Publisher) Configure(ctx context.Context, req ConfigureRequest) error {
	return p.configure(ctx, protocol.ConfigureLoad{
		RoomID: p.roomID,
		Audio:  req.Audio,
		Video:  req.Video,
	})
}

func (p *Publisher) configure(ctx context.Context, load protocol.ConfigureLoad) error {
	env, err := p.tx.transact(ctx, protocol.TypeConfigure, load)
	if err != nil {
		return err
	}
	if len(env.Load) == 0 {
		return nil
	}
	reply, err := protocol.ParseConfigureReply(env.Load)
	if err != nil {
		return fmt.Errorf("%w: configure reply: %v", ErrMalformedMessage, err)
	}
	if reply.Jsep != nil {
		return p.applyRemoteDescription(*reply.Jsep)
	}
	return nil
}

// Publish sends the standalone publish request with a fresh offer and applies
// the answer. joinAndConfigure is the usual path; this mirrors the gateway's
// split publish operation for legs that joined without publishing.
func (p *Publisher) Publish(ctx context.Context) error {
	offer, err := p.createOffer(true)
	if err != nil {
		return err
	}
	env, err := p.tx.transact(ctx, protocol.TypePublish, protocol.PublishLoad{
		RoomID: p.roomID,
		Jsep:   protocol.SDPFromPion(offer),
	})
	if err != nil {
		return err
	}
	reply, err := protocol.ParseConfigureReply(env.Load)
	if err != nil || reply.Jsep == nil {
		return fmt.Errorf("%w: publish reply lacks an answer", ErrMalformedMessage)
	}
	if err := p.applyRemoteDescription(*reply.Jsep); err != nil {
		return err
	}
	p.mu.Lock()
	p.publishing = true
	p.mu.Unlock()
	return nil
}

// Unpublish stops the outbound feed; the publishing flag clears only once the
// gateway confirms.
func (p *Publisher) Unpublish(ctx context.Context) error {
	if _, err := p.tx.transact(ctx, protocol.TypeUnpublish, p.handleLoad()); err != nil {
		return err
	}
	p.mu.Lock()
	p.publishing = false
	p.mu.Unlock()
	return nil
}

// Leave sends the room-level leave request for this leg.
func (p *Publisher) Leave(ctx context.Context) error {
	_, err := p.tx.transact(ctx, protocol.TypeLeave, protocol.LeaveLoad{RoomID: p.roomID})
	return err
}

// Terminate unwinds the leg: unpublish if publishing, hangup and detach if
// attached, then close the media transport. Every step runs regardless of
// earlier failures; the joined error reports whatever went wrong.
func (p *Publisher) Terminate(ctx context.Context) error {
	var steps []func() error
	if p.Publishing() {
		steps = append(steps, func() error { return p.Unpublish(ctx) })
	}
	if p.Attached() {
		steps = append(steps,
			func() error { return p.hangup(ctx) },
			func() error { return p.detach(ctx) },
		)
	}
	steps = append(steps, func() error {
		var err error
		p.closeOnce.Do(func() { err = p.media.Close() })
		return err
	})

	err := runAll(steps...)
	p.emit(SessionEvent{Kind: EventTerminated})
	return err
}
