package media

import "github.com/pion/webrtc/v4"

// Transport is the media-engine capability a negotiator drives through the
// attach/negotiate/configure/teardown sequence.
//
// Implementations own the underlying peer connection. They are not
// reimplemented by the signaling core; ICE gathering, DTLS-SRTP and RTP
// handling all live behind this interface.
type Transport interface {
	// CreateOffer produces a local offer, with ICE-restart semantics when
	// iceRestart is set.
	CreateOffer(iceRestart bool) (webrtc.SessionDescription, error)
	// CreateAnswer produces a local answer to the current remote offer.
	CreateAnswer() (webrtc.SessionDescription, error)

	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error

	// AddICECandidate applies one remote candidate. A nil init applies the
	// null end-of-candidates candidate.
	AddICECandidate(init *webrtc.ICECandidateInit) error

	// BindSendTrack attaches a local track to a send-only leg of the track's
	// kind. If a leg of that kind already exists the track is replaced in
	// place; legs are never duplicated.
	BindSendTrack(track webrtc.TrackLocal) error
	// EnsureReceivers guarantees receive-only audio and video legs exist,
	// reusing any that already do.
	EnsureReceivers() error

	// OnCandidate registers the local gathering callback. A nil init signals
	// that gathering completed.
	OnCandidate(fn func(init *webrtc.ICECandidateInit))
	// OnConnectionStateChange registers the connectivity-state callback.
	OnConnectionStateChange(fn func(state webrtc.PeerConnectionState))
	// OnTrack registers the remote-track callback (subscriber side).
	OnTrack(fn func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))

	Close() error
}
