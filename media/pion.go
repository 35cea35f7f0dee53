package media

import (
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

// PionTransport implements Transport on a pion PeerConnection.
type PionTransport struct {
	pc  *webrtc.PeerConnection
	log logging.LeveledLogger
}

// NewPionTransport builds a PeerConnection with the default codec set and the
// supplied ICE servers. The logger factory is handed down into the pion stack.
func NewPionTransport(iceServers []webrtc.ICEServer, loggerFactory logging.LoggerFactory) (*PionTransport, error) {
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}

	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	se := webrtc.SettingEngine{LoggerFactory: loggerFactory}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(me), webrtc.WithSettingEngine(se))

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, err
	}
	return &PionTransport{
		pc:  pc,
		log: loggerFactory.NewLogger("media"),
	}, nil
}

func (t *PionTransport) CreateOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	return t.pc.CreateOffer(&webrtc.OfferOptions{ICERestart: iceRestart})
}

func (t *PionTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.pc.CreateAnswer(nil)
}

func (t *PionTransport) SetLocalDescription(desc webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(desc)
}

func (t *PionTransport) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(desc)
}

func (t *PionTransport) AddICECandidate(init *webrtc.ICECandidateInit) error {
	if init == nil {
		// Null candidate: end of remote candidates.
		return t.pc.AddICECandidate(webrtc.ICECandidateInit{})
	}
	return t.pc.AddICECandidate(*init)
}

func (t *PionTransport) BindSendTrack(track webrtc.TrackLocal) error {
	if tr := t.transceiverOfKind(track.Kind()); tr != nil {
		return tr.Sender().ReplaceTrack(track)
	}
	_, err := t.pc.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendonly,
	})
	return err
}

func (t *PionTransport) EnsureReceivers() error {
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if t.transceiverOfKind(kind) != nil {
			continue
		}
		_, err := t.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *PionTransport) OnCandidate(fn func(*webrtc.ICECandidateInit)) {
	t.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			fn(nil)
			return
		}
		init := c.ToJSON()
		fn(&init)
	})
}

func (t *PionTransport) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	t.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		t.log.Infof("peer connection state: %s", state)
		fn(state)
	})
}

func (t *PionTransport) OnTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	t.pc.OnTrack(fn)
}

func (t *PionTransport) Close() error {
	return t.pc.Close()
}

// transceiverOfKind finds an existing leg for the given kind, mirroring the
// reuse rule of the negotiators: at most one send or receive leg per kind.
func (t *PionTransport) transceiverOfKind(kind webrtc.RTPCodecType) *webrtc.RTPTransceiver {
	for _, tr := range t.pc.GetTransceivers() {
		if tr.Kind() == kind {
			return tr
		}
	}
	return nil
}
