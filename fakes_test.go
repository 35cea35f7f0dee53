package roomclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/meshvoice/roomclient/protocol"
)

var errRejected = errors.New("rejected by fake")

// fakeTransport implements media.Transport for negotiator tests, recording
// every call so tests can assert on sequencing.
type fakeTransport struct {
	mu sync.Mutex

	local  *webrtc.SessionDescription
	remote *webrtc.SessionDescription
	// added records applied remote candidates in order; nil entries are the
	// null end-of-candidates candidate.
	added      []*webrtc.ICECandidateInit
	sendTracks map[webrtc.RTPCodecType]webrtc.TrackLocal
	receivers  bool
	closed     bool

	onCandidate func(*webrtc.ICECandidateInit)
	onState     func(webrtc.PeerConnectionState)
	onTrack     func(*webrtc.TrackRemote, *webrtc.RTPReceiver)

	addErr   error
	closeErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sendTracks: make(map[webrtc.RTPCodecType]webrtc.TrackLocal)}
}

func (f *fakeTransport) CreateOffer(bool) (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 fake offer"}, nil
}

func (f *fakeTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 fake answer"}, nil
}

func (f *fakeTransport) SetLocalDescription(desc webrtc.SessionDescription) error {
	f.mu.Lock()
	f.local = &desc
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) SetRemoteDescription(desc webrtc.SessionDescription) error {
	f.mu.Lock()
	f.remote = &desc
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) AddICECandidate(init *webrtc.ICECandidateInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, init)
	return nil
}

func (f *fakeTransport) BindSendTrack(track webrtc.TrackLocal) error {
	f.mu.Lock()
	f.sendTracks[track.Kind()] = track
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) EnsureReceivers() error {
	f.mu.Lock()
	f.receivers = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) OnCandidate(fn func(*webrtc.ICECandidateInit)) { f.onCandidate = fn }

func (f *fakeTransport) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	f.onState = fn
}

func (f *fakeTransport) OnTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	f.onTrack = fn
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.closeErr
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) appliedCandidates() []*webrtc.ICECandidateInit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*webrtc.ICECandidateInit(nil), f.added...)
}

// fakeTransactor implements transactor, recording requests and answering
// through a test-supplied handler.
type fakeTransactor struct {
	mu      sync.Mutex
	reqs    []fakeRequest
	handler func(typ string, load any) (*protocol.Envelope, error)
}

type fakeRequest struct {
	typ  string
	load any
}

func (f *fakeTransactor) transact(_ context.Context, typ string, load any) (*protocol.Envelope, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, fakeRequest{typ: typ, load: load})
	f.mu.Unlock()
	return f.handler(typ, load)
}

func (f *fakeTransactor) requestTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.reqs))
	for i, r := range f.reqs {
		out[i] = r.typ
	}
	return out
}

func (f *fakeTransactor) requests() []fakeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeRequest(nil), f.reqs...)
}

// waitFor polls cond until it holds or the deadline expires.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}
