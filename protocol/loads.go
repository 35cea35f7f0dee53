package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// SDP is the JSON-friendly session description carried in "jsep" fields.
type SDP struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

func SDPFromPion(desc webrtc.SessionDescription) SDP {
	return SDP{
		Type: desc.Type.String(),
		SDP:  desc.SDP,
	}
}

func (s SDP) ToPion() (webrtc.SessionDescription, error) {
	var t webrtc.SDPType
	switch s.Type {
	case "offer":
		t = webrtc.SDPTypeOffer
	case "answer":
		t = webrtc.SDPTypeAnswer
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("protocol: unsupported sdp type %q", s.Type)
	}
	return webrtc.SessionDescription{Type: t, SDP: s.SDP}, nil
}

// Candidate is a trickled ICE candidate, or the end-of-candidates sentinel
// when Completed is true.
type Candidate struct {
	Candidate     string  `json:"candidate,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
	Completed     bool    `json:"completed,omitempty"`
}

func CandidateFromPion(init webrtc.ICECandidateInit) Candidate {
	return Candidate{
		Candidate:     init.Candidate,
		SDPMid:        init.SDPMid,
		SDPMLineIndex: init.SDPMLineIndex,
	}
}

// CompletedCandidate is the sentinel sent once local gathering finishes.
func CompletedCandidate() Candidate {
	return Candidate{Completed: true}
}

// ToPion converts to the pion representation. The completed sentinel maps to
// nil, which the media transport applies as a null (end-of-candidates)
// candidate.
func (c Candidate) ToPion() *webrtc.ICECandidateInit {
	if c.Completed {
		return nil
	}
	return &webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	}
}

// Participant is one entry of the gateway's publisher roster for a room.
type Participant struct {
	ID         string `json:"id"`
	AudioCodec string `json:"audio_codec,omitempty"`
	VideoCodec string `json:"video_codec,omitempty"`
	Talking    bool   `json:"talking,omitempty"`
}

// Request loads. Field names follow the gateway schema, not Go conventions.

type AttachLoad struct {
	RoomID string `json:"room_id"`
}

type JoinLoad struct {
	RoomID   string   `json:"room_id"`
	HandleID HandleID `json:"handle_id"`
	PType    string   `json:"ptype"`
	Feed     string   `json:"feed,omitempty"`
}

type JoinAndConfigureLoad struct {
	RoomID   string   `json:"room_id"`
	HandleID HandleID `json:"handle_id"`
	PType    string   `json:"ptype"`
	Jsep     SDP      `json:"jsep"`
}

// ConfigureLoad carries only the fields the caller actually set; nil pointers
// are omitted from the wire message.
type ConfigureLoad struct {
	RoomID string `json:"room_id"`
	Jsep   *SDP   `json:"jsep,omitempty"`
	Audio  *bool  `json:"audio,omitempty"`
	Video  *bool  `json:"video,omitempty"`
}

type PublishLoad struct {
	RoomID string `json:"room_id"`
	Jsep   SDP    `json:"jsep"`
}

type StartLoad struct {
	RoomID   string   `json:"room_id"`
	HandleID HandleID `json:"handle_id"`
	Answer   SDP      `json:"answer"`
}

// HandleLoad addresses one attached leg (unpublish, hangup, detach).
type HandleLoad struct {
	RoomID   string   `json:"room_id"`
	HandleID HandleID `json:"handle_id"`
}

type LeaveLoad struct {
	RoomID string `json:"room_id"`
}

type CandidateLoad struct {
	RoomID    string    `json:"room_id"`
	HandleID  HandleID  `json:"handle_id"`
	Candidate Candidate `json:"candidate"`
}

type CreateRoomLoad struct {
	Description string `json:"description"`
}

// Reply loads.

// ConfigureReply is the load of configure/joinandconfigure/publish replies:
// an optional remote description plus, for joinandconfigure, the current
// publisher roster of the room.
type ConfigureReply struct {
	Jsep *SDP `json:"jsep,omitempty"`
	Data struct {
		Publishers []Participant `json:"publishers"`
	} `json:"data"`
}

// OfferReply is the load of a subscriber join reply, carrying the remote
// offer to answer.
type OfferReply struct {
	Jsep *SDP `json:"jsep"`
}

// LeavingData is the payload of a "leaving" event.
type LeavingData struct {
	Leaving string `json:"leaving"`
}

func ParseConfigureReply(load json.RawMessage) (*ConfigureReply, error) {
	var r ConfigureReply
	if err := json.Unmarshal(load, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func ParseOfferReply(load json.RawMessage) (*OfferReply, error) {
	var r OfferReply
	if err := json.Unmarshal(load, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
