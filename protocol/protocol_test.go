package protocol

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
)

func TestParseReplyVsEvent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		isReply bool
		isError bool
		typ     string
	}{
		{
			name:    "success reply",
			raw:     `{"transaction":"t1","type":"attached","load":7}`,
			isReply: true,
			typ:     "attached",
		},
		{
			name:    "error reply",
			raw:     `{"transaction":"t2","type":"error","load":{"reason":"no such room"}}`,
			isReply: true,
			isError: true,
			typ:     "error",
		},
		{
			name: "trickle event",
			raw:  `{"type":"trickle","sender":42,"data":{"candidate":"candidate:1"}}`,
			typ:  EventTrickle,
		},
		{
			name: "event with unknown extra fields",
			raw:  `{"type":"media","sender":8,"data":{},"experimental":true}`,
			typ:  EventMedia,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env, err := Parse([]byte(tc.raw))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if env.IsReply() != tc.isReply {
				t.Fatalf("IsReply() = %v, want %v", env.IsReply(), tc.isReply)
			}
			if env.IsError() != tc.isError {
				t.Fatalf("IsError() = %v, want %v", env.IsError(), tc.isError)
			}
			if env.Type != tc.typ {
				t.Fatalf("Type = %q, want %q", env.Type, tc.typ)
			}
		})
	}
}

func TestParseRejectsBadMessages(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"transaction":"t1"}`,
		`{"load":{}}`,
	} {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("Parse(%q) succeeded, want error", raw)
		}
	}
}

func TestHandleIDDecoding(t *testing.T) {
	tests := []struct {
		raw  string
		want HandleID
		err  bool
	}{
		{raw: `7`, want: 7},
		{raw: `"7"`, want: 7},
		{raw: `9007199254740999`, want: 9007199254740999},
		{raw: `null`, want: 0},
		{raw: `"abc"`, err: true},
		{raw: `3.5`, err: true},
	}
	for _, tc := range tests {
		var h HandleID
		err := json.Unmarshal([]byte(tc.raw), &h)
		if tc.err {
			if err == nil {
				t.Fatalf("unmarshal %s succeeded, want error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unmarshal %s: %v", tc.raw, err)
		}
		if h != tc.want {
			t.Fatalf("unmarshal %s = %d, want %d", tc.raw, h, tc.want)
		}
	}
}

func TestParseHandleIDFromAttachLoad(t *testing.T) {
	id, err := ParseHandleID(json.RawMessage(`7`))
	if err != nil {
		t.Fatalf("ParseHandleID: %v", err)
	}
	if id != 7 {
		t.Fatalf("ParseHandleID = %d, want 7", id)
	}
	if _, err := ParseHandleID(json.RawMessage(`{"id":7}`)); err == nil {
		t.Fatal("ParseHandleID accepted an object load")
	}
}

func TestCandidateToPion(t *testing.T) {
	mid := "0"
	idx := uint16(1)
	c := Candidate{Candidate: "candidate:1 1 udp 2130706431 10.0.0.1 5000 typ host", SDPMid: &mid, SDPMLineIndex: &idx}
	init := c.ToPion()
	if init == nil {
		t.Fatal("ToPion returned nil for a regular candidate")
	}
	if init.Candidate != c.Candidate || *init.SDPMid != mid || *init.SDPMLineIndex != idx {
		t.Fatalf("ToPion = %+v, want fields of %+v", init, c)
	}

	if CompletedCandidate().ToPion() != nil {
		t.Fatal("completed sentinel must map to a nil candidate")
	}
}

func TestCandidateWireShape(t *testing.T) {
	data, err := json.Marshal(CompletedCandidate())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"completed":true}` {
		t.Fatalf("completed sentinel = %s, want {\"completed\":true}", data)
	}

	var c Candidate
	if err := json.Unmarshal([]byte(`{"candidate":"candidate:1","sdpMid":"0","sdpMLineIndex":0}`), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.SDPMid == nil || *c.SDPMid != "0" || c.SDPMLineIndex == nil || *c.SDPMLineIndex != 0 {
		t.Fatalf("unmarshal = %+v, want sdpMid 0 and sdpMLineIndex 0", c)
	}
}

func TestSDPRoundTrip(t *testing.T) {
	desc := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 test"}
	s := SDPFromPion(desc)
	if s.Type != "offer" || s.SDP != "v=0 test" {
		t.Fatalf("SDPFromPion = %+v", s)
	}
	back, err := s.ToPion()
	if err != nil {
		t.Fatalf("ToPion: %v", err)
	}
	if back != desc {
		t.Fatalf("round trip = %+v, want %+v", back, desc)
	}

	if _, err := (SDP{Type: "rollback"}).ToPion(); err == nil {
		t.Fatal("ToPion accepted an unsupported sdp type")
	}
}

func TestConfigureLoadOmitsUnsetFields(t *testing.T) {
	audio := false
	data, err := json.Marshal(ConfigureLoad{RoomID: "42", Audio: &audio})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"room_id":"42","audio":false}` {
		t.Fatalf("marshal = %s, want room_id and audio only", data)
	}
}

func TestParseConfigureReply(t *testing.T) {
	load := json.RawMessage(`{"jsep":{"type":"answer","sdp":"v=0"},"data":{"publishers":[{"id":"feedA","audio_codec":"opus"}]}}`)
	reply, err := ParseConfigureReply(load)
	if err != nil {
		t.Fatalf("ParseConfigureReply: %v", err)
	}
	if reply.Jsep == nil || reply.Jsep.Type != "answer" {
		t.Fatalf("Jsep = %+v, want answer", reply.Jsep)
	}
	if len(reply.Data.Publishers) != 1 || reply.Data.Publishers[0].ID != "feedA" {
		t.Fatalf("Publishers = %+v, want one entry feedA", reply.Data.Publishers)
	}
}

func TestRequestWireShape(t *testing.T) {
	data, err := json.Marshal(Request{
		Type:        TypeAttach,
		Load:        AttachLoad{RoomID: "42"},
		Transaction: "t1",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"attach","load":{"room_id":"42"},"transaction":"t1"}`
	if string(data) != want {
		t.Fatalf("marshal = %s, want %s", data, want)
	}

	data, err = json.Marshal(Request{Type: TypeKeepalive, Transaction: "t2"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want = `{"type":"keepalive","transaction":"t2"}`
	if string(data) != want {
		t.Fatalf("marshal = %s, want %s", data, want)
	}
}
