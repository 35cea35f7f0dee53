// Package roomclient implements the signaling side of a multi-party video
// room hosted on a Janus-style WebRTC media gateway.
//
// A Client owns one persistent JSON/WebSocket control channel and correlates
// requests with asynchronous replies by transaction id. Joining a room
// negotiates a single outbound Publisher leg; the gateway's publisher roster
// and later "publishers" events spawn one inbound Subscriber leg per remote
// feed. The actual media transport (ICE, DTLS-SRTP, RTP) lives behind the
// media.Transport capability and is injected, never reimplemented here.
//
// The client is an embeddable library: there is no CLI surface. Applications
// drive it with Connect, Join, Mute/Unmute, Pause/Resume, Leave and Close,
// and observe negotiated handles through the Options callbacks.
package roomclient
