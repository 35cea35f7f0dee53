// Package media defines the capability boundary between the signaling core
// and the native media-transport engine.
//
// The negotiators consume Transport as an opaque capability: they feed it
// session descriptions and ICE candidates and react to the callbacks it emits.
// PionTransport is the production implementation on top of pion/webrtc; tests
// substitute a fake.
package media
