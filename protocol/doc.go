// Package protocol models the JSON control-channel protocol spoken with the
// videoroom gateway.
//
// Three message shapes travel over the persistent WebSocket:
//
//   - Request:  { type, load?, transaction }   client -> gateway
//   - Reply:    { transaction, type, load? }   gateway -> client, correlated
//   - Event:    { type, sender?, data? }       gateway -> client, unsolicited
//
// A reply is distinguished from an event solely by the presence of the
// transaction field. This package models the protocol surface only; it never
// touches the WebSocket or the peer connection.
package protocol
