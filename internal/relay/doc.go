// Package relay implements the server side of the protocol: the accept
// loop, the per-connection authentication state machine, the session
// directory and the forwarding phase.
//
// The relay reads only envelope types and addressing fields. MESSAGE and
// BROADCAST payloads are forwarded untouched; the sender identity attached
// to forwarded envelopes is always the authenticated identity of the
// originating connection, never an attacker-supplied field.
package relay
