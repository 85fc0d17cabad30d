// Package session implements the client side of the protocol: one
// connection, one identity, a fresh key pair per session and a cache of peer
// public keys learned through KEY_EXCHANGE. Decrypted traffic and state
// changes are pushed through the domain.Events observer; the session assumes
// nothing about the consumer's threading beyond "does not block".
package session
