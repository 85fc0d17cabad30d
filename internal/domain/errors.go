package domain

import "errors"

// Crypto failures. Callers must treat every one of these as "do not trust
// this message" and drop it rather than retry with weaker guarantees.
var (
	ErrMalformedKey     = errors.New("crypto: malformed public key")
	ErrDecryptionFailed = errors.New("crypto: decryption failed")
	ErrUnwrapFailed     = errors.New("crypto: key unwrap failed")
	ErrNoKeyForPeer     = errors.New("crypto: no public key on file for peer")
	ErrBadSignature     = errors.New("crypto: signature verification failed")
	ErrBadMAC           = errors.New("crypto: message authentication failed")
)

// Protocol failures. The offending envelope is dropped, the connection
// continues.
var (
	ErrUnknownType   = errors.New("wire: unknown envelope type")
	ErrBadFieldCount = errors.New("wire: wrong field count for envelope type")
)

// Session and transport failures.
var (
	ErrNameTaken     = errors.New("relay: username already taken")
	ErrNotConnected  = errors.New("session: not connected")
	ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")
)
