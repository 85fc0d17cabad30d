// Package seal implements the hybrid message payload: a fresh symmetric key
// per message, wrapped with RSA-OAEP for each recipient, AES-256-CBC bulk
// encryption, an encrypt-then-MAC HMAC tag and a sender signature. The whole
// payload travels as one opaque field; the relay forwards it unread.
package seal
