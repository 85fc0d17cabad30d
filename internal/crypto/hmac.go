package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"hash"
)

func newHash() hash.Hash { return sha256.New() }

// MAC returns an HMAC-SHA256 tag over msg.
func MAC(msg, key []byte) []byte {
	m := hmac.New(newHash, key)
	m.Write(msg)
	return m.Sum(nil)
}

// VerifyMAC reports whether tag authenticates msg under key. The comparison
// is constant time.
func VerifyMAC(msg, tag, key []byte) bool {
	return hmac.Equal(MAC(msg, key), tag)
}
