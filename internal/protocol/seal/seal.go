package seal

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"cryptex/internal/crypto"
	"cryptex/internal/domain"
	"cryptex/internal/util/memzero"
)

// payload is the JSON body carried in the opaque envelope field. The relay
// never parses it.
type payload struct {
	// Keys maps recipient username to the base64 OAEP-wrapped message key.
	Keys map[string]string `json:"keys"`
	// Cipher is base64(iv || ciphertext), AES-256-CBC.
	Cipher string `json:"ct"`
	// MAC is the hex HMAC-SHA256 tag over Cipher under the MAC subkey.
	MAC string `json:"mac"`
	// Sig is the sender's base64 PKCS#1 v1.5 signature over Cipher.
	Sig string `json:"sig"`
}

// Seal encrypts plaintext for every listed recipient. A fresh message key is
// drawn per call, split into cipher and MAC subkeys, and wrapped once per
// recipient with the public keys distributed during key exchange. The
// message key is scrubbed before returning.
func Seal(plaintext []byte, sender *crypto.KeyPair, recipients map[domain.Username]*rsa.PublicKey) (string, error) {
	if len(recipients) == 0 {
		return "", domain.ErrNoKeyForPeer
	}

	msgKey, err := crypto.NewSymKey()
	if err != nil {
		return "", err
	}
	defer memzero.Zero(msgKey)

	encKey, macKey, err := crypto.DeriveKeys(msgKey)
	if err != nil {
		return "", err
	}
	defer memzero.Zero(encKey)
	defer memzero.Zero(macKey)

	ct, err := crypto.EncryptSymmetric(plaintext, encKey)
	if err != nil {
		return "", err
	}

	sig, err := crypto.Sign([]byte(ct), sender.Private)
	if err != nil {
		return "", err
	}

	p := payload{
		Keys:   make(map[string]string, len(recipients)),
		Cipher: ct,
		MAC:    hex.EncodeToString(crypto.MAC([]byte(ct), macKey)),
		Sig:    base64.StdEncoding.EncodeToString(sig),
	}
	for name, pub := range recipients {
		wrapped, err := crypto.WrapKey(msgKey, pub)
		if err != nil {
			return "", fmt.Errorf("seal: wrap for %s: %w", name, err)
		}
		p.Keys[name.String()] = base64.StdEncoding.EncodeToString(wrapped)
	}

	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("seal: encode: %w", err)
	}
	return string(body), nil
}

// Open authenticates and decrypts a sealed payload addressed to self. The
// sender's public key is mandatory: without it the signature cannot be
// checked, so origin cannot be authenticated. Any failure means the message
// must be dropped: a missing sender or wrapped key yields ErrNoKeyForPeer,
// an OAEP mismatch ErrUnwrapFailed, a bad tag ErrBadMAC, a bad signature
// ErrBadSignature, and everything else ErrDecryptionFailed.
func Open(blob string, self domain.Username, priv *rsa.PrivateKey, senderPub *rsa.PublicKey) ([]byte, error) {
	if senderPub == nil {
		return nil, domain.ErrNoKeyForPeer
	}

	var p payload
	if err := json.Unmarshal([]byte(blob), &p); err != nil {
		return nil, domain.ErrDecryptionFailed
	}

	wrappedB64, ok := p.Keys[self.String()]
	if !ok {
		return nil, domain.ErrNoKeyForPeer
	}
	wrapped, err := base64.StdEncoding.DecodeString(wrappedB64)
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}

	msgKey, err := crypto.UnwrapKey(wrapped, priv)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(msgKey)

	encKey, macKey, err := crypto.DeriveKeys(msgKey)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(encKey)
	defer memzero.Zero(macKey)

	tag, err := hex.DecodeString(p.MAC)
	if err != nil || !crypto.VerifyMAC([]byte(p.Cipher), tag, macKey) {
		return nil, domain.ErrBadMAC
	}

	sig, err := base64.StdEncoding.DecodeString(p.Sig)
	if err != nil || !crypto.Verify([]byte(p.Cipher), sig, senderPub) {
		return nil, domain.ErrBadSignature
	}

	return crypto.DecryptSymmetric(p.Cipher, encKey)
}
