package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"cryptex/internal/domain"
)

// KeyBits is the RSA modulus size used for every generated key pair.
const KeyBits = 2048

const publicPEMType = "RSA PUBLIC KEY"

// KeyPair carries the asymmetric material owned by one peer session. The
// private half never leaves the process that generated it.
type KeyPair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// GenerateKeyPair returns a fresh RSA key pair. It fails only when the
// entropy source does, which callers must treat as fatal.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("crypto: key generation: %w", err)
	}
	return &KeyPair{Private: priv, Public: &priv.PublicKey}, nil
}

// ExportPublic renders the public key as a PEM block suitable for the wire.
func ExportPublic(pub *rsa.PublicKey) string {
	block := &pem.Block{
		Type:  publicPEMType,
		Bytes: x509.MarshalPKCS1PublicKey(pub),
	}
	return string(pem.EncodeToMemory(block))
}

// ImportPublic parses a PEM-encoded public key received from a peer.
func ImportPublic(text string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(text))
	if block == nil || block.Type != publicPEMType {
		return nil, domain.ErrMalformedKey
	}
	pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, domain.ErrMalformedKey
	}
	return pub, nil
}

// WrapKey encrypts a symmetric key for the recipient using RSA-OAEP.
func WrapKey(symKey []byte, recipient *rsa.PublicKey) ([]byte, error) {
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, recipient, symKey, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: wrap key: %w", err)
	}
	return wrapped, nil
}

// UnwrapKey recovers a symmetric key wrapped for our private key. A padding
// or key mismatch yields ErrUnwrapFailed.
func UnwrapKey(wrapped []byte, priv *rsa.PrivateKey) ([]byte, error) {
	symKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped, nil)
	if err != nil {
		return nil, domain.ErrUnwrapFailed
	}
	return symKey, nil
}

// Sign returns a PKCS#1 v1.5 signature over the SHA-256 digest of msg.
func Sign(msg []byte, priv *rsa.PrivateKey) ([]byte, error) {
	digest := sha256.Sum256(msg)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: sign: %w", err)
	}
	return sig, nil
}

// Verify reports whether sig is a valid signature over msg. Tampered input
// returns false, never an error.
func Verify(msg, sig []byte, pub *rsa.PublicKey) bool {
	digest := sha256.Sum256(msg)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig) == nil
}
