package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"cryptex/internal/domain"
)

const (
	// SymKeyBytes is the size of a symmetric message key (AES-256).
	SymKeyBytes = 32
	// IVBytes is the size of a CBC initialization vector.
	IVBytes = aes.BlockSize
)

// NewSymKey returns a fresh random 32-byte symmetric key.
func NewSymKey() ([]byte, error) {
	key := make([]byte, SymKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("crypto: sym key generation: %w", err)
	}
	return key, nil
}

// EncryptSymmetric encrypts plaintext with AES-256-CBC under a fresh random
// IV and returns base64(iv || ciphertext). Padding is PKCS#7; a full extra
// block is added when the plaintext is already block aligned.
func EncryptSymmetric(plaintext, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("crypto: bad symmetric key: %w", err)
	}

	iv := make([]byte, IVBytes)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("crypto: iv generation: %w", err)
	}

	padded := pad(plaintext)
	out := make([]byte, IVBytes+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[IVBytes:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptSymmetric reverses EncryptSymmetric. Any malformed input, including
// an out-of-range padding byte, yields ErrDecryptionFailed rather than a
// silently truncated plaintext.
func DecryptSymmetric(blob string, key []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}
	if len(raw) < IVBytes+aes.BlockSize || (len(raw)-IVBytes)%aes.BlockSize != 0 {
		return nil, domain.ErrDecryptionFailed
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}

	iv, ct := raw[:IVBytes], raw[IVBytes:]
	padded := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ct)
	return unpad(padded)
}

// DeriveKeys splits a message key into independent cipher and MAC subkeys
// via HKDF-SHA256 so the same key bytes are never used for both.
func DeriveKeys(master []byte) (encKey, macKey []byte, err error) {
	r := hkdf.New(newHash, master, nil, []byte("cryptex-msg-v1"))
	encKey = make([]byte, SymKeyBytes)
	macKey = make([]byte, SymKeyBytes)
	if _, err = io.ReadFull(r, encKey); err != nil {
		return nil, nil, fmt.Errorf("crypto: hkdf: %w", err)
	}
	if _, err = io.ReadFull(r, macKey); err != nil {
		return nil, nil, fmt.Errorf("crypto: hkdf: %w", err)
	}
	return encKey, macKey, nil
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 || len(b)%aes.BlockSize != 0 {
		return nil, domain.ErrDecryptionFailed
	}
	n := int(b[len(b)-1])
	if n < 1 || n > aes.BlockSize || n > len(b) {
		return nil, domain.ErrDecryptionFailed
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, domain.ErrDecryptionFailed
		}
	}
	return b[:len(b)-n], nil
}
