// Package crypto exposes the hybrid primitives used by Cryptex.
//
// Contents
//
//   - RSA-2048 key generation, PEM export/import, OAEP key wrap/unwrap and
//     PKCS#1 v1.5 signatures (GenerateKeyPair, ExportPublic, ImportPublic,
//     WrapKey, UnwrapKey, Sign, Verify)
//   - AES-256-CBC with PKCS#7 padding over a fresh per-call IV
//     (EncryptSymmetric, DecryptSymmetric)
//   - HMAC-SHA256 tags with constant-time verification (MAC, VerifyMAC)
//   - HKDF-SHA256 subkey derivation (DeriveKeys)
//
// # Notes
//
// Every failure is a typed error from internal/domain. Callers must treat a
// crypto failure as "do not trust this message" and drop it; none of these
// operations is meant to be retried with weaker parameters.
package crypto
