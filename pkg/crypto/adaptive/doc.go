// Package adaptive provides adaptive authenticated encryption for TokenGate.
//
// The embedded store uses it to encrypt token payloads at rest. The
// cipher abstraction automatically selects the best available
// algorithm for the host:
//
//   - AES-256-GCM: preferred when hardware AES support is available
//   - ChaCha20-Poly1305: fallback for systems without AES-NI
//
// Features:
//
//   - Hardware detection: automatic selection based on CPU features
//   - AEAD: authenticated encryption with associated data, used to
//     bind a payload ciphertext to its record key
//   - Key derivation: HKDF-SHA256 from a configured passphrase
//
// Usage:
//
//	key, err := adaptive.DeriveKey(passphrase, "payload-at-rest")
//	c, err := adaptive.New(key)
//	sealed, err := c.Encrypt(plaintext, aad)
//	plain, err := c.Decrypt(sealed, aad)
package adaptive
