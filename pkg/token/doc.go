// Package token provides session token value generation.
//
// This package implements cryptographically secure generation of the
// opaque token values TokenGate hands out.
//
// Token Format:
//
//   - 64 characters of lowercase hex: the SHA-256 digest of
//     server secret || 32 random bytes || issue time (8 bytes, big endian)
//
// Security:
//
//   - Uses crypto/rand for CSPRNG
//   - The digest is an unguessable identifier, not a verifiable MAC;
//     the backing store stays the source of truth for liveness
//   - Mixing in the server secret and issue time keeps values
//     unpredictable even under partial RNG disclosure
package token
