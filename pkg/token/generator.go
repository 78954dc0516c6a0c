// Package token provides session token value generation.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// EntropyLength is the number of random bytes mixed into each token.
const EntropyLength = 32

// EncodedLength is the length of a token value in its string form.
const EncodedLength = sha256.Size * 2

// Generator derives token values from a server-side secret.
//
// A Generator is immutable and safe for concurrent use.
type Generator struct {
	secret []byte
	rand   io.Reader
}

// NewGenerator creates a generator bound to the given secret.
//
// The secret is copied; callers may reuse or zero their slice.
func NewGenerator(secret []byte) *Generator {
	s := make([]byte, len(secret))
	copy(s, secret)
	return &Generator{
		secret: s,
		rand:   rand.Reader,
	}
}

// Generate derives a fresh token value for the given issue time.
//
// The value is the hex-encoded SHA-256 digest of the secret, 32 bytes
// of fresh randomness, and the issue time in Unix seconds encoded big
// endian. Collisions between live tokens are negligible, but callers
// must still treat a duplicate-key insert as a handled error.
func (g *Generator) Generate(now time.Time) (string, error) {
	entropy := make([]byte, EntropyLength)
	if _, err := io.ReadFull(g.rand, entropy); err != nil {
		return "", fmt.Errorf("token: read entropy: %w", err)
	}

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(now.Unix()))

	h := sha256.New()
	h.Write(g.secret)
	h.Write(entropy)
	h.Write(ts[:])
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsWellFormed reports whether s has the shape of a generated token:
// exactly EncodedLength lowercase hex characters.
//
// A well-formed value is not necessarily live; only the store knows.
func IsWellFormed(s string) bool {
	if len(s) != EncodedLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
