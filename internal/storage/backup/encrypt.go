package backup

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/norlun/tokengate-go/pkg/crypto/adaptive"
)

// Encryption errors.
var (
	ErrKeyTooShort       = errors.New("backup: encryption key too short (minimum 16 bytes)")
	ErrPassphraseTooWeak = errors.New("backup: passphrase too weak (minimum 8 characters)")
	ErrKeyRequired       = errors.New("backup: archive is encrypted and no key material was given")
	ErrUnexpectedPlain   = errors.New("backup: key material given but the archive is not encrypted")
	ErrDecryptFailed     = errors.New("backup: decryption failed, wrong key or corrupted archive")
)

const (
	// MinKeyLength is the minimum raw key length.
	MinKeyLength = 16

	// MinPassphraseLength is the minimum passphrase length.
	MinPassphraseLength = 8

	// SaltLength is the salt length for passphrase key derivation.
	SaltLength = 16

	// Argon2id parameters for passphrase key derivation.
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
)

// EncryptionConfig selects the archive encryption key material. The
// zero value means plaintext archives.
type EncryptionConfig struct {
	// Key is a raw encryption key. Ignored when Passphrase is set.
	Key []byte

	// Passphrase derives the key with Argon2id.
	Passphrase []byte

	// Salt is required to re-derive a passphrase key when opening an
	// archive; nil generates a fresh salt (the write path).
	Salt []byte

	// Algorithm is "aes-gcm" (default) or "chacha20-poly1305".
	Algorithm string
}

// Enabled reports whether any key material is configured.
func (c EncryptionConfig) Enabled() bool {
	return len(c.Key) > 0 || len(c.Passphrase) > 0
}

// ValidateConfig checks key material lengths.
func ValidateConfig(cfg EncryptionConfig) error {
	if len(cfg.Passphrase) > 0 {
		if len(cfg.Passphrase) < MinPassphraseLength {
			return ErrPassphraseTooWeak
		}
		return nil
	}
	if len(cfg.Key) > 0 && len(cfg.Key) < MinKeyLength {
		return ErrKeyTooShort
	}
	return nil
}

// NewCipher builds the archive cipher. A config without key material
// returns a nil cipher and no error. For passphrase configs the salt
// that was used is returned; the write path persists it in the archive
// header.
func NewCipher(cfg EncryptionConfig) (adaptive.Cipher, []byte, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, nil, err
	}

	var key, salt []byte
	switch {
	case len(cfg.Passphrase) > 0:
		var err error
		key, salt, err = DeriveKey(cfg.Passphrase, cfg.Salt)
		if err != nil {
			return nil, nil, err
		}
		defer ZeroKey(key)
	case len(cfg.Key) > 0:
		key = cfg.Key
	default:
		return nil, nil, nil
	}

	algo := cfg.Algorithm
	if algo == "" {
		algo = "aes-gcm"
	}
	switch algo {
	case "aes-gcm":
		c, err := adaptive.NewAESGCM(key)
		return c, salt, err
	case "chacha20-poly1305":
		c, err := adaptive.NewChaCha20(key)
		return c, salt, err
	default:
		return nil, nil, fmt.Errorf("backup: unsupported algorithm: %s", algo)
	}
}

// DeriveKey derives a 32-byte key from a passphrase with Argon2id.
// A nil salt generates a fresh random one; both the key and the salt
// that was used are returned.
func DeriveKey(passphrase, salt []byte) (key, usedSalt []byte, err error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, nil, ErrPassphraseTooWeak
	}
	if salt == nil {
		salt = make([]byte, SaltLength)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, fmt.Errorf("backup: derive key: %w", err)
		}
	}

	key = argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return key, salt, nil
}

// GenerateKey returns a random key of the given length.
func GenerateKey(length int) ([]byte, error) {
	if length < MinKeyLength {
		return nil, ErrKeyTooShort
	}
	key := make([]byte, length)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("backup: generate key: %w", err)
	}
	return key, nil
}

// ZeroKey overwrites key material in place.
func ZeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
