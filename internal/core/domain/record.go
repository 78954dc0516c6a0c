// Package domain defines the core domain models for TokenGate.
package domain

import (
	"bytes"
	"encoding/json"

	"github.com/norlun/tokengate-go/pkg/token"
)

// UserIDField is the payload field bulk revocation keys on.
const UserIDField = "user_id"

// TokenRecord is the persisted unit of session state.
//
// The payload is opaque to the lifecycle core: it is stored and
// returned verbatim, except that bulk revocation reads the single
// well-known field "user_id" out of it.
type TokenRecord struct {
	// Token is the opaque unique identifier. Primary key.
	Token string `json:"token"`

	// Payload is arbitrary caller data (user identity, claims).
	Payload json.RawMessage `json:"payload"`

	// ModifiedAt is the Unix timestamp (seconds) of creation or last
	// renewal. It only ever moves forward for a given token.
	ModifiedAt int64 `json:"modified_at"`
}

// Age returns the record's age in seconds at the given instant.
func (r *TokenRecord) Age(now int64) int64 {
	return now - r.ModifiedAt
}

// ExpiresAt returns the effective expiry for the given TTL.
func (r *TokenRecord) ExpiresAt(ttlSeconds int64) int64 {
	return r.ModifiedAt + ttlSeconds
}

// IsExpired reports whether the record has aged past the TTL at the
// given instant. A record exactly at the TTL boundary is still valid.
func (r *TokenRecord) IsExpired(now, ttlSeconds int64) bool {
	return r.Age(now) > ttlSeconds
}

// Clone returns a deep copy of the record.
func (r *TokenRecord) Clone() *TokenRecord {
	c := *r
	if r.Payload != nil {
		c.Payload = make(json.RawMessage, len(r.Payload))
		copy(c.Payload, r.Payload)
	}
	return &c
}

// Validate checks structural well-formedness: the token value has the
// generated shape and the payload is valid JSON.
func (r *TokenRecord) Validate() error {
	if !token.IsWellFormed(r.Token) {
		return ErrTokenMalformed.WithDetails("want 64 lowercase hex characters")
	}
	if !json.Valid(r.Payload) {
		return ErrInvalidPayload
	}
	return nil
}

// UserID extracts the payload's "user_id" field rendered as text the
// way SQL JSON operators render scalars: strings bare, numbers and
// booleans as their JSON literal text. Returns false when the payload
// is not an object, the field is absent, or the field is JSON null.
func (r *TokenRecord) UserID() (string, bool) {
	return PayloadUserID(r.Payload)
}

// PayloadUserID extracts "user_id" from a raw payload. See
// TokenRecord.UserID for the rendering rules.
func PayloadUserID(payload json.RawMessage) (string, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return "", false
	}

	raw, ok := fields[UserIDField]
	if !ok {
		return "", false
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}

	// Strings unquote; every other JSON value keeps its literal text.
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return "", false
	}
	return compact.String(), true
}
