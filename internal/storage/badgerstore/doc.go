// Package badgerstore provides embedded durable storage for TokenGate
// using Badger v3.
//
// Records are stored under three key families:
//
//	tok:<token>                   encoded record
//	usr:<user_id>:<token>         user index, value empty
//	mod:<big-endian ts>:<token>   modified_at index, value empty
//
// The user index serves bulk revocation without a full scan; the
// modified_at index lets the sweeper walk candidates oldest-first and
// stop at the cutoff. All three families are maintained inside the same
// transaction as the record write, so they never disagree with the
// record itself.
//
// The renewal compare-and-set runs as a single serializable read-check-
// write transaction. Badger's conflict detection aborts the loser of a
// renewal race, which surfaces as a stale-record error.
//
// When an encryption key is configured, record values are sealed with
// the adaptive AEAD cipher using the record key as additional data, so
// a value copied under a different key fails authentication.
package badgerstore
