// Package backup writes and reads offline archives of token records.
//
// An archive is a full dump of a store, produced by the CLI backup
// command and restored with plain Inserts. It is the recovery path for
// the embedded backends and a migration path between backends.
//
// File layout:
//
//	backup-<timestamp>-<sequence>.bak
//	[magic:8 "TGBACKUP"]
//	[HeaderLen:4][HeaderJSON:HeaderLen]
//	[DataLen:4][Data:DataLen]   (JSON records, or encrypted bytes)
//	[checksum:32 SHA-256 of all bytes above]
//
// The record block can be encrypted with a raw key or a passphrase.
// Passphrase keys are derived with Argon2id; the salt travels in the
// header, so any manager holding the passphrase can open the archive.
// The header JSON is bound to the ciphertext as AEAD additional data,
// so a tampered header fails decryption even when the attacker fixes
// up the checksum.
package backup
