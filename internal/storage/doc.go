// Package storage defines the TokenStore contract and its backends.
//
// A TokenStore is durable CRUD over token records keyed by the token
// value, plus one concurrency primitive: CompareAndSetModifiedAt. The
// lifecycle manager performs every mutation through that narrow
// surface, so any backend that honors the contract can carry it.
//
// Backends:
//
//   - memory: sharded concurrent map, for tests and single-process use
//   - badgerstore: embedded Badger with optional payload encryption
//   - postgres: one relational table, conditional UPDATE as the CAS
//   - redistore: Redis with Lua-scripted atomic mutations
//
// Expiry is policy, not storage: a backend returns records regardless
// of age and never deletes on read. The manager and the sweeper decide
// what is expired.
package storage
