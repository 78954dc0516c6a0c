// Package cmap provides a concurrent string-keyed map for TokenGate.
//
// This package implements a sharded concurrent map optimized for
// token record storage and secondary indexes:
//
//   - Sharding: power-of-two shard count for parallelism
//   - Fine-grained locking: per-shard RWMutex for minimal contention
//   - Optimistic locking: version-based compare-and-swap and
//     compare-and-delete, where the version is intrinsic to the value
//
// Keys are always strings (token values, user ids), which keeps the
// shard hash on the fast maphash.String path.
//
// Thread Safety:
//
// All operations are safe for concurrent use. Reads (Get, Has) take a
// shard read lock, writes (Set, Delete) a shard write lock.
package cmap
