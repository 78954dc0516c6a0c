// Package memory provides in-memory storage for TokenGate.
//
// It implements the token store interface using concurrent-safe data
// structures with sharded locking.
//
// Features:
//
//   - Sharded Storage: Records distributed across shards for parallelism
//   - Secondary Index: Fast lookup of a user's tokens for bulk revocation
//   - Optimistic Concurrency: Renewal races resolved by a versioned
//     compare-and-swap on modified_at
//
// Thread Safety:
//
// All operations are thread-safe through fine-grained locking.
// Read operations use RLock, write operations use Lock.
package memory
