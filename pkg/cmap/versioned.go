// Package cmap provides a concurrent string-keyed map for TokenGate.
package cmap

// Versioned is an interface for values that carry their own version.
//
// Unlike counter-based optimistic locking, the version here is a
// property of the value itself (for token records, the modified_at
// timestamp), so a replacement value arrives with its version already
// set and the map never rewrites it.
type Versioned interface {
	Version() uint64
}

// CompareAndSwap atomically replaces the value under key with newValue
// if the current value's version equals expectedVersion.
//
// Returns false when the key is absent or the version does not match.
// This is the primitive optimistic renewal is built on.
func CompareAndSwap[V Versioned](m *Map[V], key string, expectedVersion uint64, newValue V) bool {
	shard := m.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	current, exists := shard.items[key]
	if !exists {
		return false
	}

	if current.Version() != expectedVersion {
		return false
	}

	shard.items[key] = newValue
	return true
}

// CompareAndDelete atomically deletes the value under key if its
// version equals expectedVersion.
//
// Returns true if the delete happened. A sweep uses this so it never
// removes a record that was renewed after the sweep observed it.
func CompareAndDelete[V Versioned](m *Map[V], key string, expectedVersion uint64) bool {
	shard := m.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	current, exists := shard.items[key]
	if !exists {
		return false
	}

	if current.Version() != expectedVersion {
		return false
	}

	delete(shard.items, key)
	return true
}
