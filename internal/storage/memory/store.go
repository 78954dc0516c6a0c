package memory

import (
	"context"
	"sync"

	"github.com/norlun/tokengate-go/internal/core/domain"
	"github.com/norlun/tokengate-go/internal/storage"
	"github.com/norlun/tokengate-go/pkg/cmap"
)

// entry wraps a stored record so the sharded map can version it. The
// version is the record's modified_at: a successful renewal changes the
// timestamp, so timestamp equality is exactly the compare-and-set
// precondition the manager needs.
type entry struct {
	rec *domain.TokenRecord
}

// Version implements cmap.Versioned.
func (e entry) Version() uint64 { return uint64(e.rec.ModifiedAt) }

// Store is the in-memory storage backend. Records live in a sharded map
// keyed by token value; a user index keeps DeleteForUser from scanning
// every shard. Stored records are never mutated in place: writes install
// fresh clones and reads hand out clones, so callers can hold onto
// results without racing the store.
//
// The store-level mutex serializes the operations that touch both the
// record map and the user index. Single-record reads and the renewal
// compare-and-set take the read side only, so validation traffic stays
// concurrent.
type Store struct {
	mu      sync.RWMutex
	records *cmap.Map[entry]
	users   *UserIndex
}

var (
	_ storage.TokenStore = (*Store)(nil)
	_ storage.Counter    = (*Store)(nil)
	_ storage.Scanner    = (*Store)(nil)
)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		records: cmap.New[entry](),
		users:   NewUserIndex(),
	}
}

// Insert persists a new record, rejecting duplicate token values.
func (s *Store) Insert(_ context.Context, rec *domain.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := rec.Clone()
	if !s.records.SetIfAbsent(clone.Token, entry{rec: clone}) {
		return domain.ErrDuplicateToken
	}
	if uid, ok := clone.UserID(); ok {
		s.users.Add(uid, clone.Token)
	}
	return nil
}

// Get returns a clone of the stored record. Age is not inspected here;
// expiry is the caller's policy.
func (s *Store) Get(_ context.Context, tokenValue string) (*domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.records.Get(tokenValue)
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	return e.rec.Clone(), nil
}

// CompareAndSetModifiedAt swaps in a record with the updated timestamp
// only if the stored timestamp still equals expected. Both a vanished
// record and a changed timestamp surface as ErrStaleRecord; the caller
// re-reads to tell the two apart.
func (s *Store) CompareAndSetModifiedAt(_ context.Context, tokenValue string, expected, updated int64) (*domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cur, ok := s.records.Get(tokenValue)
	if !ok || cur.rec.ModifiedAt != expected {
		return nil, domain.ErrStaleRecord
	}

	next := cur.rec.Clone()
	next.ModifiedAt = updated
	if !cmap.CompareAndSwap(s.records, tokenValue, uint64(expected), entry{rec: next}) {
		return nil, domain.ErrStaleRecord
	}
	return next.Clone(), nil
}

// Delete removes one record and its index entry.
func (s *Store) Delete(_ context.Context, tokenValue string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.records.Pop(tokenValue)
	if !ok {
		return false, nil
	}
	if uid, ok := e.rec.UserID(); ok {
		s.users.Remove(uid, tokenValue)
	}
	return true, nil
}

// DeleteForUser removes every record indexed for the user.
func (s *Store) DeleteForUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for _, tokenValue := range s.users.Drop(userID) {
		if _, ok := s.records.Pop(tokenValue); ok {
			removed++
		}
	}
	return removed, nil
}

// DeleteOlderThan removes records whose modified_at is strictly below
// the cutoff. Victims are collected first, then deleted with a versioned
// compare-and-delete, so a record renewed between the scan and the
// delete survives.
func (s *Store) DeleteOlderThan(_ context.Context, cutoff int64) (int64, error) {
	type victim struct {
		tokenValue string
		version    uint64
		userID     string
		indexed    bool
	}

	var victims []victim
	s.records.Range(func(tokenValue string, e entry) bool {
		if e.rec.ModifiedAt < cutoff {
			uid, ok := e.rec.UserID()
			victims = append(victims, victim{
				tokenValue: tokenValue,
				version:    uint64(e.rec.ModifiedAt),
				userID:     uid,
				indexed:    ok,
			})
		}
		return true
	})
	if len(victims) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for _, v := range victims {
		if !cmap.CompareAndDelete(s.records, v.tokenValue, v.version) {
			continue
		}
		if v.indexed {
			s.users.Remove(v.userID, v.tokenValue)
		}
		removed++
	}
	return removed, nil
}

// Count returns the number of live records.
func (s *Store) Count(_ context.Context) (int64, error) {
	return int64(s.records.Count()), nil
}

// Scan visits every live record. Clones are handed out, so fn may keep
// what it receives.
func (s *Store) Scan(_ context.Context, fn func(*domain.TokenRecord) error) error {
	var fnErr error
	s.records.Range(func(_ string, e entry) bool {
		if err := fn(e.rec.Clone()); err != nil {
			fnErr = err
			return false
		}
		return true
	})
	return fnErr
}

// Close is a no-op; the store holds no external resources.
func (s *Store) Close() error { return nil }
