package memory

import (
	"sync"

	"github.com/norlun/tokengate-go/pkg/cmap"
)

// TokenSet is a small mutable set of token values with its own lock.
// One set exists per indexed user.
type TokenSet struct {
	mu     sync.RWMutex
	tokens map[string]struct{}
}

// NewTokenSet returns an empty set.
func NewTokenSet() *TokenSet {
	return &TokenSet{tokens: make(map[string]struct{})}
}

// Add inserts a token value. Adding an existing value is a no-op.
func (s *TokenSet) Add(tokenValue string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenValue] = struct{}{}
}

// Remove deletes a token value and reports whether it was present.
func (s *TokenSet) Remove(tokenValue string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[tokenValue]; !ok {
		return false
	}
	delete(s.tokens, tokenValue)
	return true
}

// Has reports whether the set contains a token value.
func (s *TokenSet) Has(tokenValue string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tokens[tokenValue]
	return ok
}

// Len returns the number of values in the set.
func (s *TokenSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// Values returns a snapshot of the set's contents in no particular order.
func (s *TokenSet) Values() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tokens))
	for t := range s.tokens {
		out = append(out, t)
	}
	return out
}

// UserIndex maps a user ID to the set of live token values issued to it.
// It exists so DeleteForUser does not have to scan the whole store. The
// index is advisory: the record map remains the source of truth, and
// callers re-check membership there when it matters.
type UserIndex struct {
	users *cmap.Map[*TokenSet]
}

// NewUserIndex returns an empty index.
func NewUserIndex() *UserIndex {
	return &UserIndex{users: cmap.New[*TokenSet]()}
}

// Add records that a token belongs to a user.
func (ix *UserIndex) Add(userID, tokenValue string) {
	set, _ := ix.users.GetOrSet(userID, NewTokenSet())
	set.Add(tokenValue)
}

// Remove drops one token from a user's set. Empty sets are pruned so the
// index does not accumulate entries for users with no live tokens.
func (ix *UserIndex) Remove(userID, tokenValue string) {
	set, ok := ix.users.Get(userID)
	if !ok {
		return
	}
	set.Remove(tokenValue)
	if set.Len() == 0 {
		ix.users.Delete(userID)
	}
}

// Tokens returns a snapshot of the token values indexed for a user.
func (ix *UserIndex) Tokens(userID string) []string {
	set, ok := ix.users.Get(userID)
	if !ok {
		return nil
	}
	return set.Values()
}

// Drop removes a user's entry entirely and returns the token values it
// held.
func (ix *UserIndex) Drop(userID string) []string {
	set, ok := ix.users.Pop(userID)
	if !ok {
		return nil
	}
	return set.Values()
}

// Users returns the number of users currently indexed.
func (ix *UserIndex) Users() int {
	return ix.users.Count()
}
