// Package storage defines the TokenStore contract and its backends.
package storage

import (
	"context"

	"github.com/norlun/tokengate-go/internal/core/domain"
)

// Operation names, as reported in metrics and error details.
const (
	OpInsert          = "insert"
	OpGet             = "get"
	OpCompareAndSet   = "compare_and_set"
	OpDelete          = "delete"
	OpDeleteForUser   = "delete_for_user"
	OpDeleteOlderThan = "delete_older_than"
	OpCount           = "count"
	OpScan            = "scan"
)

// TokenStore is durable storage for token records.
//
// All coordination between concurrent validators happens through
// CompareAndSetModifiedAt; direct unconditional updates of a record's
// modified_at do not exist on this surface.
type TokenStore interface {
	// Insert persists a new record. Returns ErrDuplicateToken when the
	// token value already exists.
	Insert(ctx context.Context, rec *domain.TokenRecord) error

	// Get returns the record for a token value, regardless of its age.
	// Returns ErrTokenNotFound when absent. No side effects.
	Get(ctx context.Context, tokenValue string) (*domain.TokenRecord, error)

	// CompareAndSetModifiedAt atomically sets modified_at to updated
	// only if the stored value currently equals expected, and returns
	// the updated record. Returns ErrStaleRecord when the precondition
	// failed or the record no longer exists. This must be a single
	// atomic operation at the store, never a read-then-write pair.
	CompareAndSetModifiedAt(ctx context.Context, tokenValue string, expected, updated int64) (*domain.TokenRecord, error)

	// Delete removes a record. The boolean reports whether one existed.
	Delete(ctx context.Context, tokenValue string) (bool, error)

	// DeleteForUser removes every record whose payload user_id equals
	// userID, and returns how many were removed.
	DeleteForUser(ctx context.Context, userID string) (int64, error)

	// DeleteOlderThan removes every record with modified_at < cutoff,
	// and returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error)

	// Close releases backend resources.
	Close() error
}

// Counter is an optional interface for backends that can report their
// live record count. The stats command and the store collector use it.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// Scanner is an optional interface for backends that can enumerate
// every live record. The backup command uses it to export a store.
type Scanner interface {
	// Scan calls fn for every live record and stops at the first
	// error, which it returns unchanged. Records inserted or removed
	// while the scan runs may or may not be visited.
	Scan(ctx context.Context, fn func(*domain.TokenRecord) error) error
}

// OpError wraps a backend failure as a storage domain error carrying
// the failed operation name.
func OpError(op string, err error) error {
	return domain.ErrStorage.WithDetails(op).WithCause(err)
}
