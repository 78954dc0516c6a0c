package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/norlun/tokengate-go/internal/core/domain"
	"github.com/norlun/tokengate-go/internal/storage"
	"github.com/norlun/tokengate-go/internal/telemetry/logger"
	"github.com/norlun/tokengate-go/internal/telemetry/metric"
	"github.com/norlun/tokengate-go/pkg/token"
)

// Lifecycle defaults, used when the corresponding config knob is
// left at zero in DefaultManagerConfig.
const (
	DefaultTTLSeconds            = 300
	DefaultRenewThresholdSeconds = 30
)

// ManagerConfig holds the lifecycle parameters of a TokenManager.
//
// Values are captured once at construction; changing the struct
// afterwards has no effect on a running manager.
type ManagerConfig struct {
	// TTLSeconds is the sliding lifetime of a token. A record whose
	// age exceeds this many seconds is expired. Honored verbatim,
	// including non-positive values.
	TTLSeconds int64

	// RenewThresholdSeconds is the minimum record age before a
	// validation with renewal refreshes modified_at. Younger records
	// are served without a write.
	RenewThresholdSeconds int64

	// Metrics receives the lifecycle counters. A private registry is
	// created when nil.
	Metrics *metric.Registry

	// Logger receives operational events. Defaults to the process
	// default logger.
	Logger logger.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// DefaultManagerConfig returns the stock lifecycle parameters.
func DefaultManagerConfig() *ManagerConfig {
	return &ManagerConfig{
		TTLSeconds:            DefaultTTLSeconds,
		RenewThresholdSeconds: DefaultRenewThresholdSeconds,
	}
}

// TokenManager implements the token lifecycle: issuance, validation
// with sliding renewal, revocation, and expiry sweeps.
//
// Expiry is policy, not storage: stores return records regardless of
// age, and the manager decides liveness from modified_at at read
// time. A TokenManager is safe for concurrent use.
type TokenManager struct {
	store   storage.TokenStore
	gen     *token.Generator
	ttl     int64
	renewAt int64
	metrics *metric.Registry
	log     logger.Logger
	now     func() time.Time
}

// NewTokenManager creates a manager bound to the given store and
// token generator. A nil cfg uses DefaultManagerConfig.
func NewTokenManager(store storage.TokenStore, gen *token.Generator, cfg *ManagerConfig) *TokenManager {
	if cfg == nil {
		cfg = DefaultManagerConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = metric.NewRegistry()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &TokenManager{
		store:   store,
		gen:     gen,
		ttl:     cfg.TTLSeconds,
		renewAt: cfg.RenewThresholdSeconds,
		metrics: metrics,
		log:     log,
		now:     now,
	}
}

// TTLSeconds returns the captured token lifetime.
func (m *TokenManager) TTLSeconds() int64 { return m.ttl }

// RenewThresholdSeconds returns the captured renewal threshold.
func (m *TokenManager) RenewThresholdSeconds() int64 { return m.renewAt }

// Metrics returns the registry receiving this manager's counters.
func (m *TokenManager) Metrics() *metric.Registry { return m.metrics }

// ============================================================================
// Issuance
// ============================================================================

// IssueRequest contains parameters for token issuance.
type IssueRequest struct {
	// Payload is the JSON document bound to the token. A payload
	// whose top-level "user_id" field is set enables per-user
	// revocation.
	Payload json.RawMessage
}

// IssueResponse contains the result of token issuance.
type IssueResponse struct {
	Token     string
	ExpiresAt int64 // Unix seconds
}

// Issue mints a fresh token bound to the given payload.
func (m *TokenManager) Issue(ctx context.Context, req *IssueRequest) (*IssueResponse, error) {
	// 1. Validate input
	if req == nil || len(req.Payload) == 0 {
		return nil, domain.ErrMissingArgument.WithDetails("payload is required")
	}
	if !json.Valid(req.Payload) {
		return nil, domain.ErrInvalidPayload.WithDetails("payload must be valid JSON")
	}

	// 2. Generate the token value
	now := m.now()
	value, err := m.gen.Generate(now)
	if err != nil {
		return nil, domain.ErrInternal.WithDetails("token generation failed").WithCause(err)
	}

	// 3. Persist the record
	rec := &domain.TokenRecord{
		Token:      value,
		Payload:    req.Payload,
		ModifiedAt: now.Unix(),
	}
	if err := m.store.Insert(ctx, rec); err != nil {
		return nil, err
	}

	m.metrics.TokensIssued.Inc()
	if uid, ok := rec.UserID(); ok {
		m.log.Debug("token issued", "token", value, "user_id", uid)
	} else {
		m.log.Debug("token issued", "token", value)
	}

	return &IssueResponse{
		Token:     value,
		ExpiresAt: rec.ExpiresAt(m.ttl),
	}, nil
}

// ============================================================================
// Validation
// ============================================================================

// ValidateRequest contains parameters for token validation.
type ValidateRequest struct {
	// Token is the value presented by the client.
	Token string

	// Renew asks for the sliding window to be refreshed when the
	// record is old enough.
	Renew bool
}

// ValidateResponse contains the result of token validation.
type ValidateResponse struct {
	// Record is the live token record.
	Record *domain.TokenRecord

	// Renewed reports whether this validation refreshed modified_at.
	Renewed bool

	// ExpiresAt is the expiry in Unix seconds, computed from the
	// record's final modified_at.
	ExpiresAt int64
}

// Validate checks a presented token and returns its record.
//
// With req.Renew set, a record at least RenewThresholdSeconds old has
// its modified_at refreshed through a single conditional update,
// sliding the expiry window forward. When a concurrent validation
// wins that update, its outcome is adopted rather than failing the
// caller.
func (m *TokenManager) Validate(ctx context.Context, req *ValidateRequest) (*ValidateResponse, error) {
	// 1. Validate input
	if req == nil || req.Token == "" {
		return nil, domain.ErrMissingArgument.WithDetails("token is required")
	}

	// 2. Fetch the record
	nowUnix := m.now().Unix()
	rec, err := m.store.Get(ctx, req.Token)
	if err != nil {
		m.countValidation(err)
		return nil, err
	}

	// 3. Expiry check
	if rec.IsExpired(nowUnix, m.ttl) {
		return nil, m.expire(ctx, req.Token)
	}

	// 4. Serve without a write when renewal is off or the record is young
	if !req.Renew || rec.Age(nowUnix) < m.renewAt {
		m.metrics.Validations.WithLabelValues(metric.ResultOK).Inc()
		return &ValidateResponse{
			Record:    rec,
			Renewed:   false,
			ExpiresAt: rec.ExpiresAt(m.ttl),
		}, nil
	}

	// 5. Renew through a single conditional update on modified_at
	updated, err := m.store.CompareAndSetModifiedAt(ctx, req.Token, rec.ModifiedAt, nowUnix)
	if err == nil {
		m.metrics.Renewals.WithLabelValues(metric.OutcomeWon).Inc()
		m.metrics.Validations.WithLabelValues(metric.ResultRenewed).Inc()
		m.log.Debug("token renewed", "token", req.Token, "modified_at", nowUnix)
		return &ValidateResponse{
			Record:    updated,
			Renewed:   true,
			ExpiresAt: updated.ExpiresAt(m.ttl),
		}, nil
	}
	if !errors.Is(err, domain.ErrStaleRecord) {
		m.countValidation(err)
		return nil, err
	}

	// 6. Lost the update race: adopt the concurrent writer's outcome
	m.metrics.Renewals.WithLabelValues(metric.OutcomeLost).Inc()
	cur, err := m.store.Get(ctx, req.Token)
	if err != nil {
		m.countValidation(err)
		return nil, err
	}
	if cur.IsExpired(nowUnix, m.ttl) {
		return nil, m.expire(ctx, req.Token)
	}
	m.metrics.Validations.WithLabelValues(metric.ResultOK).Inc()
	return &ValidateResponse{
		Record:    cur,
		Renewed:   false,
		ExpiresAt: cur.ExpiresAt(m.ttl),
	}, nil
}

// expire removes an expired record best effort and returns the expiry
// sentinel. Cleanup failures are logged, not surfaced; the sweeper
// retries on its next pass.
func (m *TokenManager) expire(ctx context.Context, tokenValue string) error {
	if _, err := m.store.Delete(ctx, tokenValue); err != nil {
		m.log.Warn("expired token cleanup failed", "token", tokenValue, "error", err)
	}
	m.metrics.Validations.WithLabelValues(metric.ResultExpired).Inc()
	return domain.ErrTokenExpired
}

// countValidation records the failure class of a validation attempt.
func (m *TokenManager) countValidation(err error) {
	if errors.Is(err, domain.ErrTokenNotFound) {
		m.metrics.Validations.WithLabelValues(metric.ResultNotFound).Inc()
		return
	}
	m.metrics.Validations.WithLabelValues(metric.ResultError).Inc()
}

// ============================================================================
// Revocation
// ============================================================================

// RevokeRequest contains parameters for single-token revocation.
type RevokeRequest struct {
	Token string
}

// RevokeResponse contains the result of single-token revocation.
type RevokeResponse struct {
	// Revoked reports whether a record was removed. False means the
	// token was already gone; revocation is idempotent and this is
	// not an error.
	Revoked bool
}

// Revoke removes a token immediately.
func (m *TokenManager) Revoke(ctx context.Context, req *RevokeRequest) (*RevokeResponse, error) {
	// 1. Validate input
	if req == nil || req.Token == "" {
		return nil, domain.ErrMissingArgument.WithDetails("token is required")
	}

	// 2. Delete from storage
	removed, err := m.store.Delete(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	if removed {
		m.metrics.RevokedTokens.WithLabelValues(metric.ScopeToken).Inc()
		m.log.Info("token revoked", "token", req.Token)
	}
	return &RevokeResponse{Revoked: removed}, nil
}

// RevokeUserRequest contains parameters for per-user revocation.
type RevokeUserRequest struct {
	UserID string
}

// RevokeUserResponse contains the result of per-user revocation.
type RevokeUserResponse struct {
	RevokedCount int64
}

// RevokeAllForUser removes every token whose payload carries the given
// user_id.
func (m *TokenManager) RevokeAllForUser(ctx context.Context, req *RevokeUserRequest) (*RevokeUserResponse, error) {
	// 1. Validate input
	if req == nil || req.UserID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("user_id is required")
	}

	// 2. Delete the user's tokens
	count, err := m.store.DeleteForUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		m.metrics.RevokedTokens.WithLabelValues(metric.ScopeUser).Add(float64(count))
	}
	m.log.Info("user tokens revoked", "user_id", req.UserID, "count", count)
	return &RevokeUserResponse{RevokedCount: count}, nil
}

// ============================================================================
// Sweeping
// ============================================================================

// Sweep removes every record old enough that no validation could still
// accept it, and returns the number removed.
//
// The cutoff keeps a one second grace floor so a non-positive TTL does
// not wipe records written this instant.
func (m *TokenManager) Sweep(ctx context.Context) (int64, error) {
	grace := m.ttl
	if grace < 1 {
		grace = 1
	}
	cutoff := m.now().Unix() - grace

	removed, err := m.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		m.metrics.SweptTokens.Add(float64(removed))
		m.log.Info("expired tokens swept", "count", removed, "cutoff", cutoff)
	}
	return removed, nil
}
