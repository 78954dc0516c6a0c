package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/norlun/tokengate-go/internal/core/domain"
	"github.com/norlun/tokengate-go/internal/infra/tlsroots"
	"github.com/norlun/tokengate-go/internal/storage"
	"github.com/norlun/tokengate-go/internal/telemetry/logger"
)

// pgUniqueViolation is the PostgreSQL error code for a unique
// constraint violation.
const pgUniqueViolation = "23505"

// Options configures the PostgreSQL store.
type Options struct {
	// DSN is the connection string. Required.
	DSN string

	// MaxConns and MinConns bound the pool. Zero keeps pgx defaults.
	MaxConns int32
	MinConns int32

	// ConnMaxLifetime and ConnMaxIdleTime recycle pooled connections.
	// Zero keeps pgx defaults.
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// PingTimeout bounds the connectivity check at open. Zero means 3s.
	PingTimeout time.Duration

	// CARootFile adds a custom CA bundle on top of the system roots and
	// forces TLS with verification when set.
	CARootFile string

	// Logger receives store log output.
	Logger logger.Logger
}

// Store is the PostgreSQL-backed token store.
type Store struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

var (
	_ storage.TokenStore = (*Store)(nil)
	_ storage.Counter    = (*Store)(nil)
	_ storage.Scanner    = (*Store)(nil)
)

// New builds a connection pool, validates connectivity and returns the
// store. It does not create the schema; call EnsureSchema for that.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("postgres: dsn is required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}

	pcfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		pcfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		pcfg.MinConns = opts.MinConns
	}
	if opts.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = opts.ConnMaxLifetime
	}
	if opts.ConnMaxIdleTime > 0 {
		pcfg.MaxConnIdleTime = opts.ConnMaxIdleTime
	}
	if opts.CARootFile != "" {
		roots, err := tlsroots.NewPool()
		if err != nil {
			return nil, fmt.Errorf("postgres: system roots: %w", err)
		}
		if err := roots.AddCertFile(opts.CARootFile); err != nil {
			return nil, fmt.Errorf("postgres: ca roots: %w", err)
		}
		tlsCfg := roots.TLSConfig()
		tlsCfg.ServerName = pcfg.ConnConfig.Host
		pcfg.ConnConfig.TLSConfig = tlsCfg
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 3 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	log.Info("postgres store connected",
		"host", pcfg.ConnConfig.Host,
		"database", pcfg.ConnConfig.Database,
		"custom_roots", opts.CARootFile != "")
	return &Store{pool: pool, log: log}, nil
}

// EnsureSchema creates the token table and its sweep index when they
// do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS tokengate_tokens (
			token       TEXT PRIMARY KEY,
			payload     JSONB NOT NULL,
			modified_at BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS tokengate_tokens_modified_at_idx
			ON tokengate_tokens (modified_at);
	`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return storage.OpError("ensure_schema", err)
	}
	return nil
}

// Pool exposes the underlying pool for health checks.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Insert persists a new record.
func (s *Store) Insert(ctx context.Context, rec *domain.TokenRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokengate_tokens (token, payload, modified_at)
		VALUES ($1, $2, $3)
	`, rec.Token, rec.Payload, rec.ModifiedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrDuplicateToken
		}
		return storage.OpError(storage.OpInsert, err)
	}
	return nil
}

// Get returns the record for a token value, regardless of its age.
func (s *Store) Get(ctx context.Context, tokenValue string) (*domain.TokenRecord, error) {
	var (
		payload    []byte
		modifiedAt int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT payload, modified_at
		FROM tokengate_tokens
		WHERE token = $1
	`, tokenValue).Scan(&payload, &modifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, storage.OpError(storage.OpGet, err)
	}
	return &domain.TokenRecord{
		Token:      tokenValue,
		Payload:    json.RawMessage(payload),
		ModifiedAt: modifiedAt,
	}, nil
}

// CompareAndSetModifiedAt updates modified_at in a single conditional
// UPDATE. No matching row, whether the record is gone or its timestamp
// moved, reports ErrStaleRecord.
func (s *Store) CompareAndSetModifiedAt(ctx context.Context, tokenValue string, expected, updated int64) (*domain.TokenRecord, error) {
	var (
		payload    []byte
		modifiedAt int64
	)
	err := s.pool.QueryRow(ctx, `
		UPDATE tokengate_tokens
		SET modified_at = $3
		WHERE token = $1 AND modified_at = $2
		RETURNING payload, modified_at
	`, tokenValue, expected, updated).Scan(&payload, &modifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStaleRecord
	}
	if err != nil {
		return nil, storage.OpError(storage.OpCompareAndSet, err)
	}
	return &domain.TokenRecord{
		Token:      tokenValue,
		Payload:    json.RawMessage(payload),
		ModifiedAt: modifiedAt,
	}, nil
}

// Delete removes one record. The boolean reports whether it existed.
func (s *Store) Delete(ctx context.Context, tokenValue string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM tokengate_tokens
		WHERE token = $1
	`, tokenValue)
	if err != nil {
		return false, storage.OpError(storage.OpDelete, err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteForUser removes every record whose payload user_id renders to
// the given text.
func (s *Store) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM tokengate_tokens
		WHERE payload->>'user_id' = $1
	`, userID)
	if err != nil {
		return 0, storage.OpError(storage.OpDeleteForUser, err)
	}
	return tag.RowsAffected(), nil
}

// DeleteOlderThan removes records with modified_at strictly below the
// cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM tokengate_tokens
		WHERE modified_at < $1
	`, cutoff)
	if err != nil {
		return 0, storage.OpError(storage.OpDeleteOlderThan, err)
	}
	return tag.RowsAffected(), nil
}

// Count returns the number of live records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM tokengate_tokens
	`).Scan(&n)
	if err != nil {
		return 0, storage.OpError(storage.OpCount, err)
	}
	return n, nil
}

// Scan streams every row in token order.
func (s *Store) Scan(ctx context.Context, fn func(*domain.TokenRecord) error) error {
	rows, err := s.pool.Query(ctx, `
		SELECT token, payload, modified_at
		FROM tokengate_tokens
		ORDER BY token
	`)
	if err != nil {
		return storage.OpError(storage.OpScan, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tokenValue string
			payload    []byte
			modifiedAt int64
		)
		if err := rows.Scan(&tokenValue, &payload, &modifiedAt); err != nil {
			return storage.OpError(storage.OpScan, err)
		}
		rec := &domain.TokenRecord{
			Token:      tokenValue,
			Payload:    json.RawMessage(payload),
			ModifiedAt: modifiedAt,
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return storage.OpError(storage.OpScan, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
