package redistore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/norlun/tokengate-go/internal/core/domain"
	"github.com/norlun/tokengate-go/internal/infra/tlsroots"
	"github.com/norlun/tokengate-go/internal/storage"
	"github.com/norlun/tokengate-go/internal/telemetry/logger"
)

// DefaultKeyPrefix namespaces all TokenGate keys.
const DefaultKeyPrefix = "tg:"

// insertScript creates the record hash and its index entries unless
// the token already exists.
//
// KEYS[1] record key, KEYS[2] mod zset.
// ARGV: payload, modified_at, user_id, has_user, usr prefix, token.
const insertScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "payload", ARGV[1],
  "modified_at", ARGV[2],
  "user_id", ARGV[3],
  "has_user", ARGV[4])
if ARGV[4] == "1" then
  redis.call("SADD", ARGV[5] .. ARGV[3], ARGV[6])
end
redis.call("ZADD", KEYS[2], ARGV[2], ARGV[6])
return 1
`

// casScript is the renewal compare-and-set: bump modified_at and move
// the zset score only when the stored timestamp still matches.
//
// KEYS[1] record key, KEYS[2] mod zset.
// ARGV: expected, updated, token.
const casScript = `
local cur = redis.call("HGET", KEYS[1], "modified_at")
if not cur or cur ~= ARGV[1] then
  return {0}
end
redis.call("HSET", KEYS[1], "modified_at", ARGV[2])
redis.call("ZADD", KEYS[2], ARGV[2], ARGV[3])
return {1, redis.call("HGET", KEYS[1], "payload")}
`

// deleteScript removes a record and both index entries.
//
// KEYS[1] record key, KEYS[2] mod zset.
// ARGV: token, usr prefix.
const deleteScript = `
local vals = redis.call("HMGET", KEYS[1], "user_id", "has_user")
local existed = redis.call("DEL", KEYS[1])
if existed == 1 then
  if vals[2] == "1" then
    redis.call("SREM", ARGV[2] .. vals[1], ARGV[1])
  end
  redis.call("ZREM", KEYS[2], ARGV[1])
end
return existed
`

// deleteForUserScript removes every record in a user's set.
//
// KEYS[1] user set key, KEYS[2] mod zset.
// ARGV: tok prefix.
const deleteForUserScript = `
local tokens = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, t in ipairs(tokens) do
  if redis.call("DEL", ARGV[1] .. t) == 1 then
    removed = removed + 1
  end
  redis.call("ZREM", KEYS[2], t)
end
redis.call("DEL", KEYS[1])
return removed
`

// sweepScript removes every record scored strictly below the cutoff.
//
// KEYS[1] mod zset.
// ARGV: cutoff, tok prefix, usr prefix.
const sweepScript = `
local tokens = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[1])
local removed = 0
for _, t in ipairs(tokens) do
  local key = ARGV[2] .. t
  local vals = redis.call("HMGET", key, "user_id", "has_user")
  if redis.call("DEL", key) == 1 then
    removed = removed + 1
    if vals[2] == "1" then
      redis.call("SREM", ARGV[3] .. vals[1], t)
    end
  end
  redis.call("ZREM", KEYS[1], t)
end
return removed
`

var (
	insertLua        = redis.NewScript(insertScript)
	casLua           = redis.NewScript(casScript)
	deleteLua        = redis.NewScript(deleteScript)
	deleteForUserLua = redis.NewScript(deleteForUserScript)
	sweepLua         = redis.NewScript(sweepScript)
)

// Options configures the Redis store.
type Options struct {
	// Addr is the host:port of the Redis server. Required.
	Addr string

	// Username and Password authenticate the connection when set.
	Username string
	Password string

	// DB selects the logical database.
	DB int

	// KeyPrefix namespaces all keys. Empty means DefaultKeyPrefix.
	KeyPrefix string

	// PingTimeout bounds the connectivity check at open. Zero means 3s.
	PingTimeout time.Duration

	// CARootFile adds a custom CA bundle on top of the system roots and
	// enables TLS when set.
	CARootFile string

	// Logger receives store log output.
	Logger logger.Logger
}

// Store is the Redis-backed token store.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
	log    logger.Logger

	// ownsClient is set when the store built the client itself and
	// should close it.
	ownsClient bool
}

var (
	_ storage.TokenStore = (*Store)(nil)
	_ storage.Counter    = (*Store)(nil)
	_ storage.Scanner    = (*Store)(nil)
)

// New dials Redis, validates connectivity and returns the store.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redistore: addr is required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}

	ropts := &redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	}
	if opts.CARootFile != "" {
		roots, err := tlsroots.NewPool()
		if err != nil {
			return nil, fmt.Errorf("redistore: system roots: %w", err)
		}
		if err := roots.AddCertFile(opts.CARootFile); err != nil {
			return nil, fmt.Errorf("redistore: ca roots: %w", err)
		}
		ropts.TLSConfig = roots.TLSConfig()
	}

	rdb := redis.NewClient(ropts)

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 3 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redistore: ping: %w", err)
	}

	store := NewWithClient(rdb, opts.KeyPrefix, log)
	store.ownsClient = true
	log.Info("redis store connected",
		"addr", opts.Addr,
		"db", opts.DB,
		"tls", ropts.TLSConfig != nil)
	return store, nil
}

// NewWithClient wraps an existing client. The caller keeps ownership
// of the client's lifecycle.
func NewWithClient(rdb redis.UniversalClient, keyPrefix string, log logger.Logger) *Store {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	if log == nil {
		log = logger.Default()
	}
	return &Store{rdb: rdb, prefix: keyPrefix, log: log}
}

func (s *Store) tokenKey(tokenValue string) string {
	return s.prefix + "tok:" + tokenValue
}

func (s *Store) tokenPrefix() string {
	return s.prefix + "tok:"
}

func (s *Store) userKey(userID string) string {
	return s.prefix + "usr:" + userID
}

func (s *Store) userPrefix() string {
	return s.prefix + "usr:"
}

func (s *Store) modKey() string {
	return s.prefix + "mod"
}

// Insert persists a new record together with its index entries.
func (s *Store) Insert(ctx context.Context, rec *domain.TokenRecord) error {
	userID, hasUser := rec.UserID()
	hasUserFlag := "0"
	if hasUser {
		hasUserFlag = "1"
	}

	created, err := insertLua.Run(ctx, s.rdb,
		[]string{s.tokenKey(rec.Token), s.modKey()},
		string(rec.Payload),
		strconv.FormatInt(rec.ModifiedAt, 10),
		userID,
		hasUserFlag,
		s.userPrefix(),
		rec.Token,
	).Int64()
	if err != nil {
		return storage.OpError(storage.OpInsert, err)
	}
	if created == 0 {
		return domain.ErrDuplicateToken
	}
	return nil
}

// Get returns the record for a token value, regardless of its age.
func (s *Store) Get(ctx context.Context, tokenValue string) (*domain.TokenRecord, error) {
	vals, err := s.rdb.HMGet(ctx, s.tokenKey(tokenValue), "payload", "modified_at").Result()
	if err != nil {
		return nil, storage.OpError(storage.OpGet, err)
	}
	if vals[0] == nil || vals[1] == nil {
		return nil, domain.ErrTokenNotFound
	}

	payload, ok := vals[0].(string)
	if !ok {
		return nil, storage.OpError(storage.OpGet, fmt.Errorf("unexpected payload type %T", vals[0]))
	}
	tsText, ok := vals[1].(string)
	if !ok {
		return nil, storage.OpError(storage.OpGet, fmt.Errorf("unexpected modified_at type %T", vals[1]))
	}
	modifiedAt, err := strconv.ParseInt(tsText, 10, 64)
	if err != nil {
		return nil, storage.OpError(storage.OpGet, fmt.Errorf("parse modified_at: %w", err))
	}

	return &domain.TokenRecord{
		Token:      tokenValue,
		Payload:    json.RawMessage(payload),
		ModifiedAt: modifiedAt,
	}, nil
}

// CompareAndSetModifiedAt performs the renewal write atomically in
// Redis. Both a missing record and a moved timestamp report
// ErrStaleRecord.
func (s *Store) CompareAndSetModifiedAt(ctx context.Context, tokenValue string, expected, updated int64) (*domain.TokenRecord, error) {
	res, err := casLua.Run(ctx, s.rdb,
		[]string{s.tokenKey(tokenValue), s.modKey()},
		strconv.FormatInt(expected, 10),
		strconv.FormatInt(updated, 10),
		tokenValue,
	).Slice()
	if err != nil {
		return nil, storage.OpError(storage.OpCompareAndSet, err)
	}

	status, ok := res[0].(int64)
	if !ok || status == 0 {
		return nil, domain.ErrStaleRecord
	}
	payload, ok := res[1].(string)
	if !ok {
		return nil, storage.OpError(storage.OpCompareAndSet, fmt.Errorf("unexpected payload type %T", res[1]))
	}

	return &domain.TokenRecord{
		Token:      tokenValue,
		Payload:    json.RawMessage(payload),
		ModifiedAt: updated,
	}, nil
}

// Delete removes one record. The boolean reports whether it existed.
func (s *Store) Delete(ctx context.Context, tokenValue string) (bool, error) {
	existed, err := deleteLua.Run(ctx, s.rdb,
		[]string{s.tokenKey(tokenValue), s.modKey()},
		tokenValue,
		s.userPrefix(),
	).Int64()
	if err != nil {
		return false, storage.OpError(storage.OpDelete, err)
	}
	return existed == 1, nil
}

// DeleteForUser removes every record in the user's set.
func (s *Store) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	removed, err := deleteForUserLua.Run(ctx, s.rdb,
		[]string{s.userKey(userID), s.modKey()},
		s.tokenPrefix(),
	).Int64()
	if err != nil {
		return 0, storage.OpError(storage.OpDeleteForUser, err)
	}
	return removed, nil
}

// DeleteOlderThan removes records scored strictly below the cutoff.
// The whole sweep runs as one script, so very large backlogs briefly
// block other commands; the sweeper's cadence keeps backlogs small.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	removed, err := sweepLua.Run(ctx, s.rdb,
		[]string{s.modKey()},
		strconv.FormatInt(cutoff, 10),
		s.tokenPrefix(),
		s.userPrefix(),
	).Int64()
	if err != nil {
		return 0, storage.OpError(storage.OpDeleteOlderThan, err)
	}
	return removed, nil
}

// Count returns the number of live records via the mod zset, which
// holds exactly one entry per record.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.rdb.ZCard(ctx, s.modKey()).Result()
	if err != nil {
		return 0, storage.OpError(storage.OpCount, err)
	}
	return n, nil
}

// scanPageSize bounds how many zset members one SCAN round trip
// returns during an export.
const scanPageSize = 256

// Scan pages through the mod zset and fetches each member's record.
// Records deleted between the page read and the fetch are skipped.
func (s *Store) Scan(ctx context.Context, fn func(*domain.TokenRecord) error) error {
	var cursor uint64
	for {
		members, next, err := s.rdb.ZScan(ctx, s.modKey(), cursor, "", scanPageSize).Result()
		if err != nil {
			return storage.OpError(storage.OpScan, err)
		}
		// ZSCAN yields member, score pairs.
		for i := 0; i+1 < len(members); i += 2 {
			rec, err := s.Get(ctx, members[i])
			if errors.Is(err, domain.ErrTokenNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Close releases the client when this store created it.
func (s *Store) Close() error {
	if !s.ownsClient {
		return nil
	}
	return s.rdb.Close()
}
