// Package config defines the TokenGate runtime configuration.
package config

import (
	"context"
	"fmt"

	"github.com/norlun/tokengate-go/internal/storage"
	"github.com/norlun/tokengate-go/internal/storage/badgerstore"
	"github.com/norlun/tokengate-go/internal/storage/memory"
	"github.com/norlun/tokengate-go/internal/storage/postgres"
	"github.com/norlun/tokengate-go/internal/storage/redistore"
	"github.com/norlun/tokengate-go/internal/telemetry/logger"
	"github.com/norlun/tokengate-go/pkg/crypto/adaptive"
)

// badgerKeyInfo labels the Badger at-rest key derivation so the same
// passphrase cannot double as a key for another purpose.
const badgerKeyInfo = "token-records"

// OpenStore constructs the token store selected by cfg.Store. The
// Postgres backend gets its schema applied before returning.
//
// The caller owns the returned store and must Close it.
func OpenStore(ctx context.Context, cfg *Config, log logger.Logger) (storage.TokenStore, error) {
	switch cfg.Store.Backend {
	case BackendMemory:
		return memory.New(), nil

	case BackendBadger:
		opts := badgerstore.DefaultOptions(cfg.Store.Badger.Dir)
		opts.SyncWrites = cfg.Store.Badger.SyncWrites
		opts.Logger = log
		if cfg.Store.Badger.EncryptionKey != "" {
			key, err := adaptive.DeriveKey(cfg.Store.Badger.EncryptionKey, badgerKeyInfo)
			if err != nil {
				return nil, fmt.Errorf("derive badger key: %w", err)
			}
			opts.EncryptionKey = key
		}
		return badgerstore.New(opts)

	case BackendPostgres:
		store, err := postgres.New(ctx, postgres.Options{
			DSN:             cfg.Store.Postgres.DSN,
			MaxConns:        cfg.Store.Postgres.MaxConns,
			MinConns:        cfg.Store.Postgres.MinConns,
			ConnMaxLifetime: cfg.Store.Postgres.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Store.Postgres.ConnMaxIdleTime,
			CARootFile:      cfg.Store.Postgres.TLSCAFile,
			Logger:          log,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil

	case BackendRedis:
		return redistore.New(ctx, redistore.Options{
			Addr:       cfg.Store.Redis.Addr,
			Username:   cfg.Store.Redis.Username,
			Password:   cfg.Store.Redis.Password,
			DB:         cfg.Store.Redis.DB,
			KeyPrefix:  cfg.Store.Redis.KeyPrefix,
			CARootFile: cfg.Store.Redis.TLSCAFile,
			Logger:     log,
		})

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
