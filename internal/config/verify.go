// Package config defines the TokenGate runtime configuration.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if err := verifyToken(&cfg.Token); err != nil {
		return err
	}
	if err := verifyStore(&cfg.Store); err != nil {
		return err
	}
	return verifyTelemetry(&cfg.Telemetry)
}

func verifyToken(cfg *TokenSection) error {
	if cfg.Secret == "" {
		return errors.New("token.secret is required")
	}
	return nil
}

func verifyStore(cfg *StoreSection) error {
	switch cfg.Backend {
	case BackendMemory:
		return nil

	case BackendBadger:
		if cfg.Badger.Dir == "" {
			return errors.New("store.badger.dir is required")
		}
		// Check the directory exists or can be created
		if err := os.MkdirAll(cfg.Badger.Dir, 0750); err != nil {
			return errors.New("cannot create badger directory: " + err.Error())
		}
		return nil

	case BackendPostgres:
		if cfg.Postgres.DSN == "" {
			return errors.New("store.postgres.dsn is required")
		}
		return nil

	case BackendRedis:
		if cfg.Redis.Addr == "" {
			return errors.New("store.redis.addr is required")
		}
		return nil

	default:
		return errors.New("unknown store backend: " + cfg.Backend)
	}
}

func verifyTelemetry(cfg *TelemetrySection) error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("telemetry.log_level must be one of debug, info, warn, error")
	}

	switch cfg.LogFormat {
	case "json", "text":
	default:
		return errors.New("telemetry.log_format must be json or text")
	}

	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return errors.New("telemetry.tls_cert_file and telemetry.tls_key_file must be set together")
	}

	// A mistyped allowlist entry must not silently widen access.
	for _, entry := range cfg.AllowFrom {
		if strings.Contains(entry, "/") {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				return fmt.Errorf("telemetry.allow_from: invalid CIDR %q", entry)
			}
		} else if net.ParseIP(entry) == nil {
			return fmt.Errorf("telemetry.allow_from: invalid IP %q", entry)
		}
	}

	return nil
}
