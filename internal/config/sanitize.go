// Package config defines the TokenGate runtime configuration.
package config

import (
	"net/url"
	"strings"
)

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for logging configuration without exposing secrets.
func Sanitize(cfg *Config) *Config {
	// Create a shallow copy
	sanitized := *cfg

	if sanitized.Token.Secret != "" {
		sanitized.Token.Secret = maskSecret(sanitized.Token.Secret)
	}
	if sanitized.Store.Badger.EncryptionKey != "" {
		sanitized.Store.Badger.EncryptionKey = maskSecret(sanitized.Store.Badger.EncryptionKey)
	}
	if sanitized.Store.Redis.Password != "" {
		sanitized.Store.Redis.Password = maskSecret(sanitized.Store.Redis.Password)
	}
	if sanitized.Store.Postgres.DSN != "" {
		sanitized.Store.Postgres.DSN = maskDSN(sanitized.Store.Postgres.DSN)
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// maskDSN masks the password in a connection string, covering both
// URL and keyword=value forms.
func maskDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		if _, has := u.User.Password(); has {
			u.User = url.UserPassword(u.User.Username(), "****")
			return u.String()
		}
		return dsn
	}

	if strings.Contains(dsn, "password=") {
		fields := strings.Fields(dsn)
		for i, f := range fields {
			if strings.HasPrefix(f, "password=") {
				fields[i] = "password=****"
			}
		}
		return strings.Join(fields, " ")
	}

	return dsn
}
