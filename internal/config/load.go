// Package config defines the TokenGate runtime configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/norlun/tokengate-go/internal/infra/confloader"
)

// Load builds the configuration from defaults, an optional YAML file,
// TOKENGATE_-prefixed environment variables and legacy aliases, in
// that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	loader := confloader.NewLoader()

	if err := loader.LoadFile(path); err != nil {
		return nil, err
	}
	if err := loader.LoadEnv(); err != nil {
		return nil, err
	}
	if aliases := legacyAliases(); len(aliases) > 0 {
		if err := loader.LoadMap(aliases); err != nil {
			return nil, fmt.Errorf("apply env aliases: %w", err)
		}
	}
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := resolveSecret(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// legacyAliases maps the flat environment names TokenGate honored
// before the prefixed scheme onto dotted keys. A canonical TOKENGATE_
// variable for the same key suppresses its aliases. Numeric aliases
// with unparseable values are ignored so the configured or default
// value stands.
func legacyAliases() map[string]any {
	aliases := make(map[string]any)

	setSeconds := func(key, alias, canonical string) {
		if os.Getenv(canonical) != "" {
			return
		}
		raw, ok := os.LookupEnv(alias)
		if !ok {
			return
		}
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return
		}
		aliases[key] = n
	}

	setSeconds("token.ttl_seconds", "TOKEN_TTL_SECONDS", "TOKENGATE_TOKEN__TTL_SECONDS")
	setSeconds("token.renew_threshold_seconds", "TOKEN_RENEW_THRESHOLD_SECONDS", "TOKENGATE_TOKEN__RENEW_THRESHOLD_SECONDS")

	if os.Getenv("TOKENGATE_TOKEN__SECRET") == "" {
		if v := os.Getenv("JWT_SECRET"); v != "" {
			aliases["token.secret"] = v
		}
		if v := os.Getenv("TOKEN_SECRET"); v != "" {
			aliases["token.secret"] = v
		}
	}

	return aliases
}

// resolveSecret applies token.secret_file over token.secret.
func resolveSecret(cfg *Config) error {
	if cfg.Token.SecretFile == "" {
		return nil
	}

	data, err := os.ReadFile(cfg.Token.SecretFile)
	if err != nil {
		return fmt.Errorf("read secret file: %w", err)
	}

	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return fmt.Errorf("secret file %s is empty", cfg.Token.SecretFile)
	}

	cfg.Token.Secret = secret
	return nil
}

// IsDefaultSecret reports whether the token secret was left at its
// compiled-in default. Deployments should override it; the daemon
// warns at startup when this returns true.
func IsDefaultSecret(cfg *Config) bool {
	return cfg.Token.Secret == DefaultSecret
}
