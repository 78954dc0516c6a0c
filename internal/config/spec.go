// Package config defines the TokenGate runtime configuration.
package config

import "time"

// Config is the root configuration shared by the TokenGate daemon and
// the CLI.
type Config struct {
	Token     TokenSection     `koanf:"token" json:"token"`
	Store     StoreSection     `koanf:"store" json:"store"`
	Sweeper   SweeperSection   `koanf:"sweeper" json:"sweeper"`
	Telemetry TelemetrySection `koanf:"telemetry" json:"telemetry"`
}

// TokenSection configures token lifecycle policy.
type TokenSection struct {
	// TTLSeconds is the sliding-window token lifetime.
	TTLSeconds int64 `koanf:"ttl_seconds" json:"ttl_seconds"`

	// RenewThresholdSeconds is the minimum age before a validation
	// pushes a token's window forward.
	RenewThresholdSeconds int64 `koanf:"renew_threshold_seconds" json:"renew_threshold_seconds"`

	// Secret is mixed into token generation.
	Secret string `koanf:"secret" json:"secret"`

	// SecretFile reads the secret from a file instead. Takes
	// precedence over Secret when set.
	SecretFile string `koanf:"secret_file" json:"secret_file"`
}

// Store backend names accepted by StoreSection.Backend.
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// StoreSection selects and configures the token store backend.
type StoreSection struct {
	// Backend is one of memory, badger, postgres, redis.
	Backend string `koanf:"backend" json:"backend"`

	Badger   BadgerConfig   `koanf:"badger" json:"badger"`
	Postgres PostgresConfig `koanf:"postgres" json:"postgres"`
	Redis    RedisConfig    `koanf:"redis" json:"redis"`
}

// BadgerConfig configures the embedded Badger backend.
type BadgerConfig struct {
	// Dir is the database directory.
	Dir string `koanf:"dir" json:"dir"`

	// SyncWrites forces an fsync on every commit.
	SyncWrites bool `koanf:"sync_writes" json:"sync_writes"`

	// EncryptionKey is a passphrase enabling at-rest encryption of
	// record payloads. Empty disables encryption.
	EncryptionKey string `koanf:"encryption_key" json:"encryption_key"`
}

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	DSN             string        `koanf:"dsn" json:"dsn"`
	MaxConns        int32         `koanf:"max_conns" json:"max_conns"`
	MinConns        int32         `koanf:"min_conns" json:"min_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" json:"conn_max_idle_time"`
	TLSCAFile       string        `koanf:"tls_ca_file" json:"tls_ca_file"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr      string `koanf:"addr" json:"addr"`
	Username  string `koanf:"username" json:"username"`
	Password  string `koanf:"password" json:"password"`
	DB        int    `koanf:"db" json:"db"`
	KeyPrefix string `koanf:"key_prefix" json:"key_prefix"`
	TLSCAFile string `koanf:"tls_ca_file" json:"tls_ca_file"`
}

// SweeperSection configures the background sweeper.
type SweeperSection struct {
	Enabled bool `koanf:"enabled" json:"enabled"`

	// Interval overrides the TTL-derived sweep cadence when positive.
	Interval time.Duration `koanf:"interval" json:"interval"`
}

// TelemetrySection configures logging and the operational listener.
type TelemetrySection struct {
	LogLevel  string `koanf:"log_level" json:"log_level"`
	LogFormat string `koanf:"log_format" json:"log_format"`

	// MetricsAddr is the bind address for the metrics and health
	// endpoints. Empty disables the listener.
	MetricsAddr string `koanf:"metrics_addr" json:"metrics_addr"`

	// TLSCertFile and TLSKeyFile enable TLS on the operational
	// listener when both are set. The pair is reloaded on rotation.
	TLSCertFile string `koanf:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file" json:"tls_key_file"`

	// AllowFrom restricts operational listener clients to the listed
	// IPs and CIDR blocks. Empty allows everyone.
	AllowFrom []string `koanf:"allow_from" json:"allow_from"`
}
