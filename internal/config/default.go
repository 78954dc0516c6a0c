// Package config defines the TokenGate runtime configuration.
package config

import "github.com/norlun/tokengate-go/internal/core/service"

// Default configuration values.
const (
	DefaultSecret    = "local_secret"
	DefaultBackend   = BackendMemory
	DefaultBadgerDir = "/var/lib/tokengate/data"

	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultMetricsAddr = "127.0.0.1:9464"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Token: TokenSection{
			TTLSeconds:            service.DefaultTTLSeconds,
			RenewThresholdSeconds: service.DefaultRenewThresholdSeconds,
			Secret:                DefaultSecret,
		},
		Store: StoreSection{
			Backend: DefaultBackend,
			Badger: BadgerConfig{
				Dir:        DefaultBadgerDir,
				SyncWrites: true,
			},
		},
		Sweeper: SweeperSection{
			Enabled: true,
		},
		Telemetry: TelemetrySection{
			LogLevel:    DefaultLogLevel,
			LogFormat:   DefaultLogFormat,
			MetricsAddr: DefaultMetricsAddr,
		},
	}
}
