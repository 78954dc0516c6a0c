// Package config provides runtime configuration for TokenGate.
//
// This package defines the configuration structure and validation:
//
//   - spec.go: Config struct definition
//   - default.go: Default configuration values
//   - load.go: Layered loading and legacy environment aliases
//   - verify.go: Business validation (backend choice, path existence)
//   - sanitize.go: Log sanitization (hide sensitive values)
//   - store.go: Construction of the configured token store
//
// Configuration is loaded via internal/infra/confloader and layers
// defaults, an optional YAML file, TOKENGATE_-prefixed environment
// variables and flat legacy aliases such as TOKEN_TTL_SECONDS.
package config
