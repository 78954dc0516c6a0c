// Package main provides the entry point for tokengate-cli.
//
// The CLI tool provides command-line access to the token store for:
//
//   - Token lifecycle operations (issue, validate, revoke)
//   - Per-user revocation
//   - Manual expiry sweeps and store statistics
//   - Backup and restore operations
//   - Configuration inspection
//
// Usage:
//
//	tokengate-cli [command] [flags]
//	tokengate-cli issue --user alice --output json
//	tokengate-cli backup create --dir /var/backups/tokengate
//
// The CLI reads the same configuration file and TOKENGATE_ environment
// variables as the daemon, so pointing both at one config keeps them on
// the same backend.
package main
