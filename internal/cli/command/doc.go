// Package command provides CLI command definitions for TokenGate.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: Root command, global flags, store runtime wiring
//   - token.go: Token lifecycle commands (issue, validate, revoke)
//   - system.go: Stats and sweep commands
//   - backup.go: Backup/restore subcommand group
//   - config.go: Configuration inspection commands
//   - repl.go: Interactive shell dispatching into the same handlers
//
// The CLI talks to the token store directly through the configured
// backend; there is no server in between. Commands follow a consistent
// pattern of parsing flags, calling the lifecycle manager, and
// formatting output.
package command
