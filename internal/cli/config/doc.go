// Package config holds per-user preferences for tokengate-cli.
//
// Preferences live in ~/.tokengate/cli.yaml and cover behavior that is
// not tied to a single invocation:
//
//   - spec.go: Preferences struct and defaults
//   - loader.go: load and save
//
// Anything set on the command line wins over the preferences file.
package config
