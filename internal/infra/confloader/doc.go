// Package confloader provides configuration loading for TokenGate.
//
// It layers koanf sources so later ones override earlier ones:
//
//  1. Default values (set on the target struct before loading)
//  2. Configuration file (YAML)
//  3. Environment variables (TOKENGATE_ prefix)
//  4. Explicit maps (flag overrides, compatibility aliases)
//
// Environment names map to config keys by stripping the prefix,
// lowercasing, and treating a double underscore as the section
// separator, so single underscores survive inside key names:
//
//	TOKENGATE_TOKEN__TTL_SECONDS  ->  token.ttl_seconds
//	TOKENGATE_STORE__BACKEND      ->  store.backend
//
// The package also ships a small fsnotify watcher used for config
// hot reload.
package confloader
