// Package logger provides structured logging for TokenGate.
//
// It wraps log/slog with JSON output by default, dynamic level
// adjustment, context propagation, and automatic redaction of
// sensitive data. Token values are bare 64-character hex digests, so
// redaction recognizes them by shape and partially masks them; keys
// that suggest secrets are fully redacted.
package logger
