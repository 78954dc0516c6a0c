// Package metric provides Prometheus metrics for TokenGate.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: the lifecycle metric registry and HTTP handler
//   - collector.go: a custom collector polling live-token counts
//     from the configured store
//
// Metrics include:
//
//   - Issue/validate/renew/revoke counters
//   - Sweep run counters and duration histogram
//   - Store error counters by operation
//   - Go runtime and process collectors
//
// The sweeper daemon exposes everything at /metrics.
package metric
