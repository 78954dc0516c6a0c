// Package opsserver provides the operational HTTP listener for TokenGate.
//
// This package serves the observability surface of the daemon using
// stdlib net/http:
//
//   - GET /healthz - process liveness
//   - GET /readyz  - readiness, backed by a token store probe
//   - GET /metrics - Prometheus metrics
//   - GET /version - build information
//   - GET /statusz - operational summary (uptime, live token count)
//
// Features:
//
//   - TLS with automatic certificate reload
//   - Middleware chain: Recover, RequestID, NetworkACL, RequestLog
//   - Graceful shutdown
//
// Token issuance and validation are not exposed here. Embedding
// applications call the service layer directly.
package opsserver
