// Package service provides domain services for TokenGate.
//
// Domain services contain pure business logic and orchestrate operations
// on domain models through the storage interfaces, allowing for
// dependency injection and testability.
//
// This package contains:
//
//   - TokenManager: Token issuance, validation with sliding renewal,
//     and revocation
//   - Sweeper: Periodic removal of expired token records
//
// Services are stateless apart from their configuration, which is
// captured once at construction, and are safe for concurrent use.
package service
