// Package domain defines the core domain models for TokenGate.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling. The central entity is
// TokenRecord, the persisted unit of session state; DomainError
// carries the structured error taxonomy shared by the service and
// storage layers.
package domain
